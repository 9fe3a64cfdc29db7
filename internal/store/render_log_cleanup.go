package store

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/printdesk/printdesk/pkg/logger"
)

const (
	// DefaultRetentionDays is the default number of days to retain render logs
	DefaultRetentionDays = 90
	// CleanupSchedule runs the cleanup daily at 2 AM
	CleanupSchedule = "0 2 * * *"
)

// CleanupService periodically deletes old render logs
type CleanupService struct {
	store         RenderLogStore
	cron          *cron.Cron
	retentionDays int
	entryID       cron.EntryID
	mu            sync.RWMutex
}

// NewCleanupService creates a cleanup service; non-positive retention uses
// DefaultRetentionDays
func NewCleanupService(store RenderLogStore, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &CleanupService{
		store:         store,
		cron:          cron.New(),
		retentionDays: retentionDays,
	}
}

// Start schedules the cleanup and runs one pass in the background
func (s *CleanupService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(CleanupSchedule, func() { s.RunOnce() })
	if err != nil {
		logger.Error("Failed to schedule render log cleanup", zap.Error(err))
		return err
	}
	s.entryID = entryID
	s.cron.Start()

	logger.Info("Render log cleanup service started",
		zap.String("schedule", CleanupSchedule),
		zap.Int("retention_days", s.retentionDays),
	)

	go s.RunOnce()
	return nil
}

// Stop stops the scheduler and waits for a running cleanup
func (s *CleanupService) Stop() {
	// A running job reads the retention under the lock, so wait without it
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		logger.Info("Render log cleanup service stopped")
	}
}

// RunOnce deletes logs past the retention period and returns how many
func (s *CleanupService) RunOnce() int64 {
	days := s.RetentionDays()
	start := time.Now()

	deleted, err := s.store.DeleteOlderThan(days)
	if err != nil {
		logger.Error("Failed to cleanup old render logs",
			zap.Int("retention_days", days),
			zap.Error(err),
		)
		return 0
	}

	logger.Info("Render log cleanup completed",
		zap.Int64("deleted_count", deleted),
		zap.Int("retention_days", days),
		zap.Duration("duration", time.Since(start)),
	)
	return deleted
}

// RetentionDays returns the current retention period
func (s *CleanupService) RetentionDays() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retentionDays
}

// SetRetentionDays updates the retention period (takes effect on next cleanup)
func (s *CleanupService) SetRetentionDays(days int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if days <= 0 {
		days = DefaultRetentionDays
	}
	s.retentionDays = days
}
