package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/printdesk/printdesk/internal/model"
)

// Listing limits
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// RenderLogStore defines operations for RenderLog model.
type RenderLogStore interface {
	// Create records one render invocation
	Create(log *model.RenderLog) error

	// List returns logs newest first with the total matching count
	List(q model.RenderLogQuery) ([]model.RenderLog, int64, error)

	// GetByDocumentID finds the log of a rendered document
	GetByDocumentID(documentID string) (*model.RenderLog, error)

	// DeleteOlderThan deletes logs older than days (for cleanup)
	DeleteOlderThan(days int) (int64, error)

	// Count returns the number of stored logs
	Count() (int64, error)
}

type renderLogStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRenderLogStore creates a RenderLogStore on db
func NewRenderLogStore(db *gorm.DB) RenderLogStore {
	return &renderLogStore{db: db, now: time.Now}
}

func (s *renderLogStore) Create(log *model.RenderLog) error {
	return s.db.Create(log).Error
}

func (s *renderLogStore) List(q model.RenderLogQuery) ([]model.RenderLog, int64, error) {
	var logs []model.RenderLog
	var total int64

	query := s.db.Model(&model.RenderLog{})
	if q.Kind != "" {
		query = query.Where("kind = ?", q.Kind)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	err := query.Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&logs).Error
	return logs, total, err
}

func (s *renderLogStore) GetByDocumentID(documentID string) (*model.RenderLog, error) {
	var log model.RenderLog
	if err := s.db.Where("document_id = ?", documentID).First(&log).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

func (s *renderLogStore) DeleteOlderThan(days int) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -days)
	result := s.db.Where("created_at < ?", cutoff).Delete(&model.RenderLog{})
	return result.RowsAffected, result.Error
}

func (s *renderLogStore) Count() (int64, error) {
	var count int64
	err := s.db.Model(&model.RenderLog{}).Count(&count).Error
	return count, err
}
