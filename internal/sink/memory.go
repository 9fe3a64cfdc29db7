package sink

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/printdesk/printdesk/internal/render"
	"github.com/printdesk/printdesk/pkg/logger"
	"github.com/printdesk/printdesk/pkg/telemetry"
)

// Memory sink defaults
const (
	DefaultDocumentTTL  = 30 * time.Minute
	DefaultMaxDocuments = 1000
)

type memoryEntry struct {
	doc     *render.Document
	expires time.Time
}

// MemorySink keeps documents in memory for a limited time so the HTTP server
// can serve them by ID. It plays the part of a browser window handle.
type MemorySink struct {
	// BaseURL prefixes document IDs in handle locations
	BaseURL string

	ttl time.Duration
	max int
	now func() time.Time

	mu   sync.RWMutex
	docs map[string]memoryEntry
}

// NewMemorySink creates a sink. Zero ttl or max select the defaults; a
// negative max removes the capacity limit.
func NewMemorySink(baseURL string, ttl time.Duration, max int) *MemorySink {
	if ttl <= 0 {
		ttl = DefaultDocumentTTL
	}
	if max == 0 {
		max = DefaultMaxDocuments
	}
	return &MemorySink{
		BaseURL: baseURL,
		ttl:     ttl,
		max:     max,
		now:     time.Now,
		docs:    make(map[string]memoryEntry),
	}
}

// Name implements DocumentSink.
func (s *MemorySink) Name() string { return "memory" }

// Open implements DocumentSink. It fails with ErrSinkFull when the sink
// already holds its maximum number of live documents.
func (s *MemorySink) Open(ctx context.Context, doc *render.Document) (*Handle, error) {
	s.mu.Lock()
	removed := s.sweepLocked()
	if s.max > 0 && len(s.docs) >= s.max {
		s.mu.Unlock()
		telemetry.GetMetrics().AddOpenDocuments(ctx, -int64(removed))
		telemetry.GetMetrics().RecordSinkOpen(ctx, s.Name(), false)
		logger.Warn("Memory sink is full", zap.Int("max_documents", s.max))
		return nil, ErrSinkFull
	}
	_, replaced := s.docs[doc.ID]
	s.docs[doc.ID] = memoryEntry{doc: doc, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()

	delta := -int64(removed)
	if !replaced {
		delta++
	}
	telemetry.GetMetrics().AddOpenDocuments(ctx, delta)
	telemetry.GetMetrics().RecordSinkOpen(ctx, s.Name(), true)

	return &Handle{ID: doc.ID, Location: s.BaseURL + doc.ID, Sink: s.Name(), doc: doc}, nil
}

// Get returns a live document by ID
func (s *MemorySink) Get(id string) (*render.Document, bool) {
	s.mu.RLock()
	e, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok || !s.now().Before(e.expires) {
		return nil, false
	}
	return e.doc, true
}

// Remove drops a document; it reports whether the document was present
func (s *MemorySink) Remove(id string) bool {
	s.mu.Lock()
	_, ok := s.docs[id]
	delete(s.docs, id)
	s.mu.Unlock()
	if ok {
		telemetry.GetMetrics().AddOpenDocuments(context.Background(), -1)
	}
	return ok
}

// Len is the number of stored documents, including expired ones not yet swept
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Sweep removes expired documents and returns how many were removed
func (s *MemorySink) Sweep() int {
	s.mu.Lock()
	n := s.sweepLocked()
	s.mu.Unlock()
	if n > 0 {
		telemetry.GetMetrics().AddOpenDocuments(context.Background(), -int64(n))
		logger.Debug("Expired documents removed", zap.Int("count", n))
	}
	return n
}

func (s *MemorySink) sweepLocked() int {
	now := s.now()
	n := 0
	for id, e := range s.docs {
		if !now.Before(e.expires) {
			delete(s.docs, id)
			n++
		}
	}
	return n
}

// Run sweeps expired documents every interval until ctx is done.
func (s *MemorySink) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
