package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/printdesk/printdesk/internal/model"
	"github.com/printdesk/printdesk/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init(logger.Config{Level: "error", Format: "text"})
	m.Run()
}

func TestRenderLogStore_CreateAndGet(t *testing.T) {
	s, cleanup := SetupTestDB(t)
	defer cleanup()

	created := CreateTestRenderLog(t, s, func(l *model.RenderLog) {
		l.Missing = model.StringArray{"payer_name"}
		l.Meta = model.JSONMap{"paper": "A4"}
	})
	require.NotZero(t, created.ID)

	got, err := s.RenderLog().GetByDocumentID(created.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "contract", got.Kind)
	assert.Equal(t, model.StringArray{"payer_name"}, got.Missing)
	assert.Equal(t, "A4", got.Meta["paper"])
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.RenderLog().GetByDocumentID("missing")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRenderLogStore_List(t *testing.T) {
	s, cleanup := SetupTestDB(t)
	defer cleanup()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		i := i
		CreateTestRenderLog(t, s, func(l *model.RenderLog) {
			l.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			if i%2 == 1 {
				l.Kind = "booklet"
			}
			if i == 4 {
				l.Status = model.RenderStatusFailed
				l.Error = "[E7001] Contrato não encontrado"
			}
		})
	}

	tests := []struct {
		name      string
		query     model.RenderLogQuery
		wantLen   int
		wantTotal int64
	}{
		{name: "all", query: model.RenderLogQuery{}, wantLen: 5, wantTotal: 5},
		{name: "by kind", query: model.RenderLogQuery{Kind: "booklet"}, wantLen: 2, wantTotal: 2},
		{name: "by status", query: model.RenderLogQuery{Status: model.RenderStatusFailed}, wantLen: 1, wantTotal: 1},
		{name: "limit", query: model.RenderLogQuery{Limit: 2}, wantLen: 2, wantTotal: 5},
		{name: "offset", query: model.RenderLogQuery{Limit: 2, Offset: 4}, wantLen: 1, wantTotal: 5},
		{name: "negative offset", query: model.RenderLogQuery{Offset: -3}, wantLen: 5, wantTotal: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs, total, err := s.RenderLog().List(tt.query)
			require.NoError(t, err)
			assert.Len(t, logs, tt.wantLen)
			assert.Equal(t, tt.wantTotal, total)
		})
	}

	logs, _, err := s.RenderLog().List(model.RenderLogQuery{})
	require.NoError(t, err)
	assert.Equal(t, model.RenderStatusFailed, logs[0].Status, "newest first")
}

func TestRenderLogStore_DeleteOlderThan(t *testing.T) {
	s, cleanup := SetupTestDB(t)
	defer cleanup()

	CreateTestRenderLog(t, s, func(l *model.RenderLog) { l.CreatedAt = time.Now().AddDate(0, 0, -100) })
	CreateTestRenderLog(t, s, func(l *model.RenderLog) { l.CreatedAt = time.Now().AddDate(0, 0, -10) })
	CreateTestRenderLog(t, s)

	deleted, err := s.RenderLog().DeleteOlderThan(30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	count, err := s.RenderLog().Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestStore_Transaction(t *testing.T) {
	s, cleanup := SetupTestDB(t)
	defer cleanup()

	err := s.Transaction(func(tx Store) error {
		CreateTestRenderLog(t, tx)
		return errors.New("rollback")
	})
	require.Error(t, err)

	count, err := s.RenderLog().Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCleanupService(t *testing.T) {
	s, cleanup := SetupTestDB(t)
	defer cleanup()

	CreateTestRenderLog(t, s, func(l *model.RenderLog) { l.CreatedAt = time.Now().AddDate(0, 0, -40) })
	CreateTestRenderLog(t, s)

	svc := NewCleanupService(s.RenderLog(), 0)
	assert.Equal(t, DefaultRetentionDays, svc.RetentionDays())
	assert.Zero(t, svc.RunOnce())

	svc.SetRetentionDays(30)
	assert.Equal(t, 30, svc.RetentionDays())
	assert.Equal(t, int64(1), svc.RunOnce())

	svc.SetRetentionDays(-1)
	assert.Equal(t, DefaultRetentionDays, svc.RetentionDays())
}

func TestCleanupService_StartStop(t *testing.T) {
	s, cleanup := SetupTestDB(t)
	defer cleanup()

	svc := NewCleanupService(s.RenderLog(), 7)
	require.NoError(t, svc.Start())
	svc.Stop()
}
