package store

import (
	"path/filepath"
	"testing"

	"github.com/printdesk/printdesk/internal/database"
	"github.com/printdesk/printdesk/internal/model"
	"github.com/printdesk/printdesk/pkg/idgen"
)

// SetupTestDB creates a temp-file SQLite database for testing.
// It returns a Store instance and a cleanup function.
func SetupTestDB(t *testing.T) (Store, func()) {
	t.Helper()
	database.ResetForTesting()

	tmpPath := filepath.Join(t.TempDir(), "test.db")
	if err := database.Init(tmpPath); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	cleanup := func() {
		database.Close()
		database.ResetForTesting()
	}
	return NewStore(database.Get()), cleanup
}

// CreateTestRenderLog stores a successful contract render log.
// Fields can be overridden by passing functions that modify the log.
func CreateTestRenderLog(t *testing.T, s Store, overrides ...func(*model.RenderLog)) *model.RenderLog {
	t.Helper()
	log := &model.RenderLog{
		DocumentID: idgen.NewDocumentID(),
		Kind:       "contract",
		Title:      "Contrato - Ana Silva",
		Status:     model.RenderStatusSuccess,
		Pages:      2,
		Source:     model.RenderSourceAPI,
		Sink:       "memory",
	}
	for _, override := range overrides {
		override(log)
	}
	if err := s.RenderLog().Create(log); err != nil {
		t.Fatalf("Failed to create test render log: %v", err)
	}
	return log
}
