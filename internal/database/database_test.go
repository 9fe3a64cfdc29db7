package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printdesk/printdesk/internal/model"
	"github.com/printdesk/printdesk/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init(logger.Config{Level: "error", Format: "text"})
	m.Run()
}

func TestInit_SQLiteOptimizations(t *testing.T) {
	ResetForTesting()
	defer ResetForTesting()

	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	require.NoError(t, Init(dbPath))
	assert.True(t, Initialized())

	db := Get()

	var journalMode string
	require.NoError(t, db.Raw("PRAGMA journal_mode").Scan(&journalMode).Error)
	assert.Equal(t, "wal", journalMode)

	var synchronous int
	require.NoError(t, db.Raw("PRAGMA synchronous").Scan(&synchronous).Error)
	assert.Equal(t, 1, synchronous, "NORMAL")

	assert.True(t, db.Migrator().HasTable(&model.RenderLog{}))
	assert.NoError(t, HealthCheck())
}

func TestInit_OnlyFirstCallTakesEffect(t *testing.T) {
	ResetForTesting()
	defer ResetForTesting()

	dir := t.TempDir()
	require.NoError(t, Init(filepath.Join(dir, "first.db")))
	first := Get()
	require.NoError(t, Init(filepath.Join(dir, "second.db")))
	assert.Same(t, first, Get())
}

func TestGet_PanicsWhenUninitialized(t *testing.T) {
	ResetForTesting()
	assert.False(t, Initialized())
	assert.Panics(t, func() { Get() })
	assert.Error(t, HealthCheck())
	assert.NoError(t, Close())
}

func TestOpen_Independent(t *testing.T) {
	ResetForTesting()
	conn, err := Open(filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	defer func() {
		sqlDB, _ := conn.DB()
		sqlDB.Close()
	}()

	assert.False(t, Initialized(), "Open must not set the global handle")
	require.NoError(t, conn.Create(&model.RenderLog{Kind: "contract", Status: model.RenderStatusSuccess, Source: model.RenderSourceCLI}).Error)

	var count int64
	require.NoError(t, conn.Model(&model.RenderLog{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteDriver_Name(t *testing.T) {
	assert.Equal(t, "sqlite", (&SQLiteDriver{}).Name())
}
