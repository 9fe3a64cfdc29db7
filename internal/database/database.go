// Package database opens the render log database.
// It uses GORM with an embedded SQLite file behind a small driver abstraction.
package database

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/printdesk/printdesk/internal/model"
	"github.com/printdesk/printdesk/pkg/errors"
	"github.com/printdesk/printdesk/pkg/logger"
)

const (
	// DefaultDBPath is used when render_log.path is empty
	DefaultDBPath = "./data/printdesk.db"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Init opens the database at dbPath and migrates it.
// Only the first call takes effect; an empty path uses DefaultDBPath.
func Init(dbPath string) error {
	var initErr error
	once.Do(func() {
		if dbPath == "" {
			dbPath = DefaultDBPath
		}
		initErr = initDB(dbPath)
	})
	return initErr
}

// Open creates an independent connection at dbPath and migrates it.
// The CLI uses it for one-off commands that must not touch the global handle.
func Open(dbPath string) (*gorm.DB, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	return openDB(&SQLiteDriver{}, dbPath)
}

func initDB(dbPath string) error {
	conn, err := openDB(&SQLiteDriver{}, dbPath)
	if err != nil {
		return err
	}
	db = conn
	return nil
}

func openDB(driver Driver, dbPath string) (*gorm.DB, error) {
	logger.Info("Initializing database", zap.String("path", dbPath), zap.String("driver", driver.Name()))

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error("Failed to create database directory", zap.Error(err), zap.String("dir", dir))
			return nil, errors.Wrap(errors.ErrCodeDBConnection, "failed to create database directory", err)
		}
	}

	dialector, err := driver.Open(dbPath)
	if err != nil {
		logger.Error("Failed to open database", zap.Error(err))
		return nil, errors.Wrap(errors.ErrCodeDBConnection, "failed to open database", err)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		return nil, errors.Wrap(errors.ErrCodeDBConnection, "failed to connect to database", err)
	}

	if err := driver.Configure(conn); err != nil {
		logger.Error("Failed to configure database", zap.Error(err))
		return nil, errors.Wrap(errors.ErrCodeDBConnection, "failed to configure database", err)
	}

	if err := migrate(conn); err != nil {
		return nil, err
	}

	logger.Info("Database initialized successfully", zap.String("driver", driver.Name()))
	return conn, nil
}

// migrate runs auto-migration for all models
func migrate(conn *gorm.DB) error {
	models := model.AllModels()
	if err := conn.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run database migrations", zap.Error(err))
		return errors.Wrap(errors.ErrCodeDBMigration, "failed to run database migrations", err)
	}
	logger.Debug("Database migrations completed", zap.Int("models", len(models)))
	return nil
}

// Get returns the database instance.
// Panics if the database hasn't been initialized.
func Get() *gorm.DB {
	if db == nil {
		panic("database not initialized, call Init first")
	}
	return db
}

// Initialized reports whether Init succeeded
func Initialized() bool {
	return db != nil
}

// Close closes the database connection
func Close() error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	logger.Info("Closing database connection")
	return sqlDB.Close()
}

// ResetForTesting closes the connection and allows Init to run again.
// WARNING: Only use this function in tests!
func ResetForTesting() {
	if db != nil {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		db = nil
	}
	once = sync.Once{}
}

// HealthCheck pings the database
func HealthCheck() error {
	if db == nil {
		return errors.New(errors.ErrCodeDBConnection, "database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(errors.ErrCodeDBConnection, "failed to get database connection", err)
	}
	return sqlDB.Ping()
}
