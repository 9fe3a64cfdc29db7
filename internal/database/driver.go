package database

import "gorm.io/gorm"

// Driver opens and tunes one relational backend
type Driver interface {
	// Name returns the driver name (e.g., "sqlite")
	Name() string

	// Open returns a GORM dialector for dsn
	Open(dsn string) (gorm.Dialector, error)

	// Configure applies connection settings before migration
	Configure(db *gorm.DB) error
}
