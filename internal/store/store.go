// Package store provides data access for the render log.
package store

import "gorm.io/gorm"

// Store aggregates all data store interfaces.
type Store interface {
	RenderLog() RenderLogStore

	// DB returns the underlying database connection for advanced operations.
	DB() *gorm.DB

	// Transaction executes operations within a database transaction.
	Transaction(fn func(Store) error) error
}

// gormStore implements Store interface using GORM.
type gormStore struct {
	db             *gorm.DB
	renderLogStore RenderLogStore
}

// NewStore creates a new Store instance with GORM backend.
func NewStore(db *gorm.DB) Store {
	return &gormStore{
		db:             db,
		renderLogStore: NewRenderLogStore(db),
	}
}

func (s *gormStore) RenderLog() RenderLogStore {
	return s.renderLogStore
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Transaction(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
