package database

import (
	"context"
	"fmt"
)

// IndexRebuilder is an interface for stores that keep an in-memory identity
// index next to the database.
type IndexRebuilder interface {
	// RebuildIndex reloads every active, enrolled identity into the index
	RebuildIndex(ctx context.Context) error
	// IndexCount returns the number of identities in the index
	IndexCount() int
	// IsIndexEnabled returns whether the in-memory index is enabled
	IsIndexEnabled() bool
	// SaveIndex saves the current index to disk (if path configured)
	SaveIndex() error
}

var (
	postgresStore       func() Store
	postgresIndex       IndexRebuilder // Singleton for identity index rebuilding
	postgresInitialized bool
)

// RegisterPostgresBackend registers the PostgreSQL store constructor.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(store func() Store) {
	postgresStore = store
	postgresInitialized = true
}

// RegisterIndexRebuilder registers the rebuilder for the identity index.
// This allows rebuilding the in-memory index without knowing the concrete type.
func RegisterIndexRebuilder(rebuilder IndexRebuilder) {
	postgresIndex = rebuilder
}

// GetIndexRebuilder returns the registered index rebuilder, or nil if not registered.
func GetIndexRebuilder() IndexRebuilder {
	return postgresIndex
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetStore returns a Store from the PostgreSQL backend
func GetStore(ctx context.Context) (Store, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresStore == nil {
		return nil, fmt.Errorf("PostgreSQL store not registered")
	}
	return postgresStore(), nil
}
