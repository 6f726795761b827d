// Package storage persists operator-defined rate limit policies. It provides
// a clean abstraction implemented by JSON file, in-memory, SQLite, and
// PostgreSQL backends. Bucket state is deliberately not persisted: limits
// reset on restart and the first burst after startup is always admitted.
package storage

import (
	"context"

	"gatekeeper/internal/models"
)

// Storage defines the interface for policy record persistence.
type Storage interface {
	// Policies returns all persisted policy records
	Policies(ctx context.Context) ([]*models.Policy, error)

	// GetPolicy retrieves a policy record by its unique name
	GetPolicy(ctx context.Context, name string) (*models.Policy, error)

	// SavePolicy stores or updates a policy record
	SavePolicy(ctx context.Context, policy *models.Policy) error

	// DeletePolicy removes a policy record by name
	DeletePolicy(ctx context.Context, name string) error

	// Ping verifies the backend is reachable, for health checks
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources
	Close() error
}

// Config holds configuration for storage backends
type Config struct {
	// Type specifies the storage backend type (json, memory, sqlite, postgres)
	Type string `json:"type" yaml:"type"`

	// Path is used for file-based storage backends
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// ConnectionString is used for database backends
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`
}
