package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gatekeeper/internal/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS policies (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL UNIQUE,
	capacity     INTEGER NOT NULL,
	window_ms    INTEGER NOT NULL,
	key_strategy TEXT NOT NULL,
	message      TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);
`

// SQLiteStorage implements the Storage interface using SQLite, suitable for
// single-node deployments that need policies to survive restarts without an
// external database.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance and ensures the
// schema exists.
func NewSQLiteStorage(config Config) (*SQLiteStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Policies returns all persisted policy records, sorted by name.
func (ss *SQLiteStorage) Policies(ctx context.Context) ([]*models.Policy, error) {
	rows, err := ss.db.QueryContext(ctx,
		`SELECT id, name, capacity, window_ms, key_strategy, message, created_at, updated_at
		 FROM policies ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var policies []*models.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate policies: %w", err)
	}

	return policies, nil
}

// GetPolicy retrieves a policy record by name
func (ss *SQLiteStorage) GetPolicy(ctx context.Context, name string) (*models.Policy, error) {
	row := ss.db.QueryRowContext(ctx,
		`SELECT id, name, capacity, window_ms, key_strategy, message, created_at, updated_at
		 FROM policies WHERE name = ?`, name)

	p, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPolicyNotFound
		}
		return nil, err
	}
	return p, nil
}

// SavePolicy stores or updates a policy record (upsert by name).
func (ss *SQLiteStorage) SavePolicy(ctx context.Context, policy *models.Policy) error {
	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO policies (id, name, capacity, window_ms, key_strategy, message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			capacity = excluded.capacity,
			window_ms = excluded.window_ms,
			key_strategy = excluded.key_strategy,
			message = excluded.message,
			updated_at = excluded.updated_at`,
		policy.ID, policy.Name, policy.Capacity, policy.WindowMs,
		policy.KeyStrategy, policy.Message, policy.CreatedAt, policy.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save policy %s: %w", policy.Name, err)
	}
	return nil
}

// DeletePolicy removes a policy record by name
func (ss *SQLiteStorage) DeletePolicy(ctx context.Context, name string) error {
	result, err := ss.db.ExecContext(ctx, `DELETE FROM policies WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete policy %s: %w", name, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrPolicyNotFound
	}
	return nil
}

// Ping verifies the database connection is alive
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the storage connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*models.Policy, error) {
	var p models.Policy
	var createdAt, updatedAt time.Time
	if err := row.Scan(&p.ID, &p.Name, &p.Capacity, &p.WindowMs,
		&p.KeyStrategy, &p.Message, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan policy: %w", err)
	}
	p.CreatedAt = createdAt.UTC()
	p.UpdatedAt = updatedAt.UTC()
	return &p, nil
}
