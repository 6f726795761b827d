package storage

import (
	"context"
	"errors"
	"fmt"

	"gatekeeper/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS policies (
	id           UUID PRIMARY KEY,
	name         TEXT NOT NULL UNIQUE,
	capacity     INTEGER NOT NULL,
	window_ms    BIGINT NOT NULL,
	key_strategy TEXT NOT NULL,
	message      TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
`

// PostgresStorage implements the Storage interface using PostgreSQL, for
// deployments that already run a shared database. Only policy records are
// stored; bucket state remains process-local.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a new PostgreSQL storage instance and ensures
// the schema exists.
func NewPostgresStorage(config Config) (*PostgresStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	pool, err := pgxpool.New(context.Background(), config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// Policies returns all persisted policy records, sorted by name.
func (ps *PostgresStorage) Policies(ctx context.Context) ([]*models.Policy, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT id, name, capacity, window_ms, key_strategy, message, created_at, updated_at
		 FROM policies ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var policies []*models.Policy
	for rows.Next() {
		var p models.Policy
		if err := rows.Scan(&p.ID, &p.Name, &p.Capacity, &p.WindowMs,
			&p.KeyStrategy, &p.Message, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate policies: %w", err)
	}

	return policies, nil
}

// GetPolicy retrieves a policy record by name
func (ps *PostgresStorage) GetPolicy(ctx context.Context, name string) (*models.Policy, error) {
	var p models.Policy
	err := ps.pool.QueryRow(ctx,
		`SELECT id, name, capacity, window_ms, key_strategy, message, created_at, updated_at
		 FROM policies WHERE name = $1`, name).
		Scan(&p.ID, &p.Name, &p.Capacity, &p.WindowMs,
			&p.KeyStrategy, &p.Message, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPolicyNotFound
		}
		return nil, fmt.Errorf("failed to get policy %s: %w", name, err)
	}
	return &p, nil
}

// SavePolicy stores or updates a policy record (upsert by name).
func (ps *PostgresStorage) SavePolicy(ctx context.Context, policy *models.Policy) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO policies (id, name, capacity, window_ms, key_strategy, message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (name) DO UPDATE SET
			capacity = EXCLUDED.capacity,
			window_ms = EXCLUDED.window_ms,
			key_strategy = EXCLUDED.key_strategy,
			message = EXCLUDED.message,
			updated_at = EXCLUDED.updated_at`,
		policy.ID, policy.Name, policy.Capacity, policy.WindowMs,
		policy.KeyStrategy, policy.Message, policy.CreatedAt, policy.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save policy %s: %w", policy.Name, err)
	}
	return nil
}

// DeletePolicy removes a policy record by name
func (ps *PostgresStorage) DeletePolicy(ctx context.Context, name string) error {
	tag, err := ps.pool.Exec(ctx, `DELETE FROM policies WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete policy %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPolicyNotFound
	}
	return nil
}

// Ping verifies the database connection is alive
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}
