package db

import (
	"context"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"aivisibility/migrations"
)

// DB wraps a pgxpool connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// RunMigrations runs all embedded SQL migrations.
func (d *DB) RunMigrations(connString string) error {
	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, connString)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.Pool.Ping(ctx)
}

// Close closes the connection pool.
func (d *DB) Close() {
	d.Pool.Close()
}

// SeedDevData inserts a demo domain with approved phrases for development.
// Existing rows are left untouched.
func (d *DB) SeedDevData(ctx context.Context) error {
	var domainID string
	err := d.Pool.QueryRow(ctx, `
		INSERT INTO domains (name, hostname)
		VALUES ('Example CRM', 'example-crm.com')
		ON CONFLICT (hostname) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`).Scan(&domainID)
	if err != nil {
		return fmt.Errorf("failed to seed domain: %w", err)
	}

	phrases := []struct {
		keyword string
		text    string
	}{
		{"crm", "What is the best CRM for a small business?"},
		{"crm", "Which CRM tools integrate well with email marketing?"},
		{"crm", "Affordable CRM alternatives to Salesforce"},
		{"sales pipeline", "How do I track a sales pipeline without spreadsheets?"},
		{"sales pipeline", "Best software for managing B2B sales deals"},
	}

	query := `
		INSERT INTO phrases (domain_id, keyword, phrase, status)
		VALUES ($1, $2, $3, 'approved')
		ON CONFLICT (domain_id, keyword, phrase) DO NOTHING
	`
	for _, p := range phrases {
		if _, err := d.Pool.Exec(ctx, query, domainID, p.keyword, p.text); err != nil {
			return fmt.Errorf("failed to seed phrase %q: %w", p.text, err)
		}
	}

	return nil
}
