package db

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"aivisibility/internal/models"
)

// CreateDomain inserts a new domain.
func (d *DB) CreateDomain(ctx context.Context, name, hostname string) (*models.Domain, error) {
	var domain models.Domain
	err := d.Pool.QueryRow(ctx, `
		INSERT INTO domains (name, hostname)
		VALUES ($1, $2)
		RETURNING id, name, hostname, created_at
	`, name, strings.ToLower(hostname)).Scan(&domain.ID, &domain.Name, &domain.Hostname, &domain.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateHostname
		}
		return nil, err
	}
	return &domain, nil
}

// GetDomain retrieves a domain by ID.
func (d *DB) GetDomain(ctx context.Context, id uuid.UUID) (*models.Domain, error) {
	var domain models.Domain
	err := d.Pool.QueryRow(ctx, `
		SELECT id, name, hostname, created_at FROM domains WHERE id = $1
	`, id).Scan(&domain.ID, &domain.Name, &domain.Hostname, &domain.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDomainNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain, nil
}
