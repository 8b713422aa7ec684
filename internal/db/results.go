package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"aivisibility/internal/models"
)

const resultColumns = `id, run_id, domain_id, phrase_id, keyword, phrase, model, location,
	response, latency_ms, cost, scores, scored_by, created_at`

// SaveResult persists one evaluation.
func (d *DB) SaveResult(ctx context.Context, r *models.QueryResult) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := d.Pool.Exec(ctx, `
		INSERT INTO query_results (`+resultColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, r.ID, r.RunID, r.DomainID, r.PhraseID, r.Keyword, r.Phrase, r.Model, r.Location,
		r.Response, r.LatencyMs, r.Cost, r.Scores, r.ScoredBy, r.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateResult
		}
		return err
	}
	return nil
}

// ListLatestResults returns the newest result per (keyword, phrase, model)
// for a domain, newest first. limit <= 0 means no limit.
func (d *DB) ListLatestResults(ctx context.Context, domainID uuid.UUID, limit int) ([]models.QueryResult, error) {
	query := `
		SELECT ` + resultColumns + ` FROM (
			SELECT DISTINCT ON (keyword, phrase, model) ` + resultColumns + `
			FROM query_results
			WHERE domain_id = $1
			ORDER BY keyword, phrase, model, created_at DESC
		) latest
		ORDER BY created_at DESC, id`
	args := []any{domainID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanResults(rows)
}

// ListRunResults returns every result of one run in insertion order.
func (d *DB) ListRunResults(ctx context.Context, runID uuid.UUID) ([]models.QueryResult, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT `+resultColumns+` FROM query_results
		WHERE run_id = $1
		ORDER BY created_at, id
	`, runID)
	if err != nil {
		return nil, err
	}
	return scanResults(rows)
}

// CountResultsByModel returns the number of stored results per model.
func (d *DB) CountResultsByModel(ctx context.Context) ([]models.ModelCount, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT model, COUNT(*) FROM query_results GROUP BY model ORDER BY model
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.ModelCount
	for rows.Next() {
		var mc models.ModelCount
		if err := rows.Scan(&mc.Model, &mc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, mc)
	}
	return counts, rows.Err()
}

func scanResults(rows pgx.Rows) ([]models.QueryResult, error) {
	defer rows.Close()

	var results []models.QueryResult
	for rows.Next() {
		var r models.QueryResult
		if err := rows.Scan(
			&r.ID,
			&r.RunID,
			&r.DomainID,
			&r.PhraseID,
			&r.Keyword,
			&r.Phrase,
			&r.Model,
			&r.Location,
			&r.Response,
			&r.LatencyMs,
			&r.Cost,
			&r.Scores,
			&r.ScoredBy,
			&r.CreatedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
