package db

import (
	"context"

	"github.com/google/uuid"

	"aivisibility/internal/models"
)

// CreatePhrase inserts a phrase for a domain.
func (d *DB) CreatePhrase(ctx context.Context, domainID uuid.UUID, keyword, text, status string) (*models.Phrase, error) {
	var p models.Phrase
	err := d.Pool.QueryRow(ctx, `
		INSERT INTO phrases (domain_id, keyword, phrase, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, domain_id, keyword, phrase, status, created_at
	`, domainID, keyword, text, status).Scan(&p.ID, &p.DomainID, &p.Keyword, &p.Text, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListEligiblePhrases returns a domain's approved phrases, oldest first.
func (d *DB) ListEligiblePhrases(ctx context.Context, domainID uuid.UUID) ([]models.Phrase, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT id, domain_id, keyword, phrase, status, created_at
		FROM phrases
		WHERE domain_id = $1 AND status = $2 AND phrase <> ''
		ORDER BY created_at, id
	`, domainID, models.PhraseStatusApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var phrases []models.Phrase
	for rows.Next() {
		var p models.Phrase
		if err := rows.Scan(&p.ID, &p.DomainID, &p.Keyword, &p.Text, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		phrases = append(phrases, p)
	}
	return phrases, rows.Err()
}
