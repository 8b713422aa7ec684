package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryResult is one persisted model evaluation of a phrase.
type QueryResult struct {
	ID        uuid.UUID    `json:"id"`
	RunID     uuid.UUID    `json:"run_id"`
	DomainID  uuid.UUID    `json:"domain_id"`
	PhraseID  uuid.UUID    `json:"phrase_id"`
	Keyword   string       `json:"keyword"`
	Phrase    string       `json:"phrase"`
	Model     string       `json:"model"`
	Location  string       `json:"location,omitempty"`
	Response  string       `json:"response"`
	LatencyMs int64        `json:"latency_ms"`
	Cost      float64      `json:"cost"`
	Scores    *ScoreVector `json:"scores"`
	ScoredBy  string       `json:"scored_by"` // "model" or "heuristic"
	CreatedAt time.Time    `json:"created_at"`
}

// Scorer source constants.
const (
	ScoredByModel     = "model"
	ScoredByHeuristic = "heuristic"
)

// ModelCount is a per-model result count used for metrics export.
type ModelCount struct {
	Model string
	Count int64
}
