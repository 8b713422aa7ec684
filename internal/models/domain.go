package models

import (
	"time"

	"github.com/google/uuid"
)

// Phrase status constants. Only approved phrases are eligible for a run.
const (
	PhraseStatusPending  = "pending"
	PhraseStatusApproved = "approved"
	PhraseStatusRejected = "rejected"
)

// Domain is a target website whose visibility in AI answers is measured.
type Domain struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Hostname  string    `json:"hostname"`
	CreatedAt time.Time `json:"created_at"`
}

// Phrase is a short query text tied to a domain and grouped under a keyword.
type Phrase struct {
	ID        uuid.UUID `json:"id"`
	DomainID  uuid.UUID `json:"domain_id"`
	Keyword   string    `json:"keyword"`
	Text      string    `json:"phrase"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// IsEligible reports whether the phrase can be evaluated.
func (p *Phrase) IsEligible() bool {
	return p.Status == PhraseStatusApproved && p.Text != ""
}
