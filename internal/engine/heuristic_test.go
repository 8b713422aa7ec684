package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aivisibility/internal/models"
)

func TestHeuristicScorerPresence(t *testing.T) {
	domain := models.Domain{Name: "Acme", Hostname: "www.acme.com"}
	tests := []struct {
		name     string
		response string
		presence int
	}{
		{name: "hostname", response: "Try acme.com for this.", presence: 1},
		{name: "site label word", response: "Many teams like Acme for invoicing.", presence: 1},
		{name: "absent", response: "Consider Globex or Initech.", presence: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vec := HeuristicScorer{}.Score(ScoreRequest{Phrase: "invoicing software", Response: tt.response, Domain: domain})
			require.NotNil(t, vec)
			assert.Equal(t, tt.presence, vec.Presence)
		})
	}
}

func TestHeuristicScorerTermOverlapAndLength(t *testing.T) {
	domain := models.Domain{Hostname: "acme.com"}

	short := HeuristicScorer{}.Score(ScoreRequest{Phrase: "invoicing software", Response: "No idea.", Domain: domain})
	long := HeuristicScorer{}.Score(ScoreRequest{
		Phrase:   "invoicing software",
		Response: "Good invoicing software includes several options that small businesses rely on for billing, reminders and reporting across many currencies.",
		Domain:   domain,
	})

	assert.Equal(t, 1.0, short.Relevance)
	assert.Equal(t, 5.0, long.Relevance)
	assert.Greater(t, long.Accuracy, short.Accuracy)
	assert.Equal(t, heuristicConfidence, long.Confidence)
}

func TestHeuristicScorerSources(t *testing.T) {
	vec := HeuristicScorer{}.Score(ScoreRequest{
		Phrase: "best crm",
		Response: "See https://globex.io/crm, then https://www.acme.com/pricing. " +
			"Also https://globex.io/crm again and https://initech.net.",
		Domain: models.Domain{Hostname: "acme.com"},
	})

	assert.Equal(t, []string{"https://globex.io/crm", "https://www.acme.com/pricing", "https://initech.net"}, vec.Sources)
	assert.Equal(t, []string{"globex.io", "acme.com", "initech.net"}, vec.FoundDomains)
	assert.Equal(t, []string{"https://globex.io/crm", "https://initech.net"}, vec.CompetitorURLs)
	require.NotNil(t, vec.DomainRank)
	assert.Equal(t, 2, *vec.DomainRank)
	assert.Equal(t, 1, vec.Presence)
	assert.Equal(t, 0.7, vec.CompetitorMatchScore)
}

func TestHeuristicScorerEmptyResponse(t *testing.T) {
	vec := HeuristicScorer{}.Score(ScoreRequest{Phrase: "", Response: ""})
	require.NotNil(t, vec)
	assert.Equal(t, 0, vec.Presence)
	assert.NotNil(t, vec.Sources)
	assert.NotNil(t, vec.CompetitorURLs)
	assert.Nil(t, vec.DomainRank)
	assert.GreaterOrEqual(t, vec.Overall, 0.0)
	assert.LessOrEqual(t, vec.Overall, 5.0)
}
