package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"aivisibility/internal/models"
)

func result(model string, presence int, rel, acc, sent, overall float64) models.QueryResult {
	return models.QueryResult{
		Model: model,
		Scores: &models.ScoreVector{
			Presence:  presence,
			Relevance: rel,
			Accuracy:  acc,
			Sentiment: sent,
			Overall:   overall,
		},
	}
}

func TestComputePresenceRate(t *testing.T) {
	results := []models.QueryResult{
		result("a", 1, 3, 3, 3, 3),
		result("a", 0, 3, 3, 3, 3),
		result("b", 1, 3, 3, 3, 3),
		result("b", 1, 3, 3, 3, 3),
	}

	stats := Compute(results)
	assert.Equal(t, 75, stats.Overall.PresenceRate)
	assert.Equal(t, 4, stats.Overall.Count)
	assert.Equal(t, 50, stats.ByModel["a"].PresenceRate)
	assert.Equal(t, 100, stats.ByModel["b"].PresenceRate)
	assert.Equal(t, []string{"a", "b"}, stats.Models())
}

func TestComputeAveragesRoundToOneDecimal(t *testing.T) {
	results := []models.QueryResult{
		result("a", 1, 1, 4, 2, 5),
		result("a", 0, 2, 4, 2, 4),
		result("a", 0, 2, 5, 3, 4),
	}

	s := Compute(results).ByModel["a"]
	assert.Equal(t, 1.7, s.AvgRelevance)
	assert.Equal(t, 4.3, s.AvgAccuracy)
	assert.Equal(t, 2.3, s.AvgSentiment)
	assert.Equal(t, 4.3, s.AvgOverall)
	assert.Equal(t, 33, s.PresenceRate)
}

func TestComputeSkipsMalformedEntries(t *testing.T) {
	results := []models.QueryResult{
		result("a", 1, 5, 5, 5, 5),
		{Model: "", Scores: &models.ScoreVector{Presence: 1}},
		{Model: "b", Scores: nil},
	}

	stats := Compute(results)
	assert.Equal(t, 1, stats.Overall.Count)
	assert.NotContains(t, stats.ByModel, "b")
	assert.NotContains(t, stats.ByModel, "")
}

func TestComputeEmpty(t *testing.T) {
	stats := Compute(nil)
	assert.Equal(t, 0, stats.Overall.Count)
	assert.Empty(t, stats.ByModel)
}

func TestAggregatorMatchesCompute(t *testing.T) {
	results := []models.QueryResult{
		result("a", 1, 1.2, 3.4, 2.2, 4.1),
		result("b", 0, 4.9, 0.3, 1.1, 2.6),
		result("a", 0, 2.7, 2.2, 3.3, 1.9),
		result("c", 1, 5, 5, 5, 5),
		result("b", 1, 0.1, 4.4, 4.8, 3.3),
	}

	agg := NewAggregator()
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(r models.QueryResult) {
			defer wg.Done()
			agg.Add(r.Model, r.Scores)
		}(results[i])
	}
	wg.Wait()

	assert.Equal(t, Compute(results), agg.Snapshot())
}
