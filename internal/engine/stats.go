package engine

import (
	"math"
	"sort"
	"sync"

	"aivisibility/internal/models"
)

// ModelStats is the rollup for one model or for the whole result set.
type ModelStats struct {
	Count        int     `json:"count"`
	PresenceRate int     `json:"presenceRate"` // percent, 0-100
	AvgRelevance float64 `json:"avgRelevance"`
	AvgAccuracy  float64 `json:"avgAccuracy"`
	AvgSentiment float64 `json:"avgSentiment"`
	AvgOverall   float64 `json:"avgOverall"`
}

// AggregateStats holds per-model and overall rollups.
type AggregateStats struct {
	Overall ModelStats            `json:"overall"`
	ByModel map[string]ModelStats `json:"byModel"`
}

// Models returns the model names in sorted order.
func (s AggregateStats) Models() []string {
	names := make([]string, 0, len(s.ByModel))
	for name := range s.ByModel {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type sums struct {
	count     int
	present   int
	relevance float64
	accuracy  float64
	sentiment float64
	overall   float64
}

func (s *sums) add(v *models.ScoreVector) {
	s.count++
	if v.Presence == 1 {
		s.present++
	}
	s.relevance += v.Relevance
	s.accuracy += v.Accuracy
	s.sentiment += v.Sentiment
	s.overall += v.Overall
}

func (s *sums) stats() ModelStats {
	if s.count == 0 {
		return ModelStats{}
	}
	n := float64(s.count)
	return ModelStats{
		Count:        s.count,
		PresenceRate: int(math.Round(float64(s.present) / n * 100)),
		AvgRelevance: round1(s.relevance / n),
		AvgAccuracy:  round1(s.accuracy / n),
		AvgSentiment: round1(s.sentiment / n),
		AvgOverall:   round1(s.overall / n),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Aggregator folds results into running sums. Rounding happens only in
// Snapshot, so a snapshot equals Compute over the same results.
type Aggregator struct {
	mu      sync.Mutex
	overall sums
	byModel map[string]*sums
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{byModel: make(map[string]*sums)}
}

// Add folds one result in. Entries without a model or scores are skipped.
func (a *Aggregator) Add(model string, scores *models.ScoreVector) bool {
	if model == "" || scores == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	group, ok := a.byModel[model]
	if !ok {
		group = &sums{}
		a.byModel[model] = group
	}
	group.add(scores)
	a.overall.add(scores)
	return true
}

// Snapshot returns the current rollups.
func (a *Aggregator) Snapshot() AggregateStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := AggregateStats{
		Overall: a.overall.stats(),
		ByModel: make(map[string]ModelStats, len(a.byModel)),
	}
	for model, group := range a.byModel {
		out.ByModel[model] = group.stats()
	}
	return out
}

// Compute builds rollups from a full result set.
func Compute(results []models.QueryResult) AggregateStats {
	agg := NewAggregator()
	for i := range results {
		agg.Add(results[i].Model, results[i].Scores)
	}
	return agg.Snapshot()
}
