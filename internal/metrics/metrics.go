package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"aivisibility/internal/models"
)

// Outcome label values.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
	OutcomeSuccess   = "success"
	OutcomeTimeout   = "timeout"
)

var (
	storedResultsDesc = prometheus.NewDesc(
		"aivis_stored_results",
		"Persisted evaluation results by model",
		[]string{"model"},
		nil,
	)

	runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aivis_runs_total",
		Help: "Orchestration runs by outcome",
	}, []string{"outcome"})

	activeRuns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aivis_active_runs",
		Help: "Runs currently executing in this process",
	})

	evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aivis_evaluations_total",
		Help: "Model evaluations by model and outcome",
	}, []string{"model", "outcome"})

	evaluationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aivis_evaluation_latency_seconds",
		Help:    "Invoke-to-score latency of model evaluations",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 90},
	}, []string{"model"})

	heuristicScores = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aivis_heuristic_scores_total",
		Help: "Evaluations scored by the heuristic fallback scorer",
	}, []string{"model"})

	fallbackActivations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aivis_fallback_activations_total",
		Help: "Times a domain crossed the timeout threshold and switched to the fallback roster",
	})
)

// ResultCounter is the subset of the database used by ResultCollector.
type ResultCounter interface {
	CountResultsByModel(ctx context.Context) ([]models.ModelCount, error)
}

// ResultCollector is a custom Prometheus collector that reads persisted result
// counts from the database on each scrape.
type ResultCollector struct {
	db ResultCounter
}

// Describe sends the metric descriptor to the channel.
func (c *ResultCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- storedResultsDesc
}

// Collect queries the database for per-model counts and emits them as gauges.
func (c *ResultCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := c.db.CountResultsByModel(ctx)
	if err != nil {
		slog.Error("failed to collect stored result metrics", "error", err)
		return
	}
	for _, mc := range counts {
		ch <- prometheus.MustNewConstMetric(
			storedResultsDesc,
			prometheus.GaugeValue,
			float64(mc.Count),
			mc.Model,
		)
	}
}

var initOnce sync.Once

// Init registers all collectors with the default registry.
// database may be nil, in which case the stored-results collector is skipped.
// Must be called once at startup.
func Init(database ResultCounter) {
	initOnce.Do(func() {
		prometheus.MustRegister(runsTotal, activeRuns, evaluationsTotal, evaluationLatency, heuristicScores, fallbackActivations)
		if database != nil {
			prometheus.MustRegister(&ResultCollector{db: database})
		}
	})
}

// RecordRun counts a run by outcome.
func RecordRun(outcome string) {
	runsTotal.WithLabelValues(outcome).Inc()
}

// RunStarted and RunFinished track executing runs.
func RunStarted()  { activeRuns.Inc() }
func RunFinished() { activeRuns.Dec() }

// RecordEvaluation counts one model evaluation and observes its latency.
func RecordEvaluation(model, outcome string, latency time.Duration) {
	evaluationsTotal.WithLabelValues(model, outcome).Inc()
	if outcome == OutcomeSuccess {
		evaluationLatency.WithLabelValues(model).Observe(latency.Seconds())
	}
}

// RecordHeuristicScore counts a scorer fallback.
func RecordHeuristicScore(model string) {
	heuristicScores.WithLabelValues(model).Inc()
}

// RecordFallback counts a roster degradation.
func RecordFallback() {
	fallbackActivations.Inc()
}
