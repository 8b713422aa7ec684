// Package engine orchestrates visibility runs: it expands phrases against the
// active model roster, executes them in batches under per-domain admission and
// timeout-driven fallback, and streams typed progress events.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"aivisibility/internal/counters"
	"aivisibility/internal/metrics"
	"aivisibility/internal/models"
)

// Invoker calls one AI model with a phrase.
type Invoker interface {
	Invoke(ctx context.Context, req InvokeRequest) (*Invocation, error)
}

// Scorer turns a model response into a ScoreVector.
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) (*models.ScoreVector, error)
}

// ResultStore persists completed evaluations.
type ResultStore interface {
	SaveResult(ctx context.Context, result *models.QueryResult) error
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, req InvokeRequest) (*Invocation, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, req InvokeRequest) (*Invocation, error) {
	return f(ctx, req)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, req ScoreRequest) (*models.ScoreVector, error)

// Score calls f.
func (f ScorerFunc) Score(ctx context.Context, req ScoreRequest) (*models.ScoreVector, error) {
	return f(ctx, req)
}

// InvokeRequest is one model call.
type InvokeRequest struct {
	Model    string
	Phrase   string
	Keyword  string
	Location string
	Domain   models.Domain
}

// Invocation is a model's answer and what it cost.
type Invocation struct {
	Text string
	Cost float64
}

// ScoreRequest asks for a judgment of one response.
type ScoreRequest struct {
	Model    string
	Phrase   string
	Keyword  string
	Response string
	Domain   models.Domain
}

// QueryTask is one phrase of a run, before a model is assigned.
type QueryTask struct {
	DomainID uuid.UUID
	PhraseID uuid.UUID
	Keyword  string
	Phrase   string
}

const defaultDrainTimeout = 10 * time.Second

// Config tunes the engine.
type Config struct {
	Rosters           Rosters
	InvokeTimeout     time.Duration
	ScoreTimeout      time.Duration
	BatchPause        time.Duration
	MaxTasks          int
	MaxRunsPerDomain  int
	FallbackThreshold int
	// DrainTimeout bounds how long a cancelled run waits for its consumer
	// to read the remaining events. Zero means 10s.
	DrainTimeout time.Duration
}

// RunOptions carries per-run caller parameters.
type RunOptions struct {
	Location string
	// Prior results whose triples are skipped in this run when their
	// location matches Location.
	Prior []models.QueryResult
}

// Run is one end-to-end orchestration of a domain's phrase set.
type Run struct {
	ID       uuid.UUID
	Domain   models.Domain
	Tasks    []QueryTask
	Location string

	dedup    *Deduplicator
	release  func()
	gone     chan struct{}
	goneOnce sync.Once
}

// NewRun builds a run over tasks. Prior results for the same location are
// pre-marked as done.
func NewRun(domain models.Domain, tasks []QueryTask, opts RunOptions) *Run {
	run := &Run{
		ID:       uuid.New(),
		Domain:   domain,
		Tasks:    tasks,
		Location: opts.Location,
		dedup:    NewDeduplicator(),
		gone:     make(chan struct{}),
	}
	for _, r := range opts.Prior {
		if r.Location != opts.Location {
			continue
		}
		run.dedup.Mark(TaskKey{Phrase: r.Phrase, Model: r.Model, Keyword: r.Keyword})
	}
	return run
}

// Abandon tells the run its consumer stopped reading events. Pending and
// future events are dropped. Safe to call more than once.
func (r *Run) Abandon() {
	r.goneOnce.Do(func() { close(r.gone) })
}

// stopped reports why the run must stop, or nil to keep going.
func (r *Run) stopped(ctx context.Context) error {
	select {
	case <-r.gone:
		return ErrRunAbandoned
	default:
		return ctx.Err()
	}
}

func (r *Run) done() {
	if r.release != nil {
		r.release()
	}
}

// Engine runs orchestration runs.
type Engine struct {
	cfg       Config
	invoker   Invoker
	scorer    Scorer
	results   ResultStore
	admission *Admission
	selector  *FallbackSelector
	heuristic HeuristicScorer
}

// New creates an engine. scorer and results may be nil: the heuristic scorer
// is then always used and results are not persisted.
func New(cfg Config, store counters.Store, invoker Invoker, scorer Scorer, results ResultStore) *Engine {
	return &Engine{
		cfg:       cfg,
		invoker:   invoker,
		scorer:    scorer,
		results:   results,
		admission: NewAdmission(store, cfg.MaxRunsPerDomain),
		selector:  NewFallbackSelector(cfg.Rosters, NewTimeoutTracker(store, cfg.FallbackThreshold)),
	}
}

// Admission returns the engine's admission controller.
func (e *Engine) Admission() *Admission {
	return e.admission
}

// Prepare validates the phrase set and builds a run. It does not take a run slot.
func (e *Engine) Prepare(ctx context.Context, domain models.Domain, phrases []models.Phrase, opts RunOptions) (*Run, error) {
	tasks := make([]QueryTask, 0, len(phrases))
	for i := range phrases {
		p := &phrases[i]
		if !p.IsEligible() {
			continue
		}
		tasks = append(tasks, QueryTask{
			DomainID: domain.ID,
			PhraseID: p.ID,
			Keyword:  p.Keyword,
			Phrase:   p.Text,
		})
	}
	if len(tasks) == 0 {
		return nil, ErrNoPhrases
	}

	roster, _ := e.selector.Select(ctx, domain.ID.String())
	if total := len(tasks) * len(roster); e.cfg.MaxTasks > 0 && total > e.cfg.MaxTasks {
		return nil, fmt.Errorf("%w: %d tasks, limit %d", ErrTooManyTasks, total, e.cfg.MaxTasks)
	}

	return NewRun(domain, tasks, opts), nil
}

// Start admits and prepares a run, then executes it in the background.
// The returned channel yields events until exactly one terminal event, then closes.
// Admission is released on every exit path.
func (e *Engine) Start(ctx context.Context, domain models.Domain, phrases []models.Phrase, opts RunOptions) (*Run, <-chan Event, error) {
	release, err := e.admission.Acquire(ctx, domain.ID.String())
	if err != nil {
		if errors.Is(err, ErrTooManyRuns) {
			metrics.RecordRun(metrics.OutcomeRejected)
		}
		return nil, nil, err
	}

	run, err := e.Prepare(ctx, domain, phrases, opts)
	if err != nil {
		release()
		metrics.RecordRun(metrics.OutcomeRejected)
		return nil, nil, err
	}
	run.release = release

	return run, e.Stream(ctx, run), nil
}

// Stream executes run in the background and returns its event stream. The
// consumer must drain the channel or call run.Abandon when it stops reading.
func (e *Engine) Stream(ctx context.Context, run *Run) <-chan Event {
	grace := e.cfg.DrainTimeout
	if grace <= 0 {
		grace = defaultDrainTimeout
	}
	out := newStream(ctx, run.gone, 16, grace, run.Abandon)
	go e.execute(ctx, run, out)
	return out.ch
}

// runState is the mutable bookkeeping of one executing run.
type runState struct {
	agg       *Aggregator
	planned   atomic.Int64
	completed atomic.Int64
	baseWidth int
	degraded  atomic.Bool
}

func (s *runState) percent(done int64) int {
	planned := s.planned.Load()
	if planned <= 0 {
		return 100
	}
	return int(min(done*100/planned, 100))
}

func (e *Engine) execute(ctx context.Context, run *Run, out *stream) {
	defer run.done()
	metrics.RunStarted()
	defer metrics.RunFinished()

	domainID := run.Domain.ID.String()
	log := slog.With("run_id", run.ID, "domain_id", domainID)

	if len(run.Tasks) == 0 {
		out.finish(errorEvent(ErrNoPhrases.Error(), true))
		metrics.RecordRun(metrics.OutcomeFailed)
		return
	}

	roster, degraded := e.selector.Select(ctx, domainID)
	st := &runState{agg: NewAggregator(), baseWidth: len(roster)}
	st.planned.Store(int64(len(run.Tasks) * len(roster)))
	st.degraded.Store(degraded)

	batches := Partition(run.Tasks)
	started := time.Now()
	log.Info("run started", "tasks", len(run.Tasks), "models", len(roster), "batches", len(batches), "degraded", degraded)

	out.emit(progressEvent(fmt.Sprintf("Starting %d phrases across %d models (%s) in %d batches",
		len(run.Tasks), len(roster), strings.Join(roster, ", "), len(batches))))
	if degraded {
		out.emit(progressEvent("Domain has recent model timeouts; using fallback models: " + strings.Join(roster, ", ")))
	}

	var stopErr error
	for i, batch := range batches {
		if stopErr = run.stopped(ctx); stopErr != nil {
			break
		}
		out.emit(progressEvent(fmt.Sprintf("Processing batch %d of %d (%d phrases)", i+1, len(batches), len(batch))))

		g, gctx := errgroup.WithContext(ctx)
		for _, task := range batch {
			g.Go(func() error {
				return e.dispatch(gctx, run, st, out, task)
			})
		}
		stopErr = g.Wait()

		out.emit(statsEvent(st.agg.Snapshot()))
		if stopErr != nil {
			break
		}

		if i < len(batches)-1 && e.cfg.BatchPause > 0 {
			select {
			case <-ctx.Done():
			case <-run.gone:
			case <-time.After(e.cfg.BatchPause):
			}
		}
	}

	if stopErr == nil {
		stopErr = run.stopped(ctx)
	}
	if err := stopErr; err != nil {
		log.Warn("run cancelled", "error", err, "elapsed", time.Since(started))
		out.finish(errorEvent(fmt.Sprintf("%s: %v", ErrRunCancelled, err), true))
		metrics.RecordRun(metrics.OutcomeCancelled)
		return
	}

	log.Info("run completed", "results", st.agg.Snapshot().Overall.Count, "elapsed", time.Since(started))
	out.finish(Event{Type: EventComplete})
	metrics.RecordRun(metrics.OutcomeCompleted)
}

// dispatch evaluates one phrase against the roster active at dispatch time.
// Each model runs independently; a slow model never blocks its siblings.
// It returns an error only when the run itself must stop.
func (e *Engine) dispatch(ctx context.Context, run *Run, st *runState, out *stream, task QueryTask) error {
	roster, degraded := e.selector.Select(ctx, run.Domain.ID.String())
	if degraded && st.degraded.CompareAndSwap(false, true) {
		out.emit(progressEvent("Switching to fallback models: " + strings.Join(roster, ", ")))
	}
	if delta := len(roster) - st.baseWidth; delta != 0 {
		st.planned.Add(int64(delta))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, model := range roster {
		g.Go(func() error {
			e.evaluate(gctx, run, st, out, task, model)
			return run.stopped(gctx)
		})
	}
	return g.Wait()
}

func (e *Engine) evaluate(ctx context.Context, run *Run, st *runState, out *stream, task QueryTask, model string) {
	if !run.dedup.Claim(TaskKey{Phrase: task.Phrase, Model: model, Keyword: task.Keyword}) {
		st.completed.Add(1)
		return
	}

	domainID := run.Domain.ID.String()
	invokeStart := time.Now()
	inv, err := WithDeadline(ctx, e.cfg.InvokeTimeout, func(c context.Context) (*Invocation, error) {
		return e.invoker.Invoke(c, InvokeRequest{
			Model:    model,
			Phrase:   task.Phrase,
			Keyword:  task.Keyword,
			Location: run.Location,
			Domain:   run.Domain,
		})
	})
	if err == nil && inv == nil {
		err = errors.New("empty invocation")
	}
	if err != nil {
		st.completed.Add(1)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrDeadlineExceeded) {
			metrics.RecordEvaluation(model, metrics.OutcomeTimeout, time.Since(invokeStart))
			count, tripped := e.selector.RecordTimeout(ctx, domainID)
			out.emit(progressEvent(fmt.Sprintf("%s timed out on %q (%d recent timeouts for this domain)", model, task.Phrase, count)))
			if tripped {
				metrics.RecordFallback()
				slog.Warn("timeout threshold reached, degrading roster", "run_id", run.ID, "domain_id", domainID, "timeouts", count)
			}
			return
		}
		metrics.RecordEvaluation(model, metrics.OutcomeFailed, time.Since(invokeStart))
		slog.Warn("model invocation failed", "run_id", run.ID, "model", model, "error", err)
		out.emit(errorEvent(fmt.Sprintf("%s failed on %q: %v", model, task.Phrase, err), false))
		return
	}

	scores, scoredBy := e.score(ctx, run, out, task, model, inv.Text)
	if ctx.Err() != nil {
		st.completed.Add(1)
		return
	}
	latency := time.Since(invokeStart)

	result := &models.QueryResult{
		ID:        uuid.New(),
		RunID:     run.ID,
		DomainID:  run.Domain.ID,
		PhraseID:  task.PhraseID,
		Keyword:   task.Keyword,
		Phrase:    task.Phrase,
		Model:     model,
		Location:  run.Location,
		Response:  inv.Text,
		LatencyMs: latency.Milliseconds(),
		Cost:      inv.Cost,
		Scores:    scores,
		ScoredBy:  scoredBy,
		CreatedAt: time.Now(),
	}
	if e.results != nil {
		if err := e.results.SaveResult(ctx, result); err != nil {
			slog.Error("failed to save result", "run_id", run.ID, "model", model, "error", err)
			out.emit(errorEvent(fmt.Sprintf("failed to save result for %s on %q: %v", model, task.Phrase, err), false))
		}
	}

	st.agg.Add(model, scores)
	metrics.RecordEvaluation(model, metrics.OutcomeSuccess, latency)
	done := st.completed.Add(1)

	out.emit(Event{Type: EventResult, Result: &ResultEvent{
		Keyword:  task.Keyword,
		Phrase:   task.Phrase,
		Model:    model,
		Response: inv.Text,
		Latency:  latency.Milliseconds(),
		Cost:     inv.Cost,
		Scores:   scores,
		Progress: st.percent(done),
	}})
}

// score never returns nil scores: scorer failures fall back to the heuristic.
func (e *Engine) score(ctx context.Context, run *Run, out *stream, task QueryTask, model, text string) (*models.ScoreVector, string) {
	req := ScoreRequest{
		Model:    model,
		Phrase:   task.Phrase,
		Keyword:  task.Keyword,
		Response: text,
		Domain:   run.Domain,
	}
	if e.scorer == nil {
		return e.heuristic.Score(req), models.ScoredByHeuristic
	}

	vec, err := WithDeadline(ctx, e.cfg.ScoreTimeout, func(c context.Context) (*models.ScoreVector, error) {
		return e.scorer.Score(c, req)
	})
	if err == nil && vec != nil {
		vec.Clamp()
		return vec, models.ScoredByModel
	}

	if ctx.Err() == nil {
		switch {
		case errors.Is(err, ErrDeadlineExceeded):
			out.emit(progressEvent(fmt.Sprintf("Scoring timed out for %s on %q; using heuristic scores", model, task.Phrase)))
		case err != nil:
			out.emit(errorEvent(fmt.Sprintf("scoring failed for %s on %q: %v; using heuristic scores", model, task.Phrase, err), false))
		}
		metrics.RecordHeuristicScore(model)
	}
	return e.heuristic.Score(req), models.ScoredByHeuristic
}
