package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"aivisibility/internal/db"
	"aivisibility/internal/engine"
	"aivisibility/internal/models"
	"aivisibility/internal/validation"
)

// DomainStore is the persistence used by the run and result handlers.
type DomainStore interface {
	GetDomain(ctx context.Context, id uuid.UUID) (*models.Domain, error)
	ListEligiblePhrases(ctx context.Context, domainID uuid.UUID) ([]models.Phrase, error)
	ListLatestResults(ctx context.Context, domainID uuid.UUID, limit int) ([]models.QueryResult, error)
	ListRunResults(ctx context.Context, runID uuid.UUID) ([]models.QueryResult, error)
}

// RunStarter admits and starts orchestration runs.
type RunStarter interface {
	Start(ctx context.Context, domain models.Domain, phrases []models.Phrase, opts engine.RunOptions) (*engine.Run, <-chan engine.Event, error)
}

// RunHandler starts runs and streams their progress as server-sent events.
type RunHandler struct {
	baseCtx    context.Context
	store      DomainStore
	runs       RunStarter
	runTimeout time.Duration
}

// NewRunHandler creates a run handler. Runs are cancelled after runTimeout or
// when baseCtx is cancelled, whichever comes first.
func NewRunHandler(baseCtx context.Context, store DomainStore, runs RunStarter, runTimeout time.Duration) *RunHandler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &RunHandler{baseCtx: baseCtx, store: store, runs: runs, runTimeout: runTimeout}
}

// Start opens a run for a domain and streams its events until the terminal one.
func (h *RunHandler) Start(c fiber.Ctx) error {
	domain, ok := lookupDomain(c, h.store)
	if !ok {
		return nil
	}

	location, ok := validation.NormalizeLocation(c.Query("location"))
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid location")
	}

	phrases, err := h.store.ListEligiblePhrases(c.Context(), domain.ID)
	if err != nil {
		slog.Error("failed to list phrases", "domain_id", domain.ID, "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch phrases")
	}
	if len(phrases) == 0 {
		return jsonError(c, fiber.StatusBadRequest, "domain has no eligible phrases")
	}

	opts := engine.RunOptions{Location: location}
	if c.Query("resume") == "true" {
		prior, err := h.store.ListLatestResults(c.Context(), domain.ID, 0)
		if err != nil {
			slog.Error("failed to load prior results", "domain_id", domain.ID, "error", err)
			return jsonError(c, fiber.StatusInternalServerError, "failed to fetch prior results")
		}
		opts.Prior = prior
	}

	// The run outlives the request handler; the stream writer owns cancel.
	ctx, cancel := context.WithTimeout(h.baseCtx, h.runTimeout)
	run, events, err := h.runs.Start(ctx, *domain, phrases, opts)
	if err != nil {
		cancel()
		switch {
		case errors.Is(err, engine.ErrTooManyRuns):
			return jsonError(c, fiber.StatusTooManyRequests, "too many concurrent runs for this domain")
		case errors.Is(err, engine.ErrNoPhrases), errors.Is(err, engine.ErrTooManyTasks):
			return jsonError(c, fiber.StatusBadRequest, err.Error())
		default:
			slog.Error("failed to start run", "domain_id", domain.ID, "error", err)
			return jsonError(c, fiber.StatusInternalServerError, "failed to start run")
		}
	}

	slog.Info("run accepted", "run_id", run.ID, "domain_id", domain.ID, "phrases", len(run.Tasks), "resume", len(opts.Prior) > 0)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")
	c.Set("X-Run-ID", run.ID.String())

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for ev := range events {
			if err := writeEvent(w, ev); err != nil {
				slog.Info("client disconnected, cancelling run", "run_id", run.ID, "error", err)
				run.Abandon()
				return
			}
		}
	})
}

// writeEvent frames one event as SSE and flushes it to the client.
func writeEvent(w *bufio.Writer, ev engine.Event) error {
	data, err := json.Marshal(ev.Data())
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", ev.Type, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	return w.Flush()
}

// lookupDomain resolves the :domainId route param. On failure it writes the
// error response and returns false.
func lookupDomain(c fiber.Ctx, store DomainStore) (*models.Domain, bool) {
	id, err := uuid.Parse(c.Params("domainId"))
	if err != nil {
		_ = jsonError(c, fiber.StatusBadRequest, "invalid domain id")
		return nil, false
	}

	domain, err := store.GetDomain(c.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrDomainNotFound) {
			_ = jsonError(c, fiber.StatusNotFound, "domain not found")
			return nil, false
		}
		slog.Error("failed to fetch domain", "domain_id", id, "error", err)
		_ = jsonError(c, fiber.StatusInternalServerError, "failed to fetch domain")
		return nil, false
	}
	return domain, true
}
