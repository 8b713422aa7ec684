package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"aivisibility/internal/engine"
	"aivisibility/internal/models"
	"aivisibility/internal/validation"
)

const (
	defaultResultLimit = 100
	maxResultLimit     = 1000
)

// ResultHandler serves stored results and their aggregate statistics.
type ResultHandler struct {
	store DomainStore
}

// NewResultHandler creates a result handler.
func NewResultHandler(store DomainStore) *ResultHandler {
	return &ResultHandler{store: store}
}

// List returns the newest result per (keyword, phrase, model) for a domain.
func (h *ResultHandler) List(c fiber.Ctx) error {
	domain, ok := lookupDomain(c, h.store)
	if !ok {
		return nil
	}

	limit := validation.ParseLimit(c.Query("limit"), defaultResultLimit, maxResultLimit)
	results, err := h.store.ListLatestResults(c.Context(), domain.ID, limit)
	if err != nil {
		slog.Error("failed to list results", "domain_id", domain.ID, "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch results")
	}
	if results == nil {
		results = []models.QueryResult{}
	}

	return jsonSuccess(c, results)
}

// Stats aggregates the newest result per (keyword, phrase, model) for a domain.
func (h *ResultHandler) Stats(c fiber.Ctx) error {
	domain, ok := lookupDomain(c, h.store)
	if !ok {
		return nil
	}

	results, err := h.store.ListLatestResults(c.Context(), domain.ID, 0)
	if err != nil {
		slog.Error("failed to list results", "domain_id", domain.ID, "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch results")
	}

	return jsonSuccess(c, engine.Compute(results))
}

// Run returns every result stored by one run, oldest first.
func (h *ResultHandler) Run(c fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("runId"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid run id")
	}

	results, err := h.store.ListRunResults(c.Context(), runID)
	if err != nil {
		slog.Error("failed to list run results", "run_id", runID, "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch results")
	}
	if results == nil {
		results = []models.QueryResult{}
	}

	return jsonSuccess(c, results)
}
