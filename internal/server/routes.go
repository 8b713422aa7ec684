package server

import (
	"context"

	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aivisibility/internal/handlers/api"
)

// Deps are the collaborators the HTTP routes are wired to.
type Deps struct {
	// BaseContext is cancelled on shutdown and ends every open run.
	BaseContext context.Context
	Store       api.DomainStore
	Runs        api.RunStarter
	Health      map[string]api.Pinger
}

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(deps Deps) {
	healthHandler := api.NewHealthHandler(deps.Health)
	runHandler := api.NewRunHandler(deps.BaseContext, deps.Store, deps.Runs, s.Cfg.RunTimeout)
	resultHandler := api.NewResultHandler(deps.Store)

	s.App.Get("/healthz", healthHandler.Check)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := s.App.Group("/api")
	v1.Post("/runs/:domainId", runHandler.Start)
	v1.Get("/runs/:runId/results", resultHandler.Run)
	v1.Get("/domains/:domainId/results", resultHandler.List)
	v1.Get("/domains/:domainId/stats", resultHandler.Stats)
}
