package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"aivisibility/internal/config"
	"aivisibility/internal/db"
	"aivisibility/internal/engine"
	"aivisibility/internal/handlers/api"
	"aivisibility/internal/models"
)

type emptyStore struct{}

func (emptyStore) GetDomain(context.Context, uuid.UUID) (*models.Domain, error) {
	return nil, db.ErrDomainNotFound
}

func (emptyStore) ListEligiblePhrases(context.Context, uuid.UUID) ([]models.Phrase, error) {
	return nil, nil
}

func (emptyStore) ListLatestResults(context.Context, uuid.UUID, int) ([]models.QueryResult, error) {
	return nil, nil
}

func (emptyStore) ListRunResults(context.Context, uuid.UUID) ([]models.QueryResult, error) {
	return nil, nil
}

type noRuns struct{}

func (noRuns) Start(context.Context, models.Domain, []models.Phrase, engine.RunOptions) (*engine.Run, <-chan engine.Event, error) {
	return nil, nil, engine.ErrTooManyRuns
}

func newTestServer(rateLimit int) *Server {
	cfg := config.Load()
	cfg.RateLimit = rateLimit
	s := New(cfg, nil)
	s.RegisterRoutes(Deps{
		Store: emptyStore{},
		Runs:  noRuns{},
		Health: map[string]api.Pinger{
			"database": api.PingFunc(func(context.Context) error { return nil }),
		},
	})
	return s
}

func TestRoutes(t *testing.T) {
	s := newTestServer(100)

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
	}{
		{"health", http.MethodGet, "/healthz", 200},
		{"metrics", http.MethodGet, "/metrics", 200},
		{"unknown domain run", http.MethodPost, "/api/runs/" + uuid.NewString(), 404},
		{"unknown domain results", http.MethodGet, "/api/domains/" + uuid.NewString() + "/results", 404},
		{"unknown domain stats", http.MethodGet, "/api/domains/" + uuid.NewString() + "/stats", 404},
		{"run results", http.MethodGet, "/api/runs/" + uuid.NewString() + "/results", 200},
		{"unknown route", http.MethodGet, "/nope", 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := s.App.Test(httptest.NewRequest(tt.method, tt.target, nil))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, body)
			}
		})
	}
}

func TestErrorHandlerUsesJSONEnvelope(t *testing.T) {
	s := newTestServer(100)

	resp, err := s.App.Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	if err != nil {
		t.Fatal(err)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if body["status"] != "error" || body["error"] == "" {
		t.Errorf("unexpected error body: %v", body)
	}
}

func TestRateLimitSkipsHealth(t *testing.T) {
	s := newTestServer(2)
	target := "/api/domains/" + uuid.NewString() + "/stats"

	for i := 0; i < 2; i++ {
		resp, err := s.App.Test(httptest.NewRequest(http.MethodGet, target, nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			t.Fatalf("request %d rate limited too early", i+1)
		}
	}

	resp, err := s.App.Test(httptest.NewRequest(http.MethodGet, target, nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}

	resp, err = s.App.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200 while rate limited", resp.StatusCode)
	}
}
