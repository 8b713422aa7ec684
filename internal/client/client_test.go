package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"aivisibility/internal/engine"
)

const okStream = `event: progress
data: {"message":"Starting run"}

event: result
data: {"keyword":"crm","phrase":"best crm","model":"m1","response":"acme.com","latency":12,"cost":0.01,"scores":{"presence":1,"overall":4},"progress":50}

event: error
data: {"error":"m2 failed","fatal":false}

event: stats
data: {"overall":{"count":1,"presenceRate":100,"avgOverall":4},"byModel":{"m1":{"count":1,"presenceRate":100,"avgOverall":4}}}

event: complete
data: {}

`

func streamServer(t *testing.T, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("X-Run-ID", "run-1")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestStartRunReadsEventsUntilComplete(t *testing.T) {
	server := streamServer(t, okStream, func(r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/runs/d1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("location") != "Berlin" || r.URL.Query().Get("resume") != "true" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
	})

	var events []Event
	runID, err := New(server.URL+"/").StartRun(context.Background(), "d1", RunOptions{Location: "Berlin", Resume: true}, func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if runID != "run-1" {
		t.Errorf("runID = %q", runID)
	}
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5", len(events))
	}
	if events[0].Message != "Starting run" {
		t.Errorf("progress message = %q", events[0].Message)
	}
	if r := events[1].Result; r == nil || r.Model != "m1" || r.Progress != 50 || r.Scores.Presence != 1 {
		t.Errorf("unexpected result: %+v", r)
	}
	if events[2].Fatal || events[2].Message != "m2 failed" {
		t.Errorf("unexpected error event: %+v", events[2])
	}
	if s := events[3].Stats; s == nil || s.ByModel["m1"].Count != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
	if events[4].Type != engine.EventComplete {
		t.Errorf("last event = %s", events[4].Type)
	}
}

func TestStartRunFatalError(t *testing.T) {
	server := streamServer(t, "event: error\ndata: {\"error\":\"run cancelled\",\"fatal\":true}\n\n", nil)

	_, err := New(server.URL).StartRun(context.Background(), "d1", RunOptions{}, func(Event) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "run cancelled") {
		t.Fatalf("expected fatal run error, got %v", err)
	}
}

func TestStartRunStreamEndsEarly(t *testing.T) {
	server := streamServer(t, "event: progress\ndata: {\"message\":\"hi\"}\n\n", nil)

	_, err := New(server.URL).StartRun(context.Background(), "d1", RunOptions{}, func(Event) error { return nil })
	if !errors.Is(err, ErrStreamEnded) {
		t.Fatalf("expected ErrStreamEnded, got %v", err)
	}
}

func TestStartRunHandlerStops(t *testing.T) {
	server := streamServer(t, okStream, nil)
	stop := errors.New("stop")

	calls := 0
	_, err := New(server.URL).StartRun(context.Background(), "d1", RunOptions{}, func(Event) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("err = %v after %d calls", err, calls)
	}
}

func TestStartRunRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"status":"error","error":"too many concurrent runs for this domain"}`)
	}))
	defer server.Close()

	_, err := New(server.URL).StartRun(context.Background(), "d1", RunOptions{}, func(Event) error { return nil })
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || !strings.Contains(apiErr.Message, "too many") {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestStatsAndResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/domains/d1/stats":
			fmt.Fprint(w, `{"status":"ok","data":{"overall":{"count":2,"presenceRate":50},"byModel":{}}}`)
		case "/api/domains/d1/results":
			if r.URL.Query().Get("limit") != "5" {
				t.Errorf("limit = %q", r.URL.Query().Get("limit"))
			}
			fmt.Fprint(w, `{"status":"ok","data":[{"keyword":"crm","phrase":"best crm","model":"m1","scored_by":"model"}]}`)
		case "/api/runs/r1/results":
			fmt.Fprint(w, `{"status":"ok","data":[{"model":"m1"},{"model":"m2"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := New(server.URL)
	stats, err := c.Stats(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Overall.Count != 2 || stats.Overall.PresenceRate != 50 {
		t.Errorf("unexpected stats: %+v", stats.Overall)
	}

	results, err := c.Results(context.Background(), "d1", 5)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if len(results) != 1 || results[0].Model != "m1" {
		t.Errorf("unexpected results: %+v", results)
	}

	runResults, err := c.RunResults(context.Background(), "r1")
	if err != nil || len(runResults) != 2 {
		t.Errorf("RunResults() = %d results, %v", len(runResults), err)
	}

	if _, err := c.Stats(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown domain")
	}
}
