// Package client is an HTTP client for the run and result API.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"aivisibility/internal/engine"
	"aivisibility/internal/models"
)

// ErrStreamEnded is returned when a run stream closes without a terminal event.
var ErrStreamEnded = errors.New("run stream ended without a terminal event")

// Client talks to a running server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// Event is one decoded server-sent event of a run.
type Event struct {
	Type    engine.EventType
	Message string
	Result  *engine.ResultEvent
	Stats   *engine.AggregateStats
	Fatal   bool
}

// RunOptions are the query parameters of a run request.
type RunOptions struct {
	Location string
	Resume   bool
}

// EventHandler receives each event of a run stream. Returning an error stops the stream.
type EventHandler func(ev Event) error

// APIError is a non-2xx response in the JSON envelope.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

type envelope struct {
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Data   json.RawMessage `json:"data"`
}

// StartRun opens a run for domainID and calls handle for every event until the
// terminal one. It returns the run ID once the server accepted the run. A fatal
// error event is returned as an error.
func (c *Client) StartRun(ctx context.Context, domainID string, opts RunOptions, handle EventHandler) (string, error) {
	q := url.Values{}
	if opts.Location != "" {
		q.Set("location", opts.Location)
	}
	if opts.Resume {
		q.Set("resume", "true")
	}
	target := c.baseURL + "/api/runs/" + url.PathEscape(domainID)
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	runID := resp.Header.Get("X-Run-ID")
	return runID, readEvents(resp.Body, handle)
}

// readEvents parses an SSE stream until a terminal event.
func readEvents(r io.Reader, handle EventHandler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var name, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			ev, err := decodeEvent(engine.EventType(name), data)
			if err != nil {
				return err
			}
			name, data = "", ""

			if err := handle(ev); err != nil {
				return err
			}
			switch {
			case ev.Type == engine.EventComplete:
				return nil
			case ev.Type == engine.EventError && ev.Fatal:
				return fmt.Errorf("run failed: %s", ev.Message)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return ErrStreamEnded
}

func decodeEvent(typ engine.EventType, data string) (Event, error) {
	ev := Event{Type: typ}
	var err error
	switch typ {
	case engine.EventProgress:
		var p struct {
			Message string `json:"message"`
		}
		err = json.Unmarshal([]byte(data), &p)
		ev.Message = p.Message
	case engine.EventError:
		var p struct {
			Error string `json:"error"`
			Fatal bool   `json:"fatal"`
		}
		err = json.Unmarshal([]byte(data), &p)
		ev.Message, ev.Fatal = p.Error, p.Fatal
	case engine.EventResult:
		ev.Result = &engine.ResultEvent{}
		err = json.Unmarshal([]byte(data), ev.Result)
	case engine.EventStats:
		ev.Stats = &engine.AggregateStats{}
		err = json.Unmarshal([]byte(data), ev.Stats)
	}
	if err != nil {
		return ev, fmt.Errorf("invalid %s event %q: %w", typ, data, err)
	}
	return ev, nil
}

// Stats fetches aggregate statistics over a domain's latest results.
func (c *Client) Stats(ctx context.Context, domainID string) (*engine.AggregateStats, error) {
	var stats engine.AggregateStats
	if err := c.getJSON(ctx, "/api/domains/"+url.PathEscape(domainID)+"/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Results fetches up to limit of a domain's latest results.
func (c *Client) Results(ctx context.Context, domainID string, limit int) ([]models.QueryResult, error) {
	path := "/api/domains/" + url.PathEscape(domainID) + "/results"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var results []models.QueryResult
	if err := c.getJSON(ctx, path, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// RunResults fetches every result stored by one run.
func (c *Client) RunResults(ctx context.Context, runID string) ([]models.QueryResult, error) {
	var results []models.QueryResult
	if err := c.getJSON(ctx, "/api/runs/"+url.PathEscape(runID)+"/results", &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Error}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}
