package engine

import (
	"context"
	"sync"
	"time"

	"aivisibility/internal/models"
)

// EventType names an event on the run stream. Values match the SSE event names.
type EventType string

// Event types.
const (
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
	EventStats    EventType = "stats"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// ResultEvent is the payload of a result event.
type ResultEvent struct {
	Keyword  string              `json:"keyword"`
	Phrase   string              `json:"phrase"`
	Model    string              `json:"model"`
	Response string              `json:"response"`
	Latency  int64               `json:"latency"` // milliseconds
	Cost     float64             `json:"cost"`
	Scores   *models.ScoreVector `json:"scores"`
	Progress int                 `json:"progress"` // percent
}

// Event is one entry of the run stream.
type Event struct {
	Type    EventType
	Message string
	Result  *ResultEvent
	Stats   *AggregateStats
	// Fatal marks an error event that terminates the stream.
	Fatal bool
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || (e.Type == EventError && e.Fatal)
}

// Data returns the wire payload for the event.
func (e Event) Data() any {
	switch e.Type {
	case EventProgress:
		return map[string]string{"message": e.Message}
	case EventResult:
		return e.Result
	case EventStats:
		return e.Stats
	case EventError:
		return map[string]any{"error": e.Message, "fatal": e.Fatal}
	default:
		return struct{}{}
	}
}

func progressEvent(msg string) Event {
	return Event{Type: EventProgress, Message: msg}
}

func errorEvent(msg string, fatal bool) Event {
	return Event{Type: EventError, Message: msg, Fatal: fatal}
}

func statsEvent(s AggregateStats) Event {
	return Event{Type: EventStats, Stats: &s}
}

// stream serializes events from concurrent workers onto one channel and
// closes it after exactly one terminal event. Sends block until the consumer
// reads them or is gone; the run context ending does not drop events.
type stream struct {
	mu     sync.Mutex
	ch     chan Event
	gone   <-chan struct{}
	done   chan struct{}
	closed bool
}

// newStream creates a stream whose consumer signals departure by closing gone.
// Once ctx is done the consumer gets grace to drain before it is treated as gone.
func newStream(ctx context.Context, gone <-chan struct{}, buffer int, grace time.Duration, abandon func()) *stream {
	s := &stream{ch: make(chan Event, buffer), gone: gone, done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
			return
		}
		t := time.NewTimer(grace)
		defer t.Stop()
		select {
		case <-t.C:
			abandon()
		case <-gone:
		case <-s.done:
		}
	}()
	return s
}

// emit sends a non-terminal event.
func (s *stream) emit(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.send(ev)
}

// finish sends the terminal event and closes the channel. Later calls are no-ops.
func (s *stream) finish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.send(ev)
	s.closed = true
	close(s.ch)
	close(s.done)
}

func (s *stream) send(ev Event) bool {
	select {
	case s.ch <- ev:
		return true
	case <-s.gone:
		return false
	}
}
