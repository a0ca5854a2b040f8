// Package sink forwards transponder reads to a downstream queue.
package sink

import (
	"context"
	"errors"
	"sync"
)

// Event is one transponder read. Timestamp is unix seconds with fractional
// part, taken when the frame was received.
type Event struct {
	Chip      string  `json:"chip" cbor:"chip"`
	ClientID  int     `json:"client_id" cbor:"client_id"`
	Timestamp float64 `json:"timestamp" cbor:"timestamp"`
}

// Sink accepts events. Implementations are safe for concurrent use.
type Sink interface {
	Push(ctx context.Context, ev Event) error
	Close() error
}

// Tee pushes every event to all sinks in order. The first sink is primary:
// its error is returned. Errors from the others are passed to OnError.
type Tee struct {
	Sinks   []Sink
	OnError func(err error)
}

func NewTee(primary Sink, taps ...Sink) *Tee {
	return &Tee{Sinks: append([]Sink{primary}, taps...)}
}

func (t *Tee) Push(ctx context.Context, ev Event) error {
	var primaryErr error
	for i, s := range t.Sinks {
		err := s.Push(ctx, ev)
		if err == nil {
			continue
		}
		if i == 0 {
			primaryErr = err
		} else if t.OnError != nil {
			t.OnError(err)
		}
	}
	return primaryErr
}

func (t *Tee) Close() error {
	var errs []error
	for _, s := range t.Sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory keeps events in a slice.
type Memory struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Push(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of everything pushed so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func (m *Memory) Close() error { return nil }
