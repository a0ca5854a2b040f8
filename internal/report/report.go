// Package report sends per-connection errors to an error tracker.
package report

import (
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// Context carries what is known about the connection when an error happens.
type Context struct {
	ClientID    int
	HasClientID bool
	ConnID      string
	RemoteAddr  string
	// Raw holds frame bytes for protocol errors, keyed by a short label
	// such as "header" or "body".
	Raw map[string][]byte
}

// Reporter records errors out of band. Implementations are safe for
// concurrent use.
type Reporter interface {
	Report(err error, c Context)
	Flush(timeout time.Duration) bool
}

// Nop discards every report.
type Nop struct{}

func (Nop) Report(error, Context)    {}
func (Nop) Flush(time.Duration) bool { return true }

// Sentry reports to a Sentry project. Each report uses its own scope so
// concurrent connections do not leak context into one another.
type Sentry struct {
	hub *sentry.Hub
}

// NewSentry initializes the Sentry client. An empty dsn yields a Nop.
func NewSentry(dsn, environment, release string) (Reporter, error) {
	if dsn == "" {
		return Nop{}, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, err
	}
	return &Sentry{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

func (s *Sentry) Report(err error, c Context) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		if c.HasClientID {
			scope.SetTag("client_id", itoa(c.ClientID))
		}
		if c.ConnID != "" {
			scope.SetTag("conn_id", c.ConnID)
		}
		if c.RemoteAddr != "" {
			scope.SetTag("remote_addr", c.RemoteAddr)
		}
		for label, data := range c.Raw {
			scope.SetContext("raw "+label, sentry.Context{"hex": hexString(data)})
		}
		s.hub.CaptureException(err)
	})
}

func (s *Sentry) Flush(timeout time.Duration) bool {
	return s.hub.Flush(timeout)
}

// Recorder keeps reports in memory.
type Recorder struct {
	mu      sync.Mutex
	reports []Recorded
}

type Recorded struct {
	Err     error
	Context Context
}

func (r *Recorder) Report(err error, c Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, Recorded{Err: err, Context: c})
}

func (r *Recorder) Flush(time.Duration) bool { return true }

// Reports returns a copy of everything recorded.
func (r *Recorder) Reports() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.reports...)
}
