// Package session tracks the transceivers connected to this server and
// whether each has been configured.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/FastTravelAS/chippy/internal/status"
	"go.uber.org/zap"
)

// Record describes one connected device.
type Record struct {
	ClientID    int       `json:"client_id"`
	ConnID      string    `json:"conn_id"` // connection that owns the session
	ConnectedAt time.Time `json:"connected_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// Registry is the process-wide table of device sessions. It is the only
// mutable structure shared between workers.
type Registry struct {
	store  status.Store
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	records map[int]*Record
}

func NewRegistry(store status.Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:   store,
		logger:  logger,
		now:     time.Now,
		records: make(map[int]*Record),
	}
}

// RecordConnect starts a session for clientID owned by connID, replacing
// any previous one. A device that reconnects before its old socket is torn
// down thus moves its session to the new connection.
func (r *Registry) RecordConnect(clientID int, connID string) {
	now := r.now()
	r.mu.Lock()
	r.records[clientID] = &Record{ClientID: clientID, ConnID: connID, ConnectedAt: now}
	r.mu.Unlock()
}

// Touch sets the last-seen time. Unknown ids are ignored.
func (r *Registry) Touch(clientID int) {
	now := r.now()
	r.mu.Lock()
	if rec, ok := r.records[clientID]; ok {
		rec.LastSeenAt = now
	}
	r.mu.Unlock()
}

// Disconnect clears the session for clientID if connID still owns it and
// reports whether it did. A stale connection closing after the device
// reconnected leaves the new session alone.
func (r *Registry) Disconnect(clientID int, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[clientID]
	if !ok || rec.ConnID != connID {
		return false
	}
	delete(r.records, clientID)
	return true
}

// Get returns a copy of the session for clientID.
func (r *Registry) Get(clientID int) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[clientID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Snapshot returns every session ordered by client id.
func (r *Registry) Snapshot() []Record {
	r.mu.Lock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

// IsInitialized reports whether the device was configured by this instance,
// possibly before a restart. Store failures are logged and treated as not
// initialized, which only costs a repeated configuration.
func (r *Registry) IsInitialized(ctx context.Context, clientID int) bool {
	ok, err := r.store.IsClientInitialized(ctx, clientID)
	if err != nil {
		r.logger.Warn("Status store lookup failed",
			zap.Int("client_id", clientID),
			zap.Error(err),
		)
		return false
	}
	return ok
}

// MarkInitialized records the device status in the store.
func (r *Registry) MarkInitialized(ctx context.Context, clientID int, clientStatus string) error {
	return r.store.SetClientStatus(ctx, clientID, clientStatus)
}

func (r *Registry) MarkOnline(ctx context.Context) error {
	r.logger.Info("Setting status to online")
	return r.store.SetOnline(ctx)
}

// MarkOffline forgets every session and flips the store flag.
func (r *Registry) MarkOffline(ctx context.Context) error {
	r.logger.Info("Setting status to offline")
	r.mu.Lock()
	r.records = make(map[int]*Record)
	r.mu.Unlock()
	return r.store.SetOffline(ctx)
}
