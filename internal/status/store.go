// Package status records which transceivers this server instance has
// configured, and whether the server is online. The record outlives the
// process so a restarted server can skip configuring devices again.
package status

import (
	"context"
	"os"
	"sort"
	"strconv"
	"sync"
)

const (
	Online  = "online"
	Offline = "offline"

	// ClientTransactionMode is recorded once a device completes its handshake.
	ClientTransactionMode = "TRANSACTION_MODE"
)

// Key is the global server status key.
const Key = "chippy:status"

// InstanceKey returns the per-instance client status key.
func InstanceKey(instance string) string {
	return Key + ":" + instance
}

// DefaultInstance names this server instance. The hostname is stable across
// restarts; the pid is used when the hostname is unavailable.
func DefaultInstance() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return strconv.Itoa(os.Getpid())
}

// Store is the cross-process status record.
type Store interface {
	SetOnline(ctx context.Context) error
	// SetOffline flips the server flag. Client statuses are kept so the
	// next start of this instance skips devices it already configured.
	SetOffline(ctx context.Context) error
	SetClientStatus(ctx context.Context, clientID int, status string) error
	IsClientInitialized(ctx context.Context, clientID int) (bool, error)
	ClientStatuses(ctx context.Context) (map[int]string, error)
	ServerStatus(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Memory is a process-local Store.
type Memory struct {
	mu      sync.Mutex
	server  string
	clients map[int]string
	Err     error
}

func NewMemory() *Memory {
	return &Memory{clients: make(map[int]string)}
}

func (m *Memory) SetOnline(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.server = Online
	return nil
}

func (m *Memory) SetOffline(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.server = Offline
	return nil
}

func (m *Memory) SetClientStatus(_ context.Context, clientID int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.clients[clientID] = status
	return nil
}

func (m *Memory) IsClientInitialized(_ context.Context, clientID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	_, ok := m.clients[clientID]
	return ok, nil
}

func (m *Memory) ClientStatuses(context.Context) (map[int]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[int]string, len(m.clients))
	for id, s := range m.clients {
		out[id] = s
	}
	return out, nil
}

func (m *Memory) ServerStatus(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.server, m.Err
}

func (m *Memory) Ping(context.Context) error { return m.Err }
func (m *Memory) Close() error               { return nil }

// SortedIDs returns the keys of a status map in ascending order.
func SortedIDs(statuses map[int]string) []int {
	ids := make([]int, 0, len(statuses))
	for id := range statuses {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
