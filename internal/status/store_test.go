package status

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// exerciseStore runs the behaviour every backend shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := s.SetOnline(ctx); err != nil {
		t.Fatalf("SetOnline() error = %v", err)
	}
	if got, _ := s.ServerStatus(ctx); got != Online {
		t.Errorf("ServerStatus() = %q, want online", got)
	}

	ok, err := s.IsClientInitialized(ctx, 4991)
	if err != nil || ok {
		t.Fatalf("IsClientInitialized() before set = %v, %v", ok, err)
	}
	if err := s.SetClientStatus(ctx, 4991, ClientTransactionMode); err != nil {
		t.Fatalf("SetClientStatus() error = %v", err)
	}
	if err := s.SetClientStatus(ctx, 12, ClientTransactionMode); err != nil {
		t.Fatalf("SetClientStatus() error = %v", err)
	}
	if ok, _ := s.IsClientInitialized(ctx, 4991); !ok {
		t.Error("client should be initialized after SetClientStatus")
	}

	statuses, err := s.ClientStatuses(ctx)
	if err != nil {
		t.Fatalf("ClientStatuses() error = %v", err)
	}
	if ids := SortedIDs(statuses); len(ids) != 2 || ids[0] != 12 || ids[1] != 4991 {
		t.Errorf("ids = %v, want [12 4991]", ids)
	}
	if statuses[4991] != ClientTransactionMode {
		t.Errorf("status = %q, want %q", statuses[4991], ClientTransactionMode)
	}

	if err := s.SetOffline(ctx); err != nil {
		t.Fatalf("SetOffline() error = %v", err)
	}
	if got, _ := s.ServerStatus(ctx); got != Offline {
		t.Errorf("ServerStatus() = %q, want offline", got)
	}
	if ok, _ := s.IsClientInitialized(ctx, 4991); !ok {
		t.Error("SetOffline should keep client statuses")
	}
	if statuses, _ := s.ClientStatuses(ctx); len(statuses) != 2 {
		t.Errorf("statuses after SetOffline = %v, want 2 entries", statuses)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedis(client, "test-host")
	exerciseStore(t, s)

	if err := s.SetClientStatus(context.Background(), 7, ClientTransactionMode); err != nil {
		t.Fatalf("SetClientStatus() error = %v", err)
	}
	if got := mr.HGet("chippy:status:test-host", "7"); got != ClientTransactionMode {
		t.Errorf("hash field = %q, want %q", got, ClientTransactionMode)
	}
	if got, _ := mr.Get("chippy:status"); got != Offline {
		t.Errorf("global key = %q, want offline", got)
	}
}

func TestRedisStoreRemembersClientsAcrossRestart(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	first := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	before := NewRedis(first, "gate-1")
	if err := before.SetOnline(ctx); err != nil {
		t.Fatal(err)
	}
	if err := before.SetClientStatus(ctx, 4991, ClientTransactionMode); err != nil {
		t.Fatal(err)
	}
	if err := before.SetOffline(ctx); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer second.Close()
	after := NewRedis(second, "gate-1")
	if ok, err := after.IsClientInitialized(ctx, 4991); err != nil || !ok {
		t.Errorf("IsClientInitialized() after restart = %v, %v; want true", ok, err)
	}
	if got := mr.HGet("chippy:status:gate-1", "4991"); got != ClientTransactionMode {
		t.Errorf("hash field = %q, want %q", got, ClientTransactionMode)
	}
	if got, _ := mr.Get("chippy:status"); got != Offline {
		t.Errorf("global key = %q, want offline", got)
	}
}

func TestRedisStoreInstancesAreIsolated(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	a := NewRedis(client, "a")
	b := NewRedis(client, "b")
	if err := a.SetClientStatus(ctx, 1, ClientTransactionMode); err != nil {
		t.Fatal(err)
	}
	if ok, _ := b.IsClientInitialized(ctx, 1); ok {
		t.Error("instance b should not see instance a clients")
	}
	if err := b.SetOffline(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, _ := a.IsClientInitialized(ctx, 1); !ok {
		t.Error("instance b going offline should not clear instance a")
	}
}

func TestInstanceKey(t *testing.T) {
	if got := InstanceKey("host-1"); got != "chippy:status:host-1" {
		t.Errorf("InstanceKey() = %q", got)
	}
	if DefaultInstance() == "" {
		t.Error("DefaultInstance() should never be empty")
	}
}
