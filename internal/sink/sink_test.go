package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

var sample = Event{Chip: "0102030405060708", ClientID: 4991, Timestamp: 1700000000.25}

func TestCodecs(t *testing.T) {
	tests := []struct {
		name   string
		codec  string
		decode func([]byte, any) error
	}{
		{name: "json", codec: "json", decode: json.Unmarshal},
		{name: "default", codec: "", decode: json.Unmarshal},
		{name: "cbor", codec: "cbor", decode: cbor.Unmarshal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCodec(tt.codec)
			if err != nil {
				t.Fatalf("NewCodec() error = %v", err)
			}
			data, err := c.Marshal(sample)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			var got map[string]any
			if err := tt.decode(data, &got); err != nil {
				t.Fatalf("decode error = %v", err)
			}
			for _, key := range []string{"chip", "client_id", "timestamp"} {
				if _, ok := got[key]; !ok {
					t.Errorf("payload missing %q: %v", key, got)
				}
			}
			if got["chip"] != sample.Chip {
				t.Errorf("chip = %v, want %s", got["chip"], sample.Chip)
			}
		})
	}

	if _, err := NewCodec("xml"); err == nil {
		t.Error("unknown codec should fail")
	}
}

func TestRedisPush(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedis(client, "", nil)
	ctx := context.Background()
	if err := s.Push(ctx, sample); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if err := s.Push(ctx, Event{Chip: "ff", ClientID: 1, Timestamp: 2}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	items, err := mr.List(DefaultList)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("list length = %d, want 2", len(items))
	}
	var got Event
	if err := json.Unmarshal([]byte(items[0]), &got); err != nil {
		t.Fatalf("unmarshal error = %v", err)
	}
	if got != sample {
		t.Errorf("first item = %+v, want %+v", got, sample)
	}
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := DialRedis(context.Background(), "redis://"+mr.Addr(), "custom", nil)
	if err != nil {
		t.Fatalf("DialRedis() error = %v", err)
	}
	defer s.Close()

	if err := s.Push(context.Background(), sample); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if items, _ := mr.List("custom"); len(items) != 1 {
		t.Errorf("custom list length = %d, want 1", len(items))
	}

	if _, err := DialRedis(context.Background(), "redis://127.0.0.1:1", "", nil); err == nil {
		t.Error("DialRedis() against a closed port should fail")
	}
	if _, err := DialRedis(context.Background(), "not a url", "", nil); err == nil {
		t.Error("DialRedis() with a bad url should fail")
	}
}

func TestTee(t *testing.T) {
	primary := NewMemory()
	tap := NewMemory()
	tap.Err = errors.New("tap down")

	var tapErrs int
	tee := NewTee(primary, tap)
	tee.OnError = func(error) { tapErrs++ }

	if err := tee.Push(context.Background(), sample); err != nil {
		t.Fatalf("Push() error = %v, tap errors must not propagate", err)
	}
	if tapErrs != 1 {
		t.Errorf("tap errors = %d, want 1", tapErrs)
	}
	if len(primary.Events()) != 1 {
		t.Errorf("primary events = %d, want 1", len(primary.Events()))
	}

	primary.Err = errors.New("queue down")
	if err := tee.Push(context.Background(), sample); err == nil {
		t.Error("primary error should propagate")
	}
}
