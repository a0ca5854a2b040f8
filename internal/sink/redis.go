package sink

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultList is the Redis list events are appended to.
const DefaultList = "chippy:readings"

// Redis appends encoded events to a list with RPUSH.
type Redis struct {
	client *redis.Client
	list   string
	codec  Codec
	owned  bool
}

// NewRedis pushes to list using an existing client. The client is not closed
// by Close.
func NewRedis(client *redis.Client, list string, codec Codec) *Redis {
	if list == "" {
		list = DefaultList
	}
	if codec == nil {
		codec = jsonCodec{}
	}
	return &Redis{client: client, list: list, codec: codec}
}

// DialRedis connects to url and pings it.
func DialRedis(ctx context.Context, url, list string, codec Codec) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	r := NewRedis(client, list, codec)
	r.owned = true
	return r, nil
}

func (r *Redis) Push(ctx context.Context, ev Event) error {
	payload, err := r.codec.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.RPush(ctx, r.list, payload).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", r.list, err)
	}
	return nil
}

func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}
