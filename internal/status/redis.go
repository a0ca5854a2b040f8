package status

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Redis keeps the server flag in a string key and client statuses in a hash
// per instance.
type Redis struct {
	client   *redis.Client
	instance string
	owned    bool
}

func NewRedis(client *redis.Client, instance string) *Redis {
	if instance == "" {
		instance = DefaultInstance()
	}
	return &Redis{client: client, instance: instance}
}

// DialRedis connects to url. Callers should Ping before serving.
func DialRedis(url, instance string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	r := NewRedis(redis.NewClient(opts), instance)
	r.owned = true
	return r, nil
}

// Client exposes the underlying connection so the Redis sink can share it.
func (r *Redis) Client() *redis.Client { return r.client }

func (r *Redis) SetOnline(ctx context.Context) error {
	return r.client.Set(ctx, Key, Online, 0).Err()
}

func (r *Redis) SetOffline(ctx context.Context) error {
	return r.client.Set(ctx, Key, Offline, 0).Err()
}

func (r *Redis) SetClientStatus(ctx context.Context, clientID int, status string) error {
	return r.client.HSet(ctx, InstanceKey(r.instance), strconv.Itoa(clientID), status).Err()
}

func (r *Redis) IsClientInitialized(ctx context.Context, clientID int) (bool, error) {
	return r.client.HExists(ctx, InstanceKey(r.instance), strconv.Itoa(clientID)).Result()
}

func (r *Redis) ClientStatuses(ctx context.Context) (map[int]string, error) {
	raw, err := r.client.HGetAll(ctx, InstanceKey(r.instance)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[int]string, len(raw))
	for k, v := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out, nil
}

func (r *Redis) ServerStatus(ctx context.Context) (string, error) {
	s, err := r.client.Get(ctx, Key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return s, err
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}
