// Package store implements the Routing Store: the thin abstraction over a
// shared key-value+stream service described in spec section 4.A. The
// worker registry is a Redis sorted set, channel bindings are Redis
// strings, and per-worker streams are Redis Streams — the latter provide
// the append-only ordered log with a blocking cursor-based read natively,
// a stronger match than emulating it with lists.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streamspace-dev/realtime-gateway/internal/config"
)

// ErrBindingNotFound is returned by GetBinding when no binding exists.
var ErrBindingNotFound = errors.New("store: binding not found")

// ErrHeartbeatNotFound is returned by GetHeartbeat when the worker has
// never registered or has been unregistered.
var ErrHeartbeatNotFound = errors.New("store: heartbeat not found")

// Record is one entry read back from a worker stream.
type Record struct {
	Seq     string
	Payload []byte
}

// Store is the routing store's operation set. Everything above this
// interface (the router, the proxy callbacks, the worker runtime) depends
// on it rather than on Redis directly, so it can be faked in tests.
type Store interface {
	RegisterWorker(ctx context.Context, id string) error
	UpdateHeartbeat(ctx context.Context, id string) error
	UnregisterWorker(ctx context.Context, id string) error
	ListActiveWorkers(ctx context.Context) ([]string, error)
	GetHeartbeat(ctx context.Context, id string) (time.Time, error)

	GetBinding(ctx context.Context, channel string) (string, error)
	SetBinding(ctx context.Context, channel, workerID string) error
	// SetBindingIfAbsent writes the binding only if none exists yet,
	// returning whether this call won the race. Used by the router when a
	// channel has no binding yet, so two callback processes racing to
	// create the first binding for the same channel don't clobber each
	// other.
	SetBindingIfAbsent(ctx context.Context, channel, workerID string) (bool, error)
	DeleteBinding(ctx context.Context, channel string) error

	AppendRecord(ctx context.Context, streamKey string, payload []byte) (string, error)
	// ReadRecords blocks up to block when no records are available,
	// returning an empty, non-error batch on timeout.
	ReadRecords(ctx context.Context, streamKey, fromCursor string, maxCount int64, block time.Duration) ([]Record, error)

	Close() error
}

// RedisStore is the production Store backed by go-redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore dials Redis with the same pooling discipline the gateway
// uses for its other Redis-backed components.
func NewRedisStore(cfg config.StoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:        25,
		MinIdleConns:    5,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping routing store: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// newRedisStoreFromClient builds a RedisStore around an already-configured
// client, skipping the dial/ping NewRedisStore otherwise does. Used by
// redis_store_test.go to point a RedisStore at a miniredis instance.
func newRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) RegisterWorker(ctx context.Context, id string) error {
	return s.UpdateHeartbeat(ctx, id)
}

func (s *RedisStore) UpdateHeartbeat(ctx context.Context, id string) error {
	score := float64(time.Now().UnixMilli())
	if err := s.client.ZAdd(ctx, ActiveWorkersKey, redis.Z{Score: score, Member: id}).Err(); err != nil {
		return fmt.Errorf("store: update heartbeat for %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) UnregisterWorker(ctx context.Context, id string) error {
	if err := s.client.ZRem(ctx, ActiveWorkersKey, id).Err(); err != nil {
		return fmt.Errorf("store: unregister worker %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) ListActiveWorkers(ctx context.Context) ([]string, error) {
	ids, err := s.client.ZRange(ctx, ActiveWorkersKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("store: list active workers: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) GetHeartbeat(ctx context.Context, id string) (time.Time, error) {
	score, err := s.client.ZScore(ctx, ActiveWorkersKey, id).Result()
	if err == redis.Nil {
		return time.Time{}, ErrHeartbeatNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("store: get heartbeat for %s: %w", id, err)
	}
	return time.UnixMilli(int64(score)), nil
}

func (s *RedisStore) GetBinding(ctx context.Context, channel string) (string, error) {
	workerID, err := s.client.Get(ctx, ChannelRouteKey(channel)).Result()
	if err == redis.Nil {
		return "", ErrBindingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: get binding for %s: %w", channel, err)
	}
	return workerID, nil
}

func (s *RedisStore) SetBinding(ctx context.Context, channel, workerID string) error {
	if err := s.client.Set(ctx, ChannelRouteKey(channel), workerID, 0).Err(); err != nil {
		return fmt.Errorf("store: set binding for %s: %w", channel, err)
	}
	return nil
}

func (s *RedisStore) SetBindingIfAbsent(ctx context.Context, channel, workerID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, ChannelRouteKey(channel), workerID, 0).Result()
	if err != nil {
		return false, fmt.Errorf("store: setnx binding for %s: %w", channel, err)
	}
	return ok, nil
}

func (s *RedisStore) DeleteBinding(ctx context.Context, channel string) error {
	if err := s.client.Del(ctx, ChannelRouteKey(channel)).Err(); err != nil {
		return fmt.Errorf("store: delete binding for %s: %w", channel, err)
	}
	return nil
}

func (s *RedisStore) AppendRecord(ctx context.Context, streamKey string, payload []byte) (string, error) {
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{"payload": payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("store: append to %s: %w", streamKey, err)
	}
	return id, nil
}

func (s *RedisStore) ReadRecords(ctx context.Context, streamKey, fromCursor string, maxCount int64, block time.Duration) ([]Record, error) {
	res, err := s.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{streamKey, fromCursor},
		Count:   maxCount,
		Block:   block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s from %s: %w", streamKey, fromCursor, err)
	}

	var records []Record
	for _, stream := range res {
		for _, msg := range stream.Messages {
			raw, _ := msg.Values["payload"].(string)
			records = append(records, Record{Seq: msg.ID, Payload: []byte(raw)})
		}
	}
	return records, nil
}
