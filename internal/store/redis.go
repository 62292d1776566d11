package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "taskgate:webhook:"

// redisConn is the slice of redis.Client the store uses. Narrowed to an
// interface so the result mapping can be driven by a fake in tests.
type redisConn interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Redis keeps event records as JSON values under a prefixed key. SETNX gives
// the same atomic create-if-absent guarantee as the Postgres unique key.
type Redis struct {
	client redisConn
	ttl    time.Duration
}

// ConnectRedis dials the server, verifies it with a ping and returns the
// store. ttl bounds record retention; zero keeps records forever.
func ConnectRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{client: client, ttl: ttl}, nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (s *Redis) CreateIfAbsent(ctx context.Context, key string) (CreateResult, error) {
	rec := Record{Key: key, Status: StatusProcessing, CreatedAt: time.Now().UTC()}
	val, err := json.Marshal(rec)
	if err != nil {
		return ResultError, fmt.Errorf("marshal record: %w", err)
	}

	created, err := s.client.SetNX(ctx, redisKeyPrefix+key, val, s.ttl).Result()
	if err != nil {
		return ResultError, fmt.Errorf("setnx record: %w", err)
	}
	if !created {
		return ResultConflict, nil
	}
	return ResultCreated, nil
}

func (s *Redis) MarkCompleted(ctx context.Context, key string) error {
	rec, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	rec.Status = StatusCompleted
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	// KeepTTL preserves whatever retention the create applied.
	if err := s.client.Set(ctx, redisKeyPrefix+key, val, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("set record: %w", err)
	}
	return nil
}

func (s *Redis) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("del record: %w", err)
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, key string) (*Record, error) {
	val, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	rec := &Record{}
	if err := json.Unmarshal(val, rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}

func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Redis) Close() {
	_ = s.client.Close()
}
