// Package redis stores KV values in Redis, for observers that share a cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/kv"
)

var tracer = otel.Tracer("eventwatch/kv/redis")

// Store is a kv.KV over a go-redis client. Keys are namespaced by prefix.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// Open connects and pings with a short timeout.
func Open(ctx context.Context, addr, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &Store{rdb: rdb, prefix: "eventwatch:"}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "kv.Get", trace.WithAttributes(attribute.String("kv.key", key)))
	defer span.End()

	v, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("kv.hit", false))
		return nil, kv.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("kv.hit", true))
	return v, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	ctx, span := tracer.Start(ctx, "kv.Put", trace.WithAttributes(
		attribute.String("kv.key", key),
		attribute.Int("kv.size", len(value)),
	))
	defer span.End()

	if err := s.rdb.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "kv.Delete", trace.WithAttributes(attribute.String("kv.key", key)))
	defer span.End()
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

// Ping implements kv.Pinger.
func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *Store) Close() error { return s.rdb.Close() }
