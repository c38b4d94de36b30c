// internal/progress/redis.go
//
// Redis-backed Store for hosted deployments. Each record is one JSON value
// under a prefixed key, with no TTL: this is the authoritative copy, not a
// cache.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "fartopia:progress:"

type redisStore struct {
	client *redis.Client
}

// OpenRedis connects to redis, retrying the initial ping with exponential
// backoff so the server survives a slow-starting redis container.
func OpenRedis(ctx context.Context, addr, password string) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 5 * time.Second
	err := backoff.Retry(func() error {
		return client.Ping(ctx).Err()
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 5), ctx))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Msg("connected to redis")
	return &redisStore{client: client}, nil
}

func redisKey(playerID string) string { return redisKeyPrefix + playerID }

func (s *redisStore) Load(ctx context.Context, playerID string) (*Record, error) {
	data, err := s.client.Get(ctx, redisKey(playerID)).Result()
	if errors.Is(err, redis.Nil) {
		rec := NewRecord(playerID, time.Now())
		if err := s.Save(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress %s: %w", playerID, err)
	}
	// Repaired records are written back immediately; the corrupt value
	// must not outlive the load that found it.
	rec, repaired := decodeRecord([]byte(data), playerID, time.Now())
	if repaired {
		log.Warn().Str("player", playerID).Msg("repaired corrupt progress record")
		if err := s.Save(ctx, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (s *redisStore) Save(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal progress %s: %w", rec.ID, err)
	}
	if err := s.client.Set(ctx, redisKey(rec.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("save progress %s: %w", rec.ID, err)
	}
	return nil
}

func (s *redisStore) Close() error { return s.client.Close() }
