// internal/store/redis.go
//
// Redis implementation of the Store interface.
//
// Characteristics:
//   - One JSON value per session at "<prefix>:<key>" with native TTL.
//   - Update is an optimistic WATCH/MULTI transaction retried on conflict,
//     so attempt counters are never decremented from a stale read.
//   - redis.Nil maps to game.ErrSessionNotFound; any other client error
//     wraps game.ErrStoreUnavailable.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/robalobadob/gamedle/internal/game"
)

const defaultUpdateRetries = 8

// Redis is a Store backed by a shared redis instance.
type Redis struct {
	client  redis.UniversalClient
	prefix  string
	retries int
}

// NewRedis wraps an existing client. prefix namespaces all keys.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "session"
	}
	return &Redis{client: client, prefix: prefix, retries: defaultUpdateRetries}
}

func (r *Redis) key(k string) string {
	return fmt.Sprintf("%s:%s", r.prefix, k)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", game.ErrStoreUnavailable, op, err)
}

// Put serializes the session and sets it with ttl.
func (r *Redis) Put(ctx context.Context, key string, s *game.Session, ttl time.Duration) error {
	c := s.Clone()
	c.ExpiresAt = time.Now().Add(ttl)
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

// Get loads and decodes the session.
func (r *Redis) Get(ctx context.Context, key string) (*game.Session, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, game.ErrSessionNotFound
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	var s game.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// Delete removes the key; DEL on a missing key is a no-op.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return unavailable("del", err)
	}
	return nil
}

// Update runs fn inside a WATCH transaction, keeping the existing TTL.
func (r *Redis) Update(ctx context.Context, key string, fn func(*game.Session) error) (*game.Session, error) {
	k := r.key(key)
	var (
		out   *game.Session
		fnErr error
	)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			fnErr = game.ErrSessionNotFound
			return fnErr
		}
		if err != nil {
			return err
		}
		var s game.Session
		if err := json.Unmarshal(data, &s); err != nil {
			fnErr = fmt.Errorf("decode session: %w", err)
			return fnErr
		}
		if err := fn(&s); err != nil {
			fnErr = err
			return err
		}
		s.Version++
		next, err := json.Marshal(&s)
		if err != nil {
			fnErr = fmt.Errorf("encode session: %w", err)
			return fnErr
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, redis.KeepTTL)
			return nil
		})
		if err == nil {
			out = &s
		}
		return err
	}

	for i := 0; i < r.retries; i++ {
		fnErr = nil
		err := r.client.Watch(ctx, txf, k)
		switch {
		case err == nil:
			return out, nil
		case fnErr != nil:
			return nil, fnErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return nil, unavailable("update", err)
		}
	}
	return nil, fmt.Errorf("%w: %s", game.ErrConflict, key)
}
