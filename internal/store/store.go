// internal/store/store.go
//
// Session persistence interface.
// Two interchangeable backends exist:
//   - memory: process-local map, optionally reaped; single instance only.
//   - redis:  shared key/value store with native TTL; horizontally scalable.
//
// Keys are opaque to the store. Callers namespace them per mode.

package store

import (
	"context"
	"time"

	"github.com/robalobadob/gamedle/internal/game"
)

// Store defines the persistence interface for round sessions.
type Store interface {
	// Put stores s under key, replacing any existing entry, and (re)sets
	// its expiry to ttl from now.
	Put(ctx context.Context, key string, s *game.Session, ttl time.Duration) error

	// Get returns the session, or game.ErrSessionNotFound when the key is
	// missing or expired. Connectivity problems wrap game.ErrStoreUnavailable.
	Get(ctx context.Context, key string) (*game.Session, error)

	// Delete removes the entry. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Update applies fn to the current session atomically with respect to
	// other Updates on the same key and bumps Session.Version. If fn returns
	// an error nothing is written and that error is returned. The expiry is
	// left unchanged.
	Update(ctx context.Context, key string, fn func(*game.Session) error) (*game.Session, error)
}
