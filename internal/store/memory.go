// internal/store/memory.go
//
// In-memory implementation of the Store interface.
//
// Characteristics:
//   - Sessions keyed by caller-supplied key in a map, copied on the way in and out.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Expiry is lazy on read; Reap/Run purge expired entries physically.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/gamedle/internal/game"
)

type memEntry struct {
	session   *game.Session
	expiresAt time.Time
}

// Memory is a map-based Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memEntry), now: time.Now}
}

// Put adds or replaces the session.
func (m *Memory) Put(ctx context.Context, key string, s *game.Session, ttl time.Duration) error {
	exp := m.now().Add(ttl)
	c := s.Clone()
	c.ExpiresAt = exp

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{session: c, expiresAt: exp}
	return nil
}

// Get looks up a live session.
func (m *Memory) Get(ctx context.Context, key string) (*game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || !m.now().Before(e.expiresAt) {
		return nil, game.ErrSessionNotFound
	}
	return e.session.Clone(), nil
}

// Delete removes the session if present.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Update mutates a copy under the write lock and stores it back on success.
func (m *Memory) Update(ctx context.Context, key string, fn func(*game.Session) error) (*game.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || !m.now().Before(e.expiresAt) {
		return nil, game.ErrSessionNotFound
	}
	c := e.session.Clone()
	if err := fn(c); err != nil {
		return nil, err
	}
	c.Version++
	m.entries[key] = memEntry{session: c, expiresAt: e.expiresAt}
	return c.Clone(), nil
}

// Len reports how many entries are held, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Reap removes expired entries and returns how many were dropped.
func (m *Memory) Reap() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Run reaps every interval until ctx is done.
// A non-positive interval disables reaping; expired entries are still
// invisible to Get and Update.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		log.Warn().Dur("interval", interval).Msg("memory store reaper disabled")
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Reap(); n > 0 {
				log.Debug().Int("reaped", n).Msg("expired sessions removed")
			}
		}
	}
}
