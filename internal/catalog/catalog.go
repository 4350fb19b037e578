// internal/catalog/catalog.go
//
// Games catalog: the source of round secrets.
// Implementations:
//   - Static: an in-memory list (embedded seed, tests).
//   - SQLite: the games table, drawn with ORDER BY RANDOM().
//
// A draw that cannot return the requested number of distinct candidates
// fails with game.ErrCatalogUnavailable; callers never get a partial draw.

package catalog

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/robalobadob/gamedle/internal/game"
)

// Filter narrows a draw.
type Filter struct {
	Exclude         []int64 // ids that must not be returned
	RequireOrderKey bool    // only candidates with a known release date
}

// Catalog draws candidates for new rounds.
type Catalog interface {
	// Draw returns n distinct random candidates matching f.
	Draw(ctx context.Context, n int, f Filter) ([]game.Candidate, error)

	// All returns every candidate sorted by id.
	All(ctx context.Context) ([]game.Candidate, error)
}

// ErrExhausted is returned when fewer candidates match than were requested.
// It wraps game.ErrCatalogUnavailable.
var ErrExhausted = fmt.Errorf("%w: not enough candidates", game.ErrCatalogUnavailable)

func shortDraw(got, want int) error {
	return fmt.Errorf("%w (%d of %d)", ErrExhausted, got, want)
}

// Static is an in-memory Catalog.
type Static struct {
	mu    sync.RWMutex
	items []game.Candidate
}

// NewStatic builds a catalog from cs; duplicate ids keep the first entry.
func NewStatic(cs []game.Candidate) *Static {
	seen := make(map[int64]struct{}, len(cs))
	items := make([]game.Candidate, 0, len(cs))
	for _, c := range cs {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		items = append(items, c)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return &Static{items: items}
}

// Draw samples without replacement.
func (s *Static) Draw(ctx context.Context, n int, f Filter) ([]game.Candidate, error) {
	if n <= 0 {
		return nil, nil
	}
	excluded := make(map[int64]struct{}, len(f.Exclude))
	for _, id := range f.Exclude {
		excluded[id] = struct{}{}
	}

	s.mu.RLock()
	pool := make([]game.Candidate, 0, len(s.items))
	for _, c := range s.items {
		if _, skip := excluded[c.ID]; skip {
			continue
		}
		if f.RequireOrderKey && !c.HasOrderKey() {
			continue
		}
		pool = append(pool, c)
	}
	s.mu.RUnlock()

	if len(pool) < n {
		return nil, shortDraw(len(pool), n)
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:n], nil
}

// All returns a copy of the list.
func (s *Static) All(ctx context.Context) ([]game.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]game.Candidate(nil), s.items...), nil
}
