package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/robalobadob/gamedle/assets"
	"github.com/robalobadob/gamedle/internal/database"
	"github.com/robalobadob/gamedle/internal/game"
)

func ptr(v int64) *int64 { return &v }

func fixture() []game.Candidate {
	return []game.Candidate{
		{ID: 1, Name: "Doom", OrderKey: ptr(755481600)},
		{ID: 2, Name: "Portal", OrderKey: ptr(1191974400)},
		{ID: 3, Name: "Celeste", OrderKey: ptr(1516838400)},
		{ID: 4, Name: "Prototype"},
	}
}

// catalogs returns a Static and a seeded SQLite catalog over the same data.
func catalogs(t *testing.T) map[string]Catalog {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatal(err)
	}
	sq := NewSQLite(db)
	if n, err := sq.Seed(ctx, fixture()); err != nil || n != 4 {
		t.Fatalf("Seed() = %d, %v", n, err)
	}
	return map[string]Catalog{"static": NewStatic(fixture()), "sqlite": sq}
}

func TestDraw(t *testing.T) {
	ctx := context.Background()
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			got, err := c.Draw(ctx, 3, Filter{})
			if err != nil {
				t.Fatalf("Draw() error = %v", err)
			}
			seen := map[int64]bool{}
			for _, g := range got {
				if seen[g.ID] {
					t.Errorf("duplicate id %d", g.ID)
				}
				seen[g.ID] = true
			}
			if len(got) != 3 {
				t.Errorf("Draw() returned %d, want 3", len(got))
			}
		})
	}
}

func TestDrawFilters(t *testing.T) {
	ctx := context.Background()
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			got, err := c.Draw(ctx, 2, Filter{Exclude: []int64{1}, RequireOrderKey: true})
			if err != nil {
				t.Fatalf("Draw() error = %v", err)
			}
			for _, g := range got {
				if g.ID == 1 || g.ID == 4 {
					t.Errorf("filtered candidate %d returned", g.ID)
				}
				if !g.HasOrderKey() {
					t.Errorf("candidate %d has no order key", g.ID)
				}
			}
		})
	}
}

func TestDrawShort(t *testing.T) {
	ctx := context.Background()
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			_, err := c.Draw(ctx, 4, Filter{RequireOrderKey: true})
			if !errors.Is(err, game.ErrCatalogUnavailable) || !errors.Is(err, ErrExhausted) {
				t.Errorf("Draw() error = %v, want ErrExhausted", err)
			}
		})
	}
}

func TestAllSortedByID(t *testing.T) {
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			all, err := c.All(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			for i, g := range all {
				if g.ID != int64(i+1) {
					t.Fatalf("position %d: id %d", i, g.ID)
				}
			}
			if all[3].OrderKey != nil {
				t.Error("NULL release date came back as a key")
			}
		})
	}
}

func TestSeedSkipsPopulatedTable(t *testing.T) {
	sq := catalogs(t)["sqlite"].(*SQLite)
	n, err := sq.Seed(context.Background(), fixture())
	if err != nil || n != 0 {
		t.Errorf("second Seed() = %d, %v; want 0, nil", n, err)
	}
}

func TestEmbeddedSeed(t *testing.T) {
	cs, err := assets.Candidates()
	if err != nil {
		t.Fatalf("assets.Candidates() error = %v", err)
	}
	if len(cs) < 10 {
		t.Fatalf("seed has %d games", len(cs))
	}
	c := NewStatic(cs)
	if _, err := c.Draw(context.Background(), 5, Filter{RequireOrderKey: true}); err != nil {
		t.Errorf("embedded seed cannot serve an ordering round: %v", err)
	}
}
