// internal/catalog/sqlite.go
//
// SQLite-backed catalog over the games table:
//
//	games(id INTEGER PRIMARY KEY, name TEXT, release_date INTEGER NULL, cover TEXT)

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/gamedle/internal/game"
)

// SQLite draws candidates from a database handle.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps db. The games table must already exist.
func NewSQLite(db *sql.DB) *SQLite { return &SQLite{db: db} }

// Draw picks n random rows matching f.
func (s *SQLite) Draw(ctx context.Context, n int, f Filter) ([]game.Candidate, error) {
	if n <= 0 {
		return nil, nil
	}
	var (
		where []string
		args  []any
	)
	if f.RequireOrderKey {
		where = append(where, "release_date IS NOT NULL")
	}
	if len(f.Exclude) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(f.Exclude)), ",")
		where = append(where, "id NOT IN ("+marks+")")
		for _, id := range f.Exclude {
			args = append(args, id)
		}
	}
	q := `SELECT id, name, release_date, COALESCE(cover,'') FROM games`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY RANDOM() LIMIT ?"
	args = append(args, n)

	out, err := s.query(ctx, q, args...)
	if err != nil {
		log.Error().Err(err).Msg("catalog draw")
		return nil, fmt.Errorf("%w: %v", game.ErrCatalogUnavailable, err)
	}
	if len(out) < n {
		return nil, shortDraw(len(out), n)
	}
	return out, nil
}

// All returns every game sorted by id.
func (s *SQLite) All(ctx context.Context) ([]game.Candidate, error) {
	out, err := s.query(ctx, `SELECT id, name, release_date, COALESCE(cover,'') FROM games ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", game.ErrCatalogUnavailable, err)
	}
	return out, nil
}

func (s *SQLite) query(ctx context.Context, q string, args ...any) ([]game.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []game.Candidate
	for rows.Next() {
		var (
			c   game.Candidate
			rel sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.Name, &rel, &c.Image); err != nil {
			return nil, err
		}
		if rel.Valid {
			v := rel.Int64
			c.OrderKey = &v
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns the number of games.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM games`).Scan(&n)
	return n, err
}

// Seed inserts cs when the table is empty. Returns how many rows were added.
func (s *SQLite) Seed(ctx context.Context, cs []game.Candidate) (int, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO games (id, name, release_date, cover) VALUES (?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare seed: %w", err)
	}
	defer stmt.Close()

	for _, c := range cs {
		var rel any
		if c.OrderKey != nil {
			rel = *c.OrderKey
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Name, rel, c.Image); err != nil {
			return 0, fmt.Errorf("seed game %d: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return len(cs), nil
}
