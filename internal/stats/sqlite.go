// internal/stats/sqlite.go
//
// SQLite sink over the plays table, plus the per-day leaderboard.

package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robalobadob/gamedle/internal/daily"
)

type SQLite struct{ db *sql.DB }

func NewSQLite(db *sql.DB) *SQLite { return &SQLite{db: db} }

func (s *SQLite) Save(ctx context.Context, r Record) error {
	guesses, err := json.Marshal(r.Guesses)
	if err != nil {
		return err
	}
	if r.Guesses == nil {
		guesses = []byte("[]")
	}
	var player, info any
	if r.PlayerID != "" {
		player = r.PlayerID
	}
	if r.Info != "" {
		info = r.Info
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plays(session_key, mode, player_id, attempts, guesses, found, info, verified, date, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		r.SessionKey, r.Mode, player, r.Attempts, string(guesses), r.Found, info, r.Verified,
		daily.DateKey(r.At), r.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert play: %w", err)
	}
	return nil
}

// LBRow is one leaderboard entry.
type LBRow struct {
	PlayerID string `json:"playerId"`
	Attempts int    `json:"attempts"`
	At       string `json:"at"`
}

// Leaderboard lists each player's best verified play of mode on date
// (YYYY-MM-DD): fewest attempts first, earliest first on ties. The reported
// time is the time of that play.
func (s *SQLite) Leaderboard(ctx context.Context, mode, date string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT player_id, attempts, created_at FROM (
		    SELECT player_id, attempts, created_at,
		           ROW_NUMBER() OVER (PARTITION BY player_id ORDER BY attempts ASC, created_at ASC) AS rn
		      FROM plays
		     WHERE mode=? AND date=? AND found=1 AND verified=1 AND player_id IS NOT NULL
		 )
		 WHERE rn = 1
		 ORDER BY attempts ASC, created_at ASC
		 LIMIT ?`, mode, date, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LBRow{}
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.PlayerID, &r.Attempts, &r.At); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
