// internal/daily/daily.go
//
// Deterministic "game of the day" selection.
// The pick for a UTC date is HMAC-SHA256(salt, YYYY-MM-DD) mod len(candidates),
// so every server instance sharing the salt agrees without coordination.

package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/robalobadob/gamedle/internal/game"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Index returns a deterministic index in [0, n) for the date.
func Index(date time.Time, salt string, n int) int {
	if n <= 0 {
		return 0
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	// first 8 bytes as uint64 for the modulus
	v := binary.BigEndian.Uint64(sum[:8])
	return int(v % uint64(n))
}

// Pick returns the candidate of the day. cs must be in a stable order
// (the catalog returns it sorted by id).
func Pick(date time.Time, salt string, cs []game.Candidate) (game.Candidate, error) {
	if len(cs) == 0 {
		return game.Candidate{}, fmt.Errorf("%w: empty catalog", game.ErrCatalogUnavailable)
	}
	return cs[Index(date, salt, len(cs))], nil
}
