// assets/embed.go
//
// Embedded games seed used when no catalog database has been populated yet.
// Entries without a release date are kept: they can still be the secret of a
// scalar (cover) round but never of an ordering or comparison round.

package assets

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/robalobadob/gamedle/internal/game"
)

//go:embed games.json
var gamesJSON []byte

type seedGame struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ReleaseDate *int64 `json:"releaseDate"`
	Cover       string `json:"cover"`
}

// Candidates decodes the embedded seed.
func Candidates() ([]game.Candidate, error) {
	var raw []seedGame
	if err := json.Unmarshal(gamesJSON, &raw); err != nil {
		return nil, fmt.Errorf("decode games seed: %w", err)
	}
	out := make([]game.Candidate, 0, len(raw))
	for _, g := range raw {
		name := strings.TrimSpace(g.Name)
		if g.ID == 0 || name == "" {
			continue
		}
		out = append(out, game.Candidate{ID: g.ID, Name: name, OrderKey: g.ReleaseDate, Image: g.Cover})
	}
	return out, nil
}
