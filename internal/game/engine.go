// internal/game/engine.go
//
// Pure scoring for the three guessing strategies.
// Responsibilities:
//   - Scalar: compare a submitted id with the hidden candidate.
//   - Ordering: per-position verdicts with proximity scoring.
//   - Comparison: higher/lower check between two ordering keys.
//
// Nothing here touches a store; the round controller applies the results
// to a Session inside an atomic store update.

package game

import (
	"fmt"
	"sort"
)

// MatchScalar reports whether candidateID is the secret.
func MatchScalar(secret Candidate, candidateID int64) bool {
	return secret.ID == candidateID
}

// PositionResult is the verdict for one slot of an ordering guess.
type PositionResult struct {
	Position    int       `json:"position"`
	CandidateID int64     `json:"candidateId"`
	Placement   Placement `json:"placement"`
	// Proximity is ((N - |i - correctIndex|) / N) * 100 for misplaced slots.
	Proximity float64 `json:"proximity,omitempty"`
}

// OrderingResult is the scored form of a full-sequence submission.
type OrderingResult struct {
	Positions  []PositionResult `json:"positions"`
	AllCorrect bool             `json:"allCorrect"`
}

// ScoreOrdering scores proposed (candidate ids) against secret, which must be
// sorted by ordering key ascending.
//
// Validation (all ErrMalformedGuess, checked before any scoring):
//   - len(proposed) must equal len(secret);
//   - every id must belong to the secret;
//   - no id may repeat.
//
// Candidates with equal ordering keys are interchangeable: a slot counts as
// correct when the proposed candidate's key equals the secret key there, and
// the correct index used for proximity is the nearest slot holding that key.
func ScoreOrdering(secret []Candidate, proposed []int64) (OrderingResult, error) {
	n := len(secret)
	if len(proposed) != n {
		return OrderingResult{}, fmt.Errorf("%w: got %d ids, want %d", ErrMalformedGuess, len(proposed), n)
	}

	index := make(map[int64]int, n)
	for i, c := range secret {
		index[c.ID] = i
	}
	seen := make(map[int64]struct{}, n)
	for _, id := range proposed {
		if _, ok := index[id]; !ok {
			return OrderingResult{}, fmt.Errorf("%w: id %d is not part of this round", ErrMalformedGuess, id)
		}
		if _, dup := seen[id]; dup {
			return OrderingResult{}, fmt.Errorf("%w: id %d appears twice", ErrMalformedGuess, id)
		}
		seen[id] = struct{}{}
	}

	res := OrderingResult{Positions: make([]PositionResult, n), AllCorrect: true}
	for i, id := range proposed {
		guessed := secret[index[id]]
		pr := PositionResult{Position: i, CandidateID: id}
		if id == secret[i].ID || sameKey(guessed, secret[i]) {
			pr.Placement = PlacementCorrect
		} else {
			pr.Placement = PlacementMisplaced
			pr.Proximity = Proximity(n, i, nearestIndex(secret, guessed, i))
			res.AllCorrect = false
		}
		res.Positions[i] = pr
	}
	return res, nil
}

// Proximity rewards near misses: ((n - |pos - correct|) / n) * 100.
func Proximity(n, pos, correct int) float64 {
	if n <= 0 {
		return 0
	}
	d := pos - correct
	if d < 0 {
		d = -d
	}
	return float64(n-d) * 100 / float64(n)
}

// sameKey reports whether both candidates carry the same, known ordering key.
func sameKey(a, b Candidate) bool {
	return a.OrderKey != nil && b.OrderKey != nil && *a.OrderKey == *b.OrderKey
}

// nearestIndex returns the secret index of c, or of the closest slot to pos
// that holds a candidate tied with c.
func nearestIndex(secret []Candidate, c Candidate, pos int) int {
	best, bestDist := -1, 0
	for i, s := range secret {
		if s.ID != c.ID && !sameKey(s, c) {
			continue
		}
		d := i - pos
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Compare evaluates a higher/lower answer for next relative to current.
// Equal keys are correct in either direction.
func Compare(current, next Candidate, dir Direction) bool {
	switch dir {
	case DirectionHigher:
		return next.Key() >= current.Key()
	case DirectionLower:
		return next.Key() <= current.Key()
	}
	return false
}

// SortByKey orders candidates by ordering key ascending; ties keep id order.
func SortByKey(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Key() != cs[j].Key() {
			return cs[i].Key() < cs[j].Key()
		}
		return cs[i].ID < cs[j].ID
	})
}
