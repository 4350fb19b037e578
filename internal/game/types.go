// internal/game/types.go
//
// Core type definitions for the guessing engine.
// Defines:
//   - Candidate: a catalog entry usable as a secret or a guess.
//   - Session: server-side state for one round in progress.
//   - Status/Placement/Direction enums used in verdicts.

package game

import "time"

// Strategy selects how a mode's guesses are evaluated.
type Strategy string

const (
	StrategyScalar     Strategy = "scalar"     // guess one hidden candidate
	StrategyOrdering   Strategy = "ordering"   // arrange N candidates by ordering key
	StrategyComparison Strategy = "comparison" // higher/lower streak
)

// Status is the session state machine: active → won | lost.
type Status string

const (
	StatusActive Status = "active"
	StatusWon    Status = "won"
	StatusLost   Status = "lost"
)

// Terminal reports whether no further guesses may be applied.
func (s Status) Terminal() bool { return s == StatusWon || s == StatusLost }

// Placement is the per-position result of an ordering guess.
type Placement string

const (
	PlacementCorrect   Placement = "correct"
	PlacementMisplaced Placement = "misplaced"
)

// Direction is a comparison-mode answer.
type Direction string

const (
	DirectionHigher Direction = "higher"
	DirectionLower  Direction = "lower"
)

// Valid reports whether d is one of the two accepted answers.
func (d Direction) Valid() bool { return d == DirectionHigher || d == DirectionLower }

// Candidate is an entry from the games catalog.
type Candidate struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	OrderKey *int64 `json:"orderKey,omitempty"` // release date (unix seconds); nil when unknown
	Image    string `json:"image,omitempty"`
}

// HasOrderKey reports whether c can take part in ordering/comparison rounds.
func (c Candidate) HasOrderKey() bool { return c.OrderKey != nil }

// Key returns the ordering key, or 0 when absent.
func (c Candidate) Key() int64 {
	if c.OrderKey == nil {
		return 0
	}
	return *c.OrderKey
}

// Session holds the state of a single round.
//
// Exactly one of the secret fields is used, depending on Strategy:
//   - scalar:     Target
//   - ordering:   Sequence (sorted by ordering key ascending)
//   - comparison: Current (revealed) and Target (next, key hidden)
type Session struct {
	Key      string   `json:"key"`
	Mode     string   `json:"mode"`
	Strategy Strategy `json:"strategy"`

	Target   *Candidate  `json:"target,omitempty"`
	Sequence []Candidate `json:"sequence,omitempty"`
	Current  *Candidate  `json:"current,omitempty"`
	Shuffled []int64     `json:"shuffled,omitempty"` // client-visible ordering arrangement

	Guessed []int64 `json:"guessed,omitempty"` // scalar ids already tried
	Seen    []int64 `json:"seen,omitempty"`    // comparison ids drawn in this streak

	AttemptBudget     int    `json:"attemptBudget"`
	AttemptsRemaining int    `json:"attemptsRemaining"`
	Attempts          int    `json:"attempts"` // evaluated submissions, correct or not
	Streak            int    `json:"streak"`
	Status            Status `json:"status"`
	Version           int    `json:"version"` // bumped by every store update

	PlayerID  string    `json:"playerId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is logically absent at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Clone returns a deep copy so stores never share slices with callers.
func (s *Session) Clone() *Session {
	c := *s
	if s.Target != nil {
		t := *s.Target
		c.Target = &t
	}
	if s.Current != nil {
		t := *s.Current
		c.Current = &t
	}
	c.Sequence = append([]Candidate(nil), s.Sequence...)
	c.Shuffled = append([]int64(nil), s.Shuffled...)
	c.Guessed = append([]int64(nil), s.Guessed...)
	c.Seen = append([]int64(nil), s.Seen...)
	return &c
}
