// internal/protocol/protocol.go
//
// Wire shapes shared by the HTTP and websocket transports.
//   - Action: the tag on every client request.
//   - Guess:  strategy-specific payload, validated before it reaches a round.
//   - Stats:  client-reported play summary, recorded fire-and-forget.
//   - Error:  user-facing error body with a stable code.

package protocol

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/robalobadob/gamedle/internal/game"
	"github.com/robalobadob/gamedle/internal/round"
	"github.com/robalobadob/gamedle/internal/stats"
)

// Action tags a client request.
type Action string

const (
	ActionSetAnswer   Action = "set-answer"   // HTTP: start a round
	ActionCheckAnswer Action = "check-answer" // HTTP: evaluate a guess
	ActionPeek        Action = "peek"
	ActionEnd         Action = "end"
	ActionStats       Action = "stats"

	ActionInit  Action = "init"  // websocket: start a round
	ActionGuess Action = "guess" // websocket: evaluate a guess
)

// Guess carries exactly one of the strategy payloads.
type Guess struct {
	CandidateID int64          `json:"candidateId,omitempty"` // scalar
	Order       []int64        `json:"order,omitempty"`       // ordering
	Direction   game.Direction `json:"direction,omitempty"`   // comparison

	// AttemptsRemaining is accepted for compatibility and ignored; the
	// server keeps its own count.
	AttemptsRemaining *int `json:"attemptsRemaining,omitempty"`
}

// Validate checks that g carries the payload strategy s needs.
func (g Guess) Validate(s game.Strategy) error {
	switch s {
	case game.StrategyScalar:
		if g.CandidateID <= 0 {
			return fmt.Errorf("%w: candidateId is required", game.ErrMalformedGuess)
		}
	case game.StrategyOrdering:
		if len(g.Order) == 0 {
			return fmt.Errorf("%w: order is required", game.ErrMalformedGuess)
		}
	case game.StrategyComparison:
		if !g.Direction.Valid() {
			return fmt.Errorf("%w: direction must be higher or lower", game.ErrMalformedGuess)
		}
	default:
		return fmt.Errorf("%w: unknown strategy %q", game.ErrMalformedGuess, s)
	}
	return nil
}

// Evaluate validates g and dispatches it to the controller method for the
// mode's strategy. The returned value is one of the round verdict types.
func Evaluate(ctx context.Context, c *round.Controller, m game.Mode, key string, g Guess) (any, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", game.ErrMalformedGuess)
	}
	if err := g.Validate(m.Strategy); err != nil {
		return nil, err
	}
	switch m.Strategy {
	case game.StrategyScalar:
		return c.Guess(ctx, m.ID, key, g.CandidateID)
	case game.StrategyOrdering:
		return c.Arrange(ctx, m.ID, key, g.Order)
	default:
		return c.Compare(ctx, m.ID, key, g.Direction)
	}
}

// Stats is a client-reported summary of a finished round.
type Stats struct {
	Attempts int     `json:"attempts"`
	Guesses  []int64 `json:"guesses,omitempty"`
	Found    bool    `json:"found"`
	Info     string  `json:"info,omitempty"`
}

// Record converts s into a stats record for the given session.
func (s Stats) Record(mode, key, playerID string) stats.Record {
	return stats.Record{
		SessionKey: key,
		Mode:       mode,
		PlayerID:   playerID,
		Attempts:   s.Attempts,
		Guesses:    s.Guesses,
		Found:      s.Found,
		Info:       s.Info,
	}
}

// Verify builds the record for a stats report. When key names a finished
// round started by the same player, attempts, outcome and guesses are taken
// from the server session and the record is marked verified. Anything else
// is kept as the client reported it, unverified, and never ranks.
func (s Stats) Verify(ctx context.Context, c *round.Controller, m game.Mode, key, playerID string) stats.Record {
	rec := s.Record(m.ID, key, playerID)
	if key == "" {
		return rec
	}
	out, err := c.Outcome(ctx, m.ID, key)
	if err != nil || !out.Status.Terminal() || out.PlayerID != playerID {
		return rec
	}
	rec.Attempts = out.Attempts
	rec.Found = out.Status == game.StatusWon
	if out.Guesses != nil {
		rec.Guesses = out.Guesses
	}
	rec.Verified = true
	return rec
}

// Error is the body of every failed request.
type Error struct {
	Code      string `json:"error"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Classify maps an error to an HTTP status and a user-facing body.
// Unrecognized errors become 500 internal without leaking their text.
func Classify(err error) (int, Error) {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		return http.StatusNotFound, Error{Code: "session_not_found", Message: "round expired or never started, start a new one"}
	case errors.Is(err, game.ErrMalformedGuess):
		return http.StatusBadRequest, Error{Code: "malformed_guess", Message: err.Error()}
	case errors.Is(err, game.ErrDuplicateGuess):
		return http.StatusConflict, Error{Code: "duplicate_guess", Message: err.Error()}
	case errors.Is(err, game.ErrRoundOver):
		return http.StatusConflict, Error{Code: "round_over"}
	case errors.Is(err, game.ErrConflict):
		return http.StatusConflict, Error{Code: "conflict", Retryable: true}
	case errors.Is(err, game.ErrUnknownMode):
		return http.StatusNotFound, Error{Code: "unknown_mode", Message: err.Error()}
	case errors.Is(err, game.ErrCatalogUnavailable):
		return http.StatusBadGateway, Error{Code: "catalog_unavailable"}
	case errors.Is(err, game.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, Error{Code: "store_unavailable", Retryable: true}
	}
	return http.StatusInternalServerError, Error{Code: "internal"}
}
