// internal/game/errors.go
//
// Sentinel errors shared by the store, the round controller and transports.
// Transports match them with errors.Is and translate to user-facing codes.

package game

import "errors"

var (
	// ErrSessionNotFound means the key is missing or expired. The client must
	// start a new round; it is never reported as a wrong guess.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMalformedGuess is returned before evaluation; it never costs an attempt.
	ErrMalformedGuess = errors.New("malformed guess")

	// ErrDuplicateGuess is returned when a scalar candidate was already tried.
	ErrDuplicateGuess = errors.New("duplicate guess")

	// ErrRoundOver is returned for guesses against a won or lost session.
	ErrRoundOver = errors.New("round over")

	// ErrConflict means a concurrent guess changed the session first.
	ErrConflict = errors.New("concurrent update")

	// ErrUnknownMode is returned for mode ids missing from the registry.
	ErrUnknownMode = errors.New("unknown mode")

	// ErrCatalogUnavailable means the round could not be drawn.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrStoreUnavailable wraps transient store failures. Retryable.
	ErrStoreUnavailable = errors.New("session store unavailable")
)
