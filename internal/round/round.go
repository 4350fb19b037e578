// internal/round/round.go
//
// Round lifecycle controller.
// Responsibilities:
//   - Start: draw candidates, build the secret, persist the session.
//   - Guess / Arrange / Compare: evaluate a submission inside an atomic
//     store update and return a verdict that only reveals the secret once
//     the round is over.
//   - Peek / End: read back or tear down a session.
//
// Sessions are stored under "<mode>:<key>" so two modes never collide on a
// client-supplied key.

package round

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/gamedle/internal/catalog"
	"github.com/robalobadob/gamedle/internal/daily"
	"github.com/robalobadob/gamedle/internal/game"
	"github.com/robalobadob/gamedle/internal/store"
)

// DefaultTTL matches the lifetime of an abandoned round.
const DefaultTTL = time.Hour

// Controller runs rounds for every registered mode.
type Controller struct {
	store   store.Store
	catalog catalog.Catalog
	modes   *game.Registry
	ttl     time.Duration
	salt    string
	now     func() time.Time
}

// Option customizes a Controller.
type Option func(*Controller)

// WithDailySalt sets the HMAC salt for daily modes.
func WithDailySalt(salt string) Option { return func(c *Controller) { c.salt = salt } }

// WithClock overrides time.Now (tests, daily picks).
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// New wires a controller. A non-positive ttl falls back to DefaultTTL.
func New(st store.Store, cat catalog.Catalog, modes *game.Registry, ttl time.Duration, opts ...Option) *Controller {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Controller{store: st, catalog: cat, modes: modes, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Modes exposes the registry for transports.
func (c *Controller) Modes() *game.Registry { return c.modes }

// StartOptions are the caller-controlled parts of a new round.
type StartOptions struct {
	Key      string  // session key; a UUIDv4 is generated when empty
	Exclude  []int64 // candidate ids that must not be drawn
	PlayerID string
}

// Round is the client-visible state of a session.
type Round struct {
	Key               string        `json:"key"`
	Mode              string        `json:"mode"`
	Strategy          game.Strategy `json:"strategy"`
	Status            game.Status   `json:"status"`
	AttemptBudget     int           `json:"attemptBudget"`
	AttemptsRemaining int           `json:"attemptsRemaining"`
	Streak            int           `json:"streak,omitempty"`

	Puzzle     *game.View  `json:"puzzle,omitempty"`     // scalar
	Candidates []game.View `json:"candidates,omitempty"` // ordering, shuffled, keys stripped
	Current    *game.View  `json:"current,omitempty"`    // comparison, revealed
	Next       *game.View  `json:"next,omitempty"`       // comparison, key hidden

	Answer []game.View `json:"answer,omitempty"` // terminal rounds only
}

// ScalarVerdict answers a single-candidate guess.
type ScalarVerdict struct {
	Correct           bool        `json:"correct"`
	Status            game.Status `json:"status"`
	AttemptsRemaining int         `json:"attemptsRemaining"`
	Answer            *game.View  `json:"answer,omitempty"`
}

// OrderingVerdict answers a full-sequence guess. Positions describe what
// the player submitted; Answer is the reference order, set once the round ends.
type OrderingVerdict struct {
	AllCorrect        bool                  `json:"allCorrect"`
	Positions         []game.PositionResult `json:"positions"`
	Status            game.Status           `json:"status"`
	AttemptsRemaining int                   `json:"attemptsRemaining"`
	Answer            []game.View           `json:"answer,omitempty"`
}

// ComparisonVerdict answers a higher/lower guess.
type ComparisonVerdict struct {
	Correct           bool        `json:"correct"`
	Status            game.Status `json:"status"`
	Streak            int         `json:"streak"`
	AttemptsRemaining int         `json:"attemptsRemaining"`
	Revealed          *game.View  `json:"revealed,omitempty"` // the candidate just judged
	Current           *game.View  `json:"current,omitempty"`
	Next              *game.View  `json:"next,omitempty"`
}

func storeKey(mode, key string) string { return mode + ":" + key }

func logger(mode, key string) *zerolog.Logger {
	l := log.With().Str("mode", mode).Str("key", key).Logger()
	return &l
}

// Start draws a new round and stores it, replacing any session under the
// same key. Nothing is stored when the draw fails.
func (c *Controller) Start(ctx context.Context, modeID string, opts StartOptions) (*Round, error) {
	m, err := c.modes.Get(modeID)
	if err != nil {
		return nil, err
	}
	key := opts.Key
	if key == "" {
		key = uuid.NewString()
	}
	lg := logger(m.ID, key)

	now := c.now()
	s := &game.Session{
		Key:               key,
		Mode:              m.ID,
		Strategy:          m.Strategy,
		AttemptBudget:     m.AttemptBudget,
		AttemptsRemaining: m.AttemptBudget,
		Status:            game.StatusActive,
		PlayerID:          opts.PlayerID,
		CreatedAt:         now,
		ExpiresAt:         now.Add(c.ttl),
	}

	switch m.Strategy {
	case game.StrategyScalar:
		target, err := c.drawScalar(ctx, m, opts.Exclude)
		if err != nil {
			lg.Warn().Err(err).Msg("start: draw failed")
			return nil, err
		}
		s.Target = &target

	case game.StrategyOrdering:
		cs, err := c.catalog.Draw(ctx, m.CandidateCount, catalog.Filter{Exclude: opts.Exclude, RequireOrderKey: true})
		if err != nil {
			lg.Warn().Err(err).Msg("start: draw failed")
			return nil, err
		}
		game.SortByKey(cs)
		s.Sequence = cs
		s.Shuffled = shuffle(cs)

	case game.StrategyComparison:
		cs, err := c.catalog.Draw(ctx, 2, catalog.Filter{Exclude: opts.Exclude, RequireOrderKey: true})
		if err != nil {
			lg.Warn().Err(err).Msg("start: draw failed")
			return nil, err
		}
		s.Current, s.Target = &cs[0], &cs[1]
		s.Seen = []int64{cs[0].ID, cs[1].ID}
	}

	if err := c.store.Put(ctx, storeKey(m.ID, key), s, c.ttl); err != nil {
		lg.Error().Err(err).Msg("start: store put")
		return nil, err
	}
	lg.Info().Str("strategy", string(m.Strategy)).Int("attempts", m.AttemptBudget).Msg("round started")
	r := roundOf(s)
	return &r, nil
}

func (c *Controller) drawScalar(ctx context.Context, m game.Mode, exclude []int64) (game.Candidate, error) {
	if m.Daily {
		all, err := c.catalog.All(ctx)
		if err != nil {
			return game.Candidate{}, err
		}
		return daily.Pick(c.now(), c.salt, all)
	}
	cs, err := c.catalog.Draw(ctx, 1, catalog.Filter{Exclude: exclude})
	if err != nil {
		return game.Candidate{}, err
	}
	return cs[0], nil
}

// shuffle returns the ids of cs in an order that does not already score as
// fully correct, whenever the keys allow such an order.
func shuffle(cs []game.Candidate) []int64 {
	ids := make([]int64, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if res, err := game.ScoreOrdering(cs, ids); err == nil && res.AllCorrect && len(ids) > 1 {
		first := ids[0]
		copy(ids, ids[1:])
		ids[len(ids)-1] = first
	}
	return ids
}

// mode resolves the mode and checks that its strategy matches want.
func (c *Controller) mode(modeID string, want game.Strategy) (game.Mode, error) {
	m, err := c.modes.Get(modeID)
	if err != nil {
		return game.Mode{}, err
	}
	if m.Strategy != want {
		return game.Mode{}, fmt.Errorf("%w: mode %s expects a %s guess", game.ErrMalformedGuess, m.ID, m.Strategy)
	}
	return m, nil
}

// Guess evaluates a scalar guess. Repeated ids are rejected without
// costing an attempt.
func (c *Controller) Guess(ctx context.Context, modeID, key string, candidateID int64) (*ScalarVerdict, error) {
	m, err := c.mode(modeID, game.StrategyScalar)
	if err != nil {
		return nil, err
	}
	if candidateID <= 0 {
		return nil, fmt.Errorf("%w: candidate id %d", game.ErrMalformedGuess, candidateID)
	}

	var correct bool
	s, err := c.store.Update(ctx, storeKey(m.ID, key), func(s *game.Session) error {
		if s.Status.Terminal() {
			return game.ErrRoundOver
		}
		for _, id := range s.Guessed {
			if id == candidateID {
				return fmt.Errorf("%w: %d", game.ErrDuplicateGuess, candidateID)
			}
		}
		s.Guessed = append(s.Guessed, candidateID)
		s.Attempts++
		correct = game.MatchScalar(*s.Target, candidateID)
		if correct {
			s.Status = game.StatusWon
			return nil
		}
		s.AttemptsRemaining--
		if s.AttemptsRemaining <= 0 {
			s.AttemptsRemaining = 0
			s.Status = game.StatusLost
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	v := &ScalarVerdict{Correct: correct, Status: s.Status, AttemptsRemaining: s.AttemptsRemaining}
	if s.Status.Terminal() {
		ans := game.RevealView(*s.Target)
		v.Answer = &ans
	}
	logger(m.ID, key).Debug().Bool("correct", correct).Int("remaining", s.AttemptsRemaining).Msg("guess")
	return v, nil
}

// Arrange scores a proposed order of candidate ids.
func (c *Controller) Arrange(ctx context.Context, modeID, key string, ids []int64) (*OrderingVerdict, error) {
	m, err := c.mode(modeID, game.StrategyOrdering)
	if err != nil {
		return nil, err
	}

	var res game.OrderingResult
	s, err := c.store.Update(ctx, storeKey(m.ID, key), func(s *game.Session) error {
		if s.Status.Terminal() {
			return game.ErrRoundOver
		}
		r, err := game.ScoreOrdering(s.Sequence, ids)
		if err != nil {
			return err
		}
		res = r
		s.Attempts++
		if r.AllCorrect {
			s.Status = game.StatusWon
			return nil
		}
		s.AttemptsRemaining--
		if s.AttemptsRemaining <= 0 {
			s.AttemptsRemaining = 0
			s.Status = game.StatusLost
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	v := &OrderingVerdict{
		AllCorrect:        res.AllCorrect,
		Positions:         res.Positions,
		Status:            s.Status,
		AttemptsRemaining: s.AttemptsRemaining,
	}
	if s.Status.Terminal() {
		v.Answer = game.RevealAll(s.Sequence)
	}
	logger(m.ID, key).Debug().Bool("allCorrect", res.AllCorrect).Int("remaining", s.AttemptsRemaining).Msg("arrange")
	return v, nil
}

// Compare answers whether the next candidate's key is higher or lower than
// the current one. A correct answer promotes next to current and draws a new
// next outside the store update; the update then fails with ErrConflict if
// another submission got there first.
func (c *Controller) Compare(ctx context.Context, modeID, key string, dir game.Direction) (*ComparisonVerdict, error) {
	m, err := c.mode(modeID, game.StrategyComparison)
	if err != nil {
		return nil, err
	}
	if !dir.Valid() {
		return nil, fmt.Errorf("%w: direction %q", game.ErrMalformedGuess, dir)
	}
	lg := logger(m.ID, key)
	sk := storeKey(m.ID, key)

	snap, err := c.store.Get(ctx, sk)
	if err != nil {
		return nil, err
	}
	if snap.Status.Terminal() {
		return nil, game.ErrRoundOver
	}
	correct := game.Compare(*snap.Current, *snap.Target, dir)
	judged := *snap.Target

	var next *game.Candidate
	if correct {
		cs, err := c.catalog.Draw(ctx, 1, catalog.Filter{Exclude: snap.Seen, RequireOrderKey: true})
		switch {
		case err == nil:
			next = &cs[0]
		case errors.Is(err, catalog.ErrExhausted):
			lg.Info().Int("streak", snap.Streak+1).Msg("catalog exhausted, streak complete")
		default:
			return nil, err
		}
	}

	s, err := c.store.Update(ctx, sk, func(s *game.Session) error {
		if s.Version != snap.Version {
			return game.ErrConflict
		}
		if s.Status.Terminal() {
			return game.ErrRoundOver
		}
		s.Attempts++
		if correct {
			s.Streak++
			if next == nil {
				s.Status = game.StatusWon
				return nil
			}
			promoted := *s.Target
			n := *next
			s.Current, s.Target = &promoted, &n
			s.Seen = append(s.Seen, n.ID)
			return nil
		}
		s.AttemptsRemaining--
		if s.AttemptsRemaining <= 0 {
			s.AttemptsRemaining = 0
			s.Status = game.StatusLost
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	v := &ComparisonVerdict{
		Correct:           correct,
		Status:            s.Status,
		Streak:            s.Streak,
		AttemptsRemaining: s.AttemptsRemaining,
	}
	if correct || s.Status.Terminal() {
		rv := game.RevealView(judged)
		v.Revealed = &rv
	}
	if s.Status == game.StatusActive {
		cur, nx := game.RevealView(*s.Current), game.HiddenKeyView(*s.Target)
		v.Current, v.Next = &cur, &nx
	}
	lg.Debug().Bool("correct", correct).Int("streak", s.Streak).Msg("compare")
	return v, nil
}

// Peek returns the client-visible state of an existing round.
func (c *Controller) Peek(ctx context.Context, modeID, key string) (*Round, error) {
	m, err := c.modes.Get(modeID)
	if err != nil {
		return nil, err
	}
	s, err := c.store.Get(ctx, storeKey(m.ID, key))
	if err != nil {
		return nil, err
	}
	r := roundOf(s)
	return &r, nil
}

// End deletes the round. Ending a missing round is not an error.
func (c *Controller) End(ctx context.Context, modeID, key string) error {
	m, err := c.modes.Get(modeID)
	if err != nil {
		return err
	}
	if err := c.store.Delete(ctx, storeKey(m.ID, key)); err != nil {
		return err
	}
	logger(m.ID, key).Debug().Msg("round ended")
	return nil
}

// Outcome is the server-side result of a round. Reported stats are checked
// against it before they count towards a leaderboard.
type Outcome struct {
	Status   game.Status
	Attempts int
	Guesses  []int64 // scalar ids in submission order
	Streak   int
	PlayerID string
}

// Outcome returns what the server recorded for a round.
func (c *Controller) Outcome(ctx context.Context, modeID, key string) (*Outcome, error) {
	m, err := c.modes.Get(modeID)
	if err != nil {
		return nil, err
	}
	s, err := c.store.Get(ctx, storeKey(m.ID, key))
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Status:   s.Status,
		Attempts: s.Attempts,
		Guesses:  s.Guessed,
		Streak:   s.Streak,
		PlayerID: s.PlayerID,
	}, nil
}

// roundOf projects a session to what the client may see.
func roundOf(s *game.Session) Round {
	r := Round{
		Key:               s.Key,
		Mode:              s.Mode,
		Strategy:          s.Strategy,
		Status:            s.Status,
		AttemptBudget:     s.AttemptBudget,
		AttemptsRemaining: s.AttemptsRemaining,
		Streak:            s.Streak,
	}
	over := s.Status.Terminal()

	switch s.Strategy {
	case game.StrategyScalar:
		p := game.PuzzleView(*s.Target)
		r.Puzzle = &p
		if over {
			r.Answer = []game.View{game.RevealView(*s.Target)}
		}

	case game.StrategyOrdering:
		byID := make(map[int64]game.Candidate, len(s.Sequence))
		for _, c := range s.Sequence {
			byID[c.ID] = c
		}
		r.Candidates = make([]game.View, 0, len(s.Shuffled))
		for _, id := range s.Shuffled {
			r.Candidates = append(r.Candidates, game.HiddenKeyView(byID[id]))
		}
		if over {
			r.Answer = game.RevealAll(s.Sequence)
		}

	case game.StrategyComparison:
		cur := game.RevealView(*s.Current)
		r.Current = &cur
		if over {
			r.Answer = []game.View{game.RevealView(*s.Target)}
		} else {
			nx := game.HiddenKeyView(*s.Target)
			r.Next = &nx
		}
	}
	return r
}
