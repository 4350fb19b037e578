package round

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/robalobadob/gamedle/internal/catalog"
	"github.com/robalobadob/gamedle/internal/game"
	"github.com/robalobadob/gamedle/internal/store"
)

func key(v int64) *int64 { return &v }

func games() []game.Candidate {
	return []game.Candidate{
		{ID: 1, Name: "Doom", OrderKey: key(100), Image: "/covers/doom.jpg"},
		{ID: 2, Name: "Quake", OrderKey: key(200), Image: "/covers/quake.jpg"},
		{ID: 3, Name: "Half-Life", OrderKey: key(300), Image: "/covers/half-life.jpg"},
		{ID: 4, Name: "Portal", OrderKey: key(400), Image: "/covers/portal.jpg"},
		{ID: 5, Name: "Celeste", OrderKey: key(500), Image: "/covers/celeste.jpg"},
	}
}

var testModes = []game.Mode{
	{ID: "cover", Strategy: game.StrategyScalar, CandidateCount: 1, AttemptBudget: 3},
	{ID: "sudden", Strategy: game.StrategyScalar, CandidateCount: 1, AttemptBudget: 1},
	{ID: "daily", Strategy: game.StrategyScalar, CandidateCount: 1, AttemptBudget: 5, Daily: true},
	{ID: "timeline", Strategy: game.StrategyOrdering, CandidateCount: 4, AttemptBudget: 2},
	{ID: "hilo", Strategy: game.StrategyComparison, CandidateCount: 2, AttemptBudget: 1},
}

func newController(t *testing.T, cat catalog.Catalog) (*Controller, *store.Memory) {
	t.Helper()
	reg, err := game.NewRegistry(testModes)
	if err != nil {
		t.Fatal(err)
	}
	st := store.NewMemory()
	return New(st, cat, reg, time.Hour, WithDailySalt("test-salt")), st
}

// newRedisController runs the controller on the shared-store backend.
func newRedisController(t *testing.T, cat catalog.Catalog) (*Controller, store.Store) {
	t.Helper()
	reg, err := game.NewRegistry(testModes)
	if err != nil {
		t.Fatal(err)
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	st := store.NewRedis(client, "test")
	return New(st, cat, reg, time.Hour, WithDailySalt("test-salt")), st
}

// secret reads the stored session directly; clients never see this.
func secret(t *testing.T, st store.Store, mode, k string) *game.Session {
	t.Helper()
	s, err := st.Get(context.Background(), storeKey(mode, k))
	if err != nil {
		t.Fatalf("secret(%s, %s): %v", mode, k, err)
	}
	return s
}

func TestScenarioWrongThenRight(t *testing.T) {
	ctx := context.Background()
	c, st := newController(t, catalog.NewStatic(games()))

	r, err := c.Start(ctx, "cover", StartOptions{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if r.AttemptsRemaining != 3 {
		t.Fatalf("AttemptsRemaining = %d, want 3", r.AttemptsRemaining)
	}

	v, err := c.Guess(ctx, "cover", r.Key, 99)
	if err != nil {
		t.Fatal(err)
	}
	if v.Correct || v.Answer != nil || v.AttemptsRemaining != 2 || v.Status != game.StatusActive {
		t.Fatalf("wrong guess verdict = %+v", v)
	}

	target := secret(t, st, "cover", r.Key).Target
	v, err = c.Guess(ctx, "cover", r.Key, target.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Correct || v.Status != game.StatusWon {
		t.Fatalf("right guess verdict = %+v", v)
	}
	if v.Answer == nil || v.Answer.ID != target.ID || v.Answer.Name != target.Name {
		t.Errorf("answer = %+v, want %s revealed", v.Answer, target.Name)
	}
}

func TestScenarioLastAttemptReveals(t *testing.T) {
	ctx := context.Background()
	c, st := newController(t, catalog.NewStatic(games()))

	r, err := c.Start(ctx, "sudden", StartOptions{})
	if err != nil {
		t.Fatal(err)
	}
	v, err := c.Guess(ctx, "sudden", r.Key, 99)
	if err != nil {
		t.Fatal(err)
	}
	target := secret(t, st, "sudden", r.Key).Target
	if v.Correct || v.Status != game.StatusLost || v.AttemptsRemaining != 0 {
		t.Fatalf("verdict = %+v", v)
	}
	if v.Answer == nil || v.Answer.ID != target.ID {
		t.Errorf("secret not revealed on terminal attempt: %+v", v.Answer)
	}
}

func TestScenarioUnknownSession(t *testing.T) {
	c, _ := newController(t, catalog.NewStatic(games()))
	_, err := c.Guess(context.Background(), "cover", "abc", 1)
	if !errors.Is(err, game.ErrSessionNotFound) {
		t.Errorf("Guess() error = %v, want ErrSessionNotFound", err)
	}
}

func TestActiveRoundsHideSecret(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, catalog.NewStatic(games()))

	for _, mode := range []string{"cover", "timeline", "hilo"} {
		t.Run(mode, func(t *testing.T) {
			r, err := c.Start(ctx, mode, StartOptions{})
			if err != nil {
				t.Fatal(err)
			}
			if len(r.Answer) != 0 {
				t.Error("active round carries an answer")
			}
			switch mode {
			case "cover":
				if r.Puzzle == nil || r.Puzzle.Image == "" {
					t.Fatal("puzzle image missing")
				}
				if r.Puzzle.ID != 0 || r.Puzzle.Name != "" || r.Puzzle.OrderKey != nil {
					t.Errorf("puzzle leaks identity: %+v", r.Puzzle)
				}
				b, _ := json.Marshal(r)
				for _, g := range games() {
					if strings.Contains(string(b), `"`+g.Name+`"`) {
						t.Errorf("round JSON contains %q: %s", g.Name, b)
					}
				}
			case "timeline":
				if len(r.Candidates) != 4 {
					t.Fatalf("candidates = %d, want 4", len(r.Candidates))
				}
				for _, v := range r.Candidates {
					if v.OrderKey != nil {
						t.Errorf("candidate %d exposes its key", v.ID)
					}
				}
			case "hilo":
				if r.Current == nil || r.Current.OrderKey == nil {
					t.Error("current should be revealed")
				}
				if r.Next == nil || r.Next.OrderKey != nil {
					t.Errorf("next leaks its key: %+v", r.Next)
				}
			}
		})
	}
}

func TestAttemptsDecreaseByOne(t *testing.T) {
	ctx := context.Background()
	c, st := newController(t, catalog.NewStatic(games()))
	r, err := c.Start(ctx, "cover", StartOptions{})
	if err != nil {
		t.Fatal(err)
	}
	target := secret(t, st, "cover", r.Key).Target.ID

	want := 3
	for id := int64(1); id <= 5 && want > 0; id++ {
		if id == target {
			continue
		}
		v, err := c.Guess(ctx, "cover", r.Key, id)
		if err != nil {
			t.Fatal(err)
		}
		want--
		if v.AttemptsRemaining != want {
			t.Fatalf("after guess %d remaining = %d, want %d", id, v.AttemptsRemaining, want)
		}
	}

	if _, err := c.Guess(ctx, "cover", r.Key, target); !errors.Is(err, game.ErrRoundOver) {
		t.Errorf("guess after loss error = %v, want ErrRoundOver", err)
	}
	if s := secret(t, st, "cover", r.Key); s.AttemptsRemaining != 0 || s.Status != game.StatusLost {
		t.Errorf("terminal session changed: remaining=%d status=%s", s.AttemptsRemaining, s.Status)
	}
}

func TestDuplicateGuessNotCounted(t *testing.T) {
	ctx := context.Background()
	c, st := newController(t, catalog.NewStatic(games()))
	r, _ := c.Start(ctx, "cover", StartOptions{})
	wrong := int64(99)

	if _, err := c.Guess(ctx, "cover", r.Key, wrong); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Guess(ctx, "cover", r.Key, wrong); !errors.Is(err, game.ErrDuplicateGuess) {
		t.Fatalf("repeat error = %v, want ErrDuplicateGuess", err)
	}
	if s := secret(t, st, "cover", r.Key); s.AttemptsRemaining != 2 {
		t.Errorf("remaining = %d, want 2", s.AttemptsRemaining)
	}
}

func TestArrangeRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, st := newController(t, catalog.NewStatic(games()))
	r, err := c.Start(ctx, "timeline", StartOptions{})
	if err != nil {
		t.Fatal(err)
	}

	var shown, order []int64
	for _, v := range r.Candidates {
		shown = append(shown, v.ID)
	}
	s := secret(t, st, "timeline", r.Key)
	for _, g := range s.Sequence {
		order = append(order, g.ID)
	}
	if equalIDs(shown, order) {
		t.Error("client arrangement equals the secret order")
	}
	for i := 1; i < len(s.Sequence); i++ {
		if s.Sequence[i-1].Key() > s.Sequence[i].Key() {
			t.Fatal("secret not sorted by key")
		}
	}

	v, err := c.Arrange(ctx, "timeline", r.Key, order)
	if err != nil {
		t.Fatal(err)
	}
	if !v.AllCorrect || v.Status != game.StatusWon || len(v.Answer) != 4 {
		t.Fatalf("verdict = %+v", v)
	}
	for i, a := range v.Answer {
		if a.ID != order[i] || a.OrderKey == nil {
			t.Errorf("answer[%d] = %+v", i, a)
		}
	}
}

func TestArrangeWrongThenLost(t *testing.T) {
	ctx := context.Background()
	c, st := newController(t, catalog.NewStatic(games()))
	r, _ := c.Start(ctx, "timeline", StartOptions{})
	s := secret(t, st, "timeline", r.Key)

	rev := make([]int64, len(s.Sequence))
	for i, g := range s.Sequence {
		rev[len(rev)-1-i] = g.ID
	}

	v, err := c.Arrange(ctx, "timeline", r.Key, rev)
	if err != nil {
		t.Fatal(err)
	}
	if v.AllCorrect || v.Status != game.StatusActive || v.AttemptsRemaining != 1 || v.Answer != nil {
		t.Fatalf("first verdict = %+v", v)
	}
	// reversed order of 4: slot 0 holds index 3 -> (4-3)/4
	if p := v.Positions[0]; p.Placement != game.PlacementMisplaced || p.Proximity != 25 {
		t.Errorf("position 0 = %+v", p)
	}

	v, err = c.Arrange(ctx, "timeline", r.Key, rev)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != game.StatusLost || len(v.Answer) != 4 {
		t.Errorf("second verdict = %+v", v)
	}
}

func TestArrangeMalformedNotCounted(t *testing.T) {
	ctx := context.Background()
	c, st := newController(t, catalog.NewStatic(games()))
	r, _ := c.Start(ctx, "timeline", StartOptions{})

	tests := [][]int64{nil, {1, 2}, {1, 2, 3, 4, 5}, {99, 98, 97, 96}}
	for _, ids := range tests {
		if _, err := c.Arrange(ctx, "timeline", r.Key, ids); !errors.Is(err, game.ErrMalformedGuess) {
			t.Errorf("Arrange(%v) error = %v, want ErrMalformedGuess", ids, err)
		}
	}
	if s := secret(t, st, "timeline", r.Key); s.AttemptsRemaining != 2 || s.Attempts != 0 {
		t.Errorf("malformed guesses were counted: %+v", s)
	}
}

func TestWrongStrategy(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, catalog.NewStatic(games()))
	r, _ := c.Start(ctx, "timeline", StartOptions{})

	if _, err := c.Guess(ctx, "timeline", r.Key, 1); !errors.Is(err, game.ErrMalformedGuess) {
		t.Errorf("Guess on ordering mode error = %v", err)
	}
	if _, err := c.Compare(ctx, "cover", r.Key, game.DirectionHigher); !errors.Is(err, game.ErrMalformedGuess) {
		t.Errorf("Compare on scalar mode error = %v", err)
	}
	if _, err := c.Start(ctx, "nope", StartOptions{}); !errors.Is(err, game.ErrUnknownMode) {
		t.Errorf("Start unknown mode error = %v", err)
	}
}

func TestCompareTiesAlwaysCorrect(t *testing.T) {
	ctx := context.Background()
	tied := []game.Candidate{
		{ID: 1, Name: "A", OrderKey: key(42)},
		{ID: 2, Name: "B", OrderKey: key(42)},
		{ID: 3, Name: "C", OrderKey: key(42)},
		{ID: 4, Name: "D", OrderKey: key(42)},
	}
	for _, dir := range []game.Direction{game.DirectionHigher, game.DirectionLower} {
		t.Run(string(dir), func(t *testing.T) {
			c, _ := newController(t, catalog.NewStatic(tied))
			r, err := c.Start(ctx, "hilo", StartOptions{})
			if err != nil {
				t.Fatal(err)
			}
			v, err := c.Compare(ctx, "hilo", r.Key, dir)
			if err != nil {
				t.Fatal(err)
			}
			if !v.Correct || v.Streak != 1 || v.Status != game.StatusActive {
				t.Errorf("verdict = %+v", v)
			}
			if v.Revealed == nil || v.Revealed.OrderKey == nil {
				t.Error("judged candidate not revealed")
			}
		})
	}
}

// answer returns the correct direction for the stored hi-lo session.
func answer(t *testing.T, st store.Store, k string) game.Direction {
	s := secret(t, st, "hilo", k)
	if s.Target.Key() >= s.Current.Key() {
		return game.DirectionHigher
	}
	return game.DirectionLower
}

func TestCompareStreakUntilExhausted(t *testing.T) {
	ctx := context.Background()
	c, st := newController(t, catalog.NewStatic(games()[:3]))
	r, err := c.Start(ctx, "hilo", StartOptions{})
	if err != nil {
		t.Fatal(err)
	}

	first := secret(t, st, "hilo", r.Key).Target.ID
	v, err := c.Compare(ctx, "hilo", r.Key, answer(t, st, r.Key))
	if err != nil {
		t.Fatal(err)
	}
	if !v.Correct || v.Status != game.StatusActive || v.Current.ID != first {
		t.Fatalf("first verdict = %+v", v)
	}
	if v.Next.OrderKey != nil {
		t.Error("fresh next exposes its key")
	}

	v, err = c.Compare(ctx, "hilo", r.Key, answer(t, st, r.Key))
	if err != nil {
		t.Fatal(err)
	}
	if !v.Correct || v.Status != game.StatusWon || v.Streak != 2 {
		t.Errorf("exhausted verdict = %+v", v)
	}
}

func TestCompareWrongEndsStreak(t *testing.T) {
	ctx := context.Background()
	c, st := newController(t, catalog.NewStatic(games()))
	r, _ := c.Start(ctx, "hilo", StartOptions{})

	wrong := game.DirectionHigher
	if answer(t, st, r.Key) == game.DirectionHigher {
		wrong = game.DirectionLower
	}
	v, err := c.Compare(ctx, "hilo", r.Key, wrong)
	if err != nil {
		t.Fatal(err)
	}
	if v.Correct || v.Status != game.StatusLost || v.Revealed == nil || v.Revealed.OrderKey == nil {
		t.Errorf("verdict = %+v", v)
	}
	if v.Next != nil {
		t.Error("lost round still offers a next candidate")
	}
	if _, err := c.Compare(ctx, "hilo", r.Key, wrong); !errors.Is(err, game.ErrRoundOver) {
		t.Errorf("compare after loss error = %v", err)
	}
}

// racingCatalog lets another submission land while a Compare is drawing.
type racingCatalog struct {
	catalog.Catalog
	race func()
}

func (r *racingCatalog) Draw(ctx context.Context, n int, f catalog.Filter) ([]game.Candidate, error) {
	if r.race != nil && len(f.Exclude) > 0 {
		race := r.race
		r.race = nil
		race()
	}
	return r.Catalog.Draw(ctx, n, f)
}

func TestCompareConflict(t *testing.T) {
	ctx := context.Background()
	rc := &racingCatalog{Catalog: catalog.NewStatic(games())}
	c, st := newController(t, rc)
	r, _ := c.Start(ctx, "hilo", StartOptions{})
	dir := answer(t, st, r.Key)

	rc.race = func() {
		if _, err := c.Compare(ctx, "hilo", r.Key, dir); err != nil {
			t.Errorf("racing Compare() error = %v", err)
		}
	}
	if _, err := c.Compare(ctx, "hilo", r.Key, dir); !errors.Is(err, game.ErrConflict) {
		t.Errorf("stale Compare() error = %v, want ErrConflict", err)
	}
	if s := secret(t, st, "hilo", r.Key); s.Streak != 1 {
		t.Errorf("streak = %d, want 1", s.Streak)
	}
}

func TestStartCatalogFailureStoresNothing(t *testing.T) {
	c, st := newController(t, catalog.NewStatic(games()[:2]))
	_, err := c.Start(context.Background(), "timeline", StartOptions{Key: "k"})
	if !errors.Is(err, game.ErrCatalogUnavailable) {
		t.Fatalf("Start() error = %v", err)
	}
	if st.Len() != 0 {
		t.Errorf("store has %d entries after failed start", st.Len())
	}
}

func TestStartHonoursKeyAndExclude(t *testing.T) {
	ctx := context.Background()
	c, st := newController(t, catalog.NewStatic(games()))
	r, err := c.Start(ctx, "cover", StartOptions{Key: "conn-1", Exclude: []int64{1, 2, 3, 4}, PlayerID: "p1"})
	if err != nil {
		t.Fatal(err)
	}
	if r.Key != "conn-1" {
		t.Errorf("Key = %q", r.Key)
	}
	s := secret(t, st, "cover", "conn-1")
	if s.Target.ID != 5 || s.PlayerID != "p1" {
		t.Errorf("session = %+v", s)
	}
}

func TestDailyIsStable(t *testing.T) {
	ctx := context.Background()
	c, st := newController(t, catalog.NewStatic(games()))
	a, _ := c.Start(ctx, "daily", StartOptions{})
	b, _ := c.Start(ctx, "daily", StartOptions{})
	if secret(t, st, "daily", a.Key).Target.ID != secret(t, st, "daily", b.Key).Target.ID {
		t.Error("two daily rounds on the same day have different secrets")
	}
}

func TestPeekAndEnd(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t, catalog.NewStatic(games()))
	r, _ := c.Start(ctx, "timeline", StartOptions{})

	p, err := c.Peek(ctx, "timeline", r.Key)
	if err != nil {
		t.Fatal(err)
	}
	if p.Key != r.Key || len(p.Candidates) != len(r.Candidates) {
		t.Errorf("Peek() = %+v", p)
	}

	for i := 0; i < 2; i++ {
		if err := c.End(ctx, "timeline", r.Key); err != nil {
			t.Fatalf("End() call %d error = %v", i+1, err)
		}
	}
	if _, err := c.Peek(ctx, "timeline", r.Key); !errors.Is(err, game.ErrSessionNotFound) {
		t.Errorf("Peek() after End error = %v", err)
	}
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRedisGuessLifecycle(t *testing.T) {
	ctx := context.Background()
	c, st := newRedisController(t, catalog.NewStatic(games()))

	r, err := c.Start(ctx, "cover", StartOptions{PlayerID: "p1"})
	if err != nil {
		t.Fatal(err)
	}
	target := secret(t, st, "cover", r.Key).Target.ID

	want := 3
	for id := int64(1); id <= 5 && want > 0; id++ {
		if id == target {
			continue
		}
		v, err := c.Guess(ctx, "cover", r.Key, id)
		if err != nil {
			t.Fatal(err)
		}
		want--
		if v.AttemptsRemaining != want {
			t.Fatalf("after guess %d remaining = %d, want %d", id, v.AttemptsRemaining, want)
		}
		if _, err := c.Guess(ctx, "cover", r.Key, id); want > 0 && !errors.Is(err, game.ErrDuplicateGuess) {
			t.Fatalf("repeat of %d error = %v", id, err)
		}
	}

	s := secret(t, st, "cover", r.Key)
	if s.Status != game.StatusLost || s.AttemptsRemaining != 0 || s.Attempts != 3 {
		t.Errorf("session = %+v", s)
	}
	if _, err := c.Guess(ctx, "cover", r.Key, target); !errors.Is(err, game.ErrRoundOver) {
		t.Errorf("guess after loss error = %v", err)
	}

	out, err := c.Outcome(ctx, "cover", r.Key)
	if err != nil || out.Status != game.StatusLost || out.Attempts != 3 || out.PlayerID != "p1" {
		t.Errorf("Outcome() = %+v, %v", out, err)
	}
}

func TestRedisCompareConflict(t *testing.T) {
	ctx := context.Background()
	rc := &racingCatalog{Catalog: catalog.NewStatic(games())}
	c, st := newRedisController(t, rc)
	r, err := c.Start(ctx, "hilo", StartOptions{})
	if err != nil {
		t.Fatal(err)
	}
	dir := answer(t, st, r.Key)

	rc.race = func() {
		if _, err := c.Compare(ctx, "hilo", r.Key, dir); err != nil {
			t.Errorf("racing Compare() error = %v", err)
		}
	}
	if _, err := c.Compare(ctx, "hilo", r.Key, dir); !errors.Is(err, game.ErrConflict) {
		t.Errorf("stale Compare() error = %v, want ErrConflict", err)
	}
	s := secret(t, st, "hilo", r.Key)
	if s.Streak != 1 || s.Version != 1 || len(s.Seen) != 3 {
		t.Errorf("session after race = streak %d version %d seen %v", s.Streak, s.Version, s.Seen)
	}
}
