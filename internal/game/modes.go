// internal/game/modes.go
//
// Mode configuration and registry.
// One parameterized engine serves every mode; a Mode only says how many
// candidates to draw, how many attempts to allow and which strategy scores it.

package game

import (
	"fmt"
	"sort"
)

// Mode is the per-mode configuration.
type Mode struct {
	ID             string   `json:"id" mapstructure:"id"`
	Strategy       Strategy `json:"strategy" mapstructure:"strategy"`
	CandidateCount int      `json:"candidateCount" mapstructure:"candidate_count"`
	AttemptBudget  int      `json:"attemptBudget" mapstructure:"attempt_budget"`
	Daily          bool     `json:"daily,omitempty" mapstructure:"daily"`
}

// Validate checks that the mode can actually be played.
func (m Mode) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("mode: empty id")
	}
	if m.AttemptBudget < 1 {
		return fmt.Errorf("mode %s: attempt budget must be >= 1", m.ID)
	}
	switch m.Strategy {
	case StrategyScalar:
		if m.CandidateCount != 1 {
			return fmt.Errorf("mode %s: scalar modes draw exactly 1 candidate", m.ID)
		}
	case StrategyComparison:
		if m.CandidateCount != 2 {
			return fmt.Errorf("mode %s: comparison modes draw exactly 2 candidates", m.ID)
		}
		if m.Daily {
			return fmt.Errorf("mode %s: daily is only supported for scalar modes", m.ID)
		}
	case StrategyOrdering:
		if m.CandidateCount < 2 {
			return fmt.Errorf("mode %s: ordering modes need at least 2 candidates", m.ID)
		}
		if m.Daily {
			return fmt.Errorf("mode %s: daily is only supported for scalar modes", m.ID)
		}
	default:
		return fmt.Errorf("mode %s: unknown strategy %q", m.ID, m.Strategy)
	}
	return nil
}

// DefaultModes is the built-in registry.
func DefaultModes() []Mode {
	return []Mode{
		{ID: "cover", Strategy: StrategyScalar, CandidateCount: 1, AttemptBudget: 5},
		{ID: "cover-daily", Strategy: StrategyScalar, CandidateCount: 1, AttemptBudget: 5, Daily: true},
		{ID: "hilo", Strategy: StrategyComparison, CandidateCount: 2, AttemptBudget: 1},
		{ID: "timeline", Strategy: StrategyOrdering, CandidateCount: 5, AttemptBudget: 3},
		{ID: "triviary", Strategy: StrategyOrdering, CandidateCount: 4, AttemptBudget: 3},
	}
}

// Registry looks modes up by id.
type Registry struct {
	modes map[string]Mode
}

// NewRegistry validates and indexes modes. Duplicate ids are rejected.
func NewRegistry(modes []Mode) (*Registry, error) {
	r := &Registry{modes: make(map[string]Mode, len(modes))}
	for _, m := range modes {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.modes[m.ID]; dup {
			return nil, fmt.Errorf("mode %s: declared twice", m.ID)
		}
		r.modes[m.ID] = m
	}
	if len(r.modes) == 0 {
		return nil, fmt.Errorf("no modes configured")
	}
	return r, nil
}

// Get returns the mode or ErrUnknownMode.
func (r *Registry) Get(id string) (Mode, error) {
	m, ok := r.modes[id]
	if !ok {
		return Mode{}, fmt.Errorf("%w: %s", ErrUnknownMode, id)
	}
	return m, nil
}

// List returns all modes sorted by id.
func (r *Registry) List() []Mode {
	out := make([]Mode, 0, len(r.modes))
	for _, m := range r.modes {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
