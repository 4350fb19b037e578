// internal/game/views.go
//
// Client-facing projections of candidates. These are the only candidate
// shapes that transports serialize while a round is active.

package game

// View is a masked candidate. Zero fields are omitted from JSON.
type View struct {
	ID       int64  `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	OrderKey *int64 `json:"orderKey,omitempty"`
	Image    string `json:"image,omitempty"`
}

// PuzzleView exposes only the image used to present a scalar puzzle.
func PuzzleView(c Candidate) View { return View{Image: c.Image} }

// HiddenKeyView exposes identity but strips the ordering key.
func HiddenKeyView(c Candidate) View { return View{ID: c.ID, Name: c.Name, Image: c.Image} }

// RevealView exposes everything; only for finished rounds or already
// revealed comparison candidates.
func RevealView(c Candidate) View {
	return View{ID: c.ID, Name: c.Name, OrderKey: c.OrderKey, Image: c.Image}
}

// RevealAll maps RevealView over cs.
func RevealAll(cs []Candidate) []View {
	out := make([]View, len(cs))
	for i, c := range cs {
		out[i] = RevealView(c)
	}
	return out
}
