// Package hist layers the game-visible history API over a ring.Queue:
// Prepare moves history forward for a new step, Newest/Oldest read
// back recently retained states.
package hist

import (
	"github.com/elfsim/core/key"
	"github.com/elfsim/core/ring"
)

// State is the contract a history element must satisfy: given the
// producer's current sequence position, it prepares itself (clears
// stale fields, stamps the sequence) to become the newest entry.
type State interface {
	Prepare(seq key.Seq)
}

// Hist is a per-game ring buffer of State, with capacity fixed at
// construction (the group's hist_len, or the Context's default T).
type Hist[S State] struct {
	q *ring.Queue[S]
}

// New creates a Hist with room for capacity states. factory
// constructs one fresh S per backing slot; it is called capacity
// times up front so Prepare never hands back an uninitialized S.
func New[S State](capacity int, factory func() S) *Hist[S] {
	q := ring.New[S](capacity)
	q.Fill(factory)
	return &Hist[S]{q: q}
}

// Prepare advances the history by one step: it claims the next room
// (overwriting the oldest entry once full) and calls S.Prepare on it,
// returning a pointer the caller should populate for this step.
func (h *Hist[S]) Prepare(seq key.Seq) *S {
	room := h.q.Push()
	(*room).Prepare(seq)
	return room
}

// Size reports how many states are currently retained.
func (h *Hist[S]) Size() int { return h.q.Size() }

// MaxLen reports the configured history depth.
func (h *Hist[S]) MaxLen() int { return h.q.MaxLen() }

// Newest returns the i-th most recently prepared state: i == 0 is the
// current step.
func (h *Hist[S]) Newest(i int) *S { return h.q.FromPush(i) }

// Oldest returns the i-th oldest retained state: i == 0 is the
// earliest entry still in the window.
func (h *Hist[S]) Oldest(i int) *S { return h.q.FromPush(h.q.Size() - i - 1) }
