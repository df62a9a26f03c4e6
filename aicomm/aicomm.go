// Package aicomm is the per-game front end games use to talk to a
// shared comm.Comm: it owns this producer's Meta, its current
// sequence position, its observation history, and a private RNG
// seeded deterministically from its query id, and wraps the
// prepare/send/restart cycle a game's main loop drives every step.
package aicomm

import (
	"math/rand"

	"github.com/elfsim/core/comm"
	"github.com/elfsim/core/hist"
	"github.com/elfsim/core/key"
)

// Comm is one game's (or sub-agent's) view onto the shared
// rendezvous.
type Comm[S comm.State] struct {
	shared *comm.Comm[S]

	meta key.Meta
	seq  key.Seq
	data *hist.Hist[S]
	rng  *rand.Rand
}

// New creates the front end for game id, backed by shared, with a
// history of capacity histLen. factory constructs one fresh S per
// history slot, same as hist.New.
func New[S comm.State](id int, shared *comm.Comm[S], histLen int, factory func() S) *Comm[S] {
	meta := key.NewMeta(id)
	return &Comm[S]{
		shared: shared,
		meta:   meta,
		data:   hist.New[S](histLen, factory),
		rng:    rand.New(rand.NewSource(int64(meta.QueryID))),
	}
}

// Meta returns this producer's identity.
func (c *Comm[S]) Meta() key.Meta { return c.meta }

// Seq returns this producer's current sequence position.
func (c *Comm[S]) Seq() key.Seq { return c.seq }

// Rand returns this producer's private RNG, safe to use without
// further synchronization since only this game's goroutine touches
// it.
func (c *Comm[S]) Rand() *rand.Rand { return c.rng }

// Prepare moves the history forward for a new step and returns the
// freshly-prepared slot for the caller to populate before calling
// SendDataWaitReply.
func (c *Comm[S]) Prepare() *S {
	room := c.data.Prepare(c.seq)
	c.seq.Inc()
	return room
}

// SendDataWaitReply offers this step's prepared state to the shared
// Comm and blocks until every group that accepted it has both
// consumed and replied to it.
func (c *Comm[S]) SendDataWaitReply() error {
	return c.shared.SendDataWaitReply(c.meta.QueryID, &comm.Info[S]{
		Meta: c.meta,
		Data: c.data,
	})
}

// Restart begins a new episode: resets the sequence counter, bumps
// the episode counter, and marks the next Prepare as the episode's
// first step.
func (c *Comm[S]) Restart() {
	c.seq.NewEpisode()
}

// Spawn derives a sub-agent sharing this game's id but carrying its
// own thread id, history, and RNG, mirroring the parent/child Meta
// tree a game's spawned sub-agents form. The child starts from the
// parent's current Seq.
func (c *Comm[S]) Spawn(childThreadID, histLen int, factory func() S) *Comm[S] {
	child := &Comm[S]{
		shared: c.shared,
		meta:   c.meta.Child(childThreadID),
		seq:    c.seq,
		data:   hist.New[S](histLen, factory),
	}
	child.rng = rand.New(rand.NewSource(int64(child.meta.QueryID)))
	return child
}
