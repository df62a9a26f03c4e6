// Package gamectx is the worker pool every game runs under: it starts
// one goroutine per game via laminar.Group, hands each one a Signal to
// poll for shutdown, and drives the two-phase stop sequence (stop
// accepting new batches, let games wind down, then stop the
// collectors) the same way the original's thread pool did.
package gamectx

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/elfsim/core/comm"
	"github.com/elfsim/core/laminar"
	"github.com/elfsim/core/must"
	"github.com/elfsim/core/parallel"
	"github.com/elfsim/core/syncsignal"
)

// Signal is what a running game polls to learn whether it should wind
// down. Done fires on an immediate stop; PrepareStop is set slightly
// earlier, as a hint to finish the current episode rather than start
// a new one.
type Signal struct {
	ctx         context.Context
	prepareStop *int32
}

// Done returns a channel that closes once Stop has been called.
func (s Signal) Done() <-chan struct{} {
	return s.ctx.Done()
}

// IsDone reports whether Done's channel has already closed.
func (s Signal) IsDone() bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

// PrepareStop reports whether Stop has begun winding the pool down.
func (s Signal) PrepareStop() bool {
	return atomic.LoadInt32(s.prepareStop) != 0
}

// GameFunc is one game's entry point. idx is this game's index within
// the pool, in [0, numGames). It should loop, calling
// shared.SendDataWaitReply each step, until signal reports Done.
type GameFunc[S comm.State] func(ctx context.Context, idx int, signal Signal, shared *comm.Comm[S]) error

// Context owns a Comm and the pool of game goroutines feeding it. It
// mirrors the relationship between a single daemon process and the
// many game instances it drives.
type Context[S comm.State] struct {
	comm     *comm.Comm[S]
	numGames int

	group       *laminar.Group
	cancel      context.CancelFunc
	prepareStop int32
	started     bool
}

// New creates a Context that will run numGames games against shared.
// shared must not have had CollectorsReady called yet; Start calls it.
func New[S comm.State](shared *comm.Comm[S], numGames int) *Context[S] {
	return &Context[S]{
		comm:     shared,
		numGames: numGames,
	}
}

// Comm returns the underlying rendezvous, for callers that want to
// call WaitBatchData/Steps directly instead of through Wait/Steps.
func (c *Context[S]) Comm() *comm.Comm[S] {
	return c.comm
}

// NumGames reports the size of the pool.
func (c *Context[S]) NumGames() int {
	return c.numGames
}

// Start finalizes the Comm's collectors and launches one goroutine per
// game, each running fn. Start must be called at most once.
//
// Every game task is independent (no After edges are ever declared
// between them), so the dependency graph laminar.Group builds is
// always a set of singletons: Group.Start can only fail here on a
// cyclic dependency, which would mean this function itself has a bug,
// not that the caller gave it bad input. must.Must turns that
// unreachable error into a panic instead of forcing every caller to
// handle an error that can never happen.
func (c *Context[S]) Start(ctx context.Context, fn GameFunc[S]) {
	if c.started {
		panic("gamectx: Context already started")
	}

	c.comm.CollectorsReady()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.group = laminar.NewGroup(ctx, laminar.NoLimit)

	signal := Signal{ctx: ctx, prepareStop: &c.prepareStop}
	for i := 0; i < c.numGames; i++ {
		idx := i
		c.group.NewTask(fmt.Sprintf("game-%d", idx), func(taskCtx context.Context) error {
			return fn(taskCtx, idx, signal, c.comm)
		})
	}

	must.Must(c.group.Start())
	c.started = true
}

// Wait blocks (up to timeout, if positive) for the next ready batch
// from any group.
func (c *Context[S]) Wait(timeout time.Duration) syncsignal.Infos {
	return c.comm.WaitBatchData(timeout)
}

// WaitGroup is Wait restricted to one group's private queue.
func (c *Context[S]) WaitGroup(gid int, timeout time.Duration) syncsignal.Infos {
	return c.comm.WaitGroupBatchData(gid, timeout)
}

// Steps releases the batch named by infos back to its collector group.
func (c *Context[S]) Steps(infos syncsignal.Infos) bool {
	return c.comm.Steps(infos, 0)
}

// Summary returns a diagnostic dump of the underlying Comm.
func (c *Context[S]) Summary() string {
	return c.comm.Summary()
}

// ProcessRepliesBounded runs f over every Info in the batch named by
// infos, with at most inflight calls running at once, and returns once
// all of them have. It is meant for daemon-side post-processing (for
// example marshalling a batch for a learner's wire format) that wants
// to fan out within a single Steps call without spawning one goroutine
// per batch entry.
func (c *Context[S]) ProcessRepliesBounded(
	ctx context.Context, infos syncsignal.Infos, inflight int, f func(i int, info *comm.Info[S]) error,
) error {
	values := c.comm.BatchValues(infos)
	_, err := parallel.MapBoundedSema(ctx, values, func(i int, v *comm.Info[S]) error {
		return f(i, v)
	}, inflight)
	return err
}

// Stop winds the pool down in two phases, mirroring the original's
// destructor sequence: first every group's batch size drops to 1 so
// nothing waits to fill, then every game is told to stop and the call
// blocks until all of them exit, and only then are the collectors
// themselves stopped.
//
// While games are winding down, a background drain loop keeps calling
// Steps on whatever batches arrive, so a group is never left parked
// waiting for a SignalBatchUsed that a now-exited game will never
// trigger; see the matching note on comm.Comm.Stop.
func (c *Context[S]) Stop() {
	if !c.started {
		return
	}

	drainDone := make(chan struct{})
	go func() {
		for {
			select {
			case <-drainDone:
				return
			default:
			}
			c.comm.Steps(c.comm.WaitBatchData(2*time.Millisecond), 0)
		}
	}()

	atomic.StoreInt32(&c.prepareStop, 1)
	c.comm.PrepareStop()

	c.cancel()
	_ = c.group.Wait()

	c.comm.Stop()

	close(drainDone)
	c.started = false
}
