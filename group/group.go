// Package group implements a single CollectorGroup: a pool of keys
// feeding one BatchCollector, a MainLoop that releases whatever batch
// accumulates to the daemon via a SyncSignal, and the wakeup
// handshake the daemon uses to release the batch back once it is
// done processing.
//
// Gating (deciding whether a given key's data is even eligible to
// join this group's batch this step) is intentionally not done here;
// it lives in the comm package, which owns the per-key,
// per-exclusive-group history bookkeeping and only calls SendData
// once that check passes.
package group

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elfsim/core/collector"
	"github.com/elfsim/core/syncsignal"
)

// CollectorGroup pools a fixed set of keys into batches and hands
// them to a single daemon-side consumer, one batch at a time.
type CollectorGroup[K comparable, V any] struct {
	gid     int
	bc      *collector.BatchCollector[K, V]
	signal  *syncsignal.SyncSignal
	wakeup  chan int
	verbose bool
	timeout time.Duration

	numEnqueue int64 // atomic

	mu        sync.Mutex
	lastBatch collector.Batch[K, V]
}

// New constructs a CollectorGroup identified by gid, accepting only
// the given keys. batchSize is the number of entries MainLoop will
// wait to accumulate before releasing a batch: there is no time-based
// early release, and the only batch handed off short of batchSize is
// the partial one released when the group is stopped. timeout is this
// group's declared default for the
// daemon's wait_batch call (see Timeout), not a batch-accumulation
// deadline.
func New[K comparable, V any](
	gid int, keys []K, batchSize int, timeout time.Duration,
	signal *syncsignal.SyncSignal, verbose bool,
) *CollectorGroup[K, V] {
	return &CollectorGroup[K, V]{
		gid:     gid,
		bc:      collector.NewBatch[K, V](keys, batchSize),
		signal:  signal,
		wakeup:  make(chan int),
		verbose: verbose,
		timeout: timeout,
	}
}

// Timeout returns the default timeout this group was registered with,
// used by Comm.WaitGroupBatchData when the caller does not supply one
// of its own.
func (g *CollectorGroup[K, V]) Timeout() time.Duration {
	return g.timeout
}

// GID returns this group's identifier.
func (g *CollectorGroup[K, V]) GID() int {
	return g.gid
}

// SetBatchSize changes the release threshold. It also applies to the
// batch currently accumulating, which is released when its next entry
// arrives if it then holds at least n entries. Called with 1
// while winding down, so every remaining game is released as soon as
// its data arrives rather than waiting for a batch that will never
// fill.
func (g *CollectorGroup[K, V]) SetBatchSize(n int) {
	g.bc.SetThreshold(n)
}

// SendData hands v off for key, to be included in whatever batch is
// currently accumulating. The caller (comm, after its own gating
// check passes) must eventually call WaitReply for the same key.
func (g *CollectorGroup[K, V]) SendData(k K, v V) error {
	atomic.AddInt64(&g.numEnqueue, 1)
	return g.bc.SendData(k, v)
}

// WaitReply blocks until MainLoop has processed a batch containing
// key and signaled it back.
func (g *CollectorGroup[K, V]) WaitReply(k K) error {
	return g.bc.WaitReply(k)
}

// BatchKeys returns the keys of the most recently released batch.
func (g *CollectorGroup[K, V]) BatchKeys() []K {
	g.mu.Lock()
	defer g.mu.Unlock()
	keys := make([]K, len(g.lastBatch))
	for i, e := range g.lastBatch {
		keys[i] = e.Key
	}
	return keys
}

// BatchValues returns the values of the most recently released batch,
// in the same order as BatchKeys.
func (g *CollectorGroup[K, V]) BatchValues() []V {
	g.mu.Lock()
	defer g.mu.Unlock()
	values := make([]V, len(g.lastBatch))
	for i, e := range g.lastBatch {
		values[i] = e.Value
	}
	return values
}

// NumEnqueue returns the total number of SendData calls accepted so
// far.
func (g *CollectorGroup[K, V]) NumEnqueue() int64 {
	return atomic.LoadInt64(&g.numEnqueue)
}

// MainLoop waits for batches and pushes a ready notice to the
// SyncSignal for each one, then blocks until SignalBatchUsed releases
// it, then wakes every game whose key was in the batch. It returns
// once the BatchCollector has shut down, after raising the shared
// Done signal.
func (g *CollectorGroup[K, V]) MainLoop() {
	for {
		batch, ok := g.bc.WaitBatch()
		if !ok {
			break
		}

		if g.verbose {
			log.Printf("group[%d]: batch ready, size=%d", g.gid, len(batch))
		}

		g.mu.Lock()
		g.lastBatch = batch
		g.mu.Unlock()

		g.signal.Push(g.gid, len(batch))

		futureTimeout := <-g.wakeup

		if g.verbose {
			log.Printf("group[%d]: batch used, resuming %d games", g.gid, len(batch))
		}

		for _, e := range batch {
			if err := g.bc.SignalReply(e.Key); err != nil {
				// a key that was valid when the batch was built can
				// never stop being valid; this would only fire on a
				// programming error.
				panic(fmt.Sprintf("group %d: %v", g.gid, err))
			}
		}

		_ = futureTimeout
	}

	g.signal.Done.Notify()
}

// SignalBatchUsed releases MainLoop from waiting after the daemon has
// consumed the most recent batch. futureTimeout is carried through
// unmodified, reserved for a daemon that wants to tell the group how
// long to wait before its next forced flush.
func (g *CollectorGroup[K, V]) SignalBatchUsed(futureTimeout int) {
	g.wakeup <- futureTimeout
}

// NotifyAwake unblocks MainLoop if it is currently parked waiting for
// SignalBatchUsed, letting it loop back around to WaitBatch. It is a
// best-effort nudge, not a guaranteed wakeup: if MainLoop is not
// parked there at the moment of the call, nothing happens. Callers
// shutting a Comm down rely on also draining any in-flight batch (so
// SignalBatchUsed is called normally) and on Stop's own shutdown
// sentinel to cover the remaining cases.
func (g *CollectorGroup[K, V]) NotifyAwake() {
	select {
	case g.wakeup <- 0:
	default:
	}
}

// Stop shuts the group's BatchCollector down, unblocking MainLoop, and
// then signals every key's reply slot so that no game is left blocked
// in WaitReply.
func (g *CollectorGroup[K, V]) Stop() {
	g.bc.Stop()
	g.bc.SignalReplyAll()
}

// Summary returns a one-line diagnostic string for this group.
func (g *CollectorGroup[K, V]) Summary() string {
	return fmt.Sprintf("group[%d] enqueued=%d last_batch=%d", g.gid, g.NumEnqueue(), len(g.BatchKeys()))
}
