package collector

import (
	"sync"
	"sync/atomic"

	"github.com/elfsim/core/chops"
)

// Entry is one ready (key, value) pair inside a Batch.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Batch is a group of ready entries released together once Threshold
// entries have accumulated, matching the collector group's main loop
// contract: pop until the accumulator reaches n, unconditionally.
type Batch[K comparable, V any] []Entry[K, V]

// BatchCollector wraps a Collector and groups its ready keys into
// batches, released once Threshold entries have accumulated. The
// threshold must be adjustable on demand (SetThreshold) while the loop
// runs - every game thread needs to be released one at a time while
// the collector group is winding down - which rules out a
// fixed-threshold generic batching helper.
type BatchCollector[K comparable, V any] struct {
	*Collector[K, V]

	threshold int32 // atomic
	out       chan Batch[K, V]
	items     chan kv[K, V]
	wg        sync.WaitGroup
}

type kv[K comparable, V any] struct {
	key    K
	value  V
	status chops.Status
}

// NewBatch constructs a BatchCollector over keys and starts feeding
// batches of threshold entries. There is no time-based early release:
// while the collector runs, a batch is released only once it holds at
// least the current threshold. When Stop's shutdown sentinel arrives,
// a partially filled batch is released as it is.
func NewBatch[K comparable, V any](keys []K, threshold int) *BatchCollector[K, V] {
	bc := &BatchCollector[K, V]{
		Collector: New[K, V](keys),
		threshold: int32(threshold),
		out:       make(chan Batch[K, V]),
		items:     make(chan kv[K, V]),
	}

	bc.wg.Add(2)
	go bc.feed()
	go bc.run()

	return bc
}

// feed turns the blocking WaitOneKV call into a channel read, so run
// can loop over it without holding the Collector's internal lock.
func (bc *BatchCollector[K, V]) feed() {
	defer bc.wg.Done()
	for {
		k, v, status := bc.Collector.WaitOneKV()
		bc.items <- kv[K, V]{key: k, value: v, status: status}
		if status != chops.Ok {
			return
		}
	}
}

func (bc *BatchCollector[K, V]) run() {
	defer bc.wg.Done()
	defer close(bc.out)

	for {
		first := <-bc.items
		if first.status != chops.Ok {
			return
		}

		batch := Batch[K, V]{{Key: first.key, Value: first.value}}
		shuttingDown := false

		for int32(len(batch)) < bc.Threshold() {
			next := <-bc.items
			if next.status != chops.Ok {
				shuttingDown = true
				break
			}
			batch = append(batch, Entry[K, V]{Key: next.key, Value: next.value})
		}

		if len(batch) > 0 {
			bc.out <- batch
		}
		if shuttingDown {
			return
		}
	}
}

// Threshold returns the current batch-release size.
func (bc *BatchCollector[K, V]) Threshold() int32 {
	return atomic.LoadInt32(&bc.threshold)
}

// SetThreshold changes the batch-release size. The accumulating loop
// rereads it after every entry, so it also applies to a batch already
// under way: that batch is released when its next entry arrives if it
// then holds at least n entries. A CollectorGroup winding
// down calls this with 1 so every remaining game is released as soon
// as it arrives, instead of waiting for a full batch that may never
// complete.
func (bc *BatchCollector[K, V]) SetThreshold(n int) {
	atomic.StoreInt32(&bc.threshold, int32(n))
}

// WaitBatch blocks until a batch is ready and returns it. ok is false
// once the collector has shut down and no further batches will arrive.
func (bc *BatchCollector[K, V]) WaitBatch() (b Batch[K, V], ok bool) {
	b, ok = <-bc.out
	return b, ok
}

// Stop unblocks the feeding goroutine with the shutdown sentinel,
// waits for it to drain and close, and finally shuts down the
// underlying Collector's queue. By the time the feeding goroutine
// observes the sentinel it has already drained every entry ahead of
// it, so the queue is empty and Close cannot block.
func (bc *BatchCollector[K, V]) Stop() {
	bc.Collector.NotifyShutdown()
	bc.wg.Wait()
	bc.Collector.Close()
}
