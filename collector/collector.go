// Package collector maps a fixed set of keys to per-key reply slots,
// giving producers a send_data/wait_reply rendezvous and giving a
// consumer a FIFO of ready keys to drain. BatchCollector layers batch
// accumulation on top for the collector-group use case.
package collector

import (
	"fmt"
	"time"

	"github.com/elfsim/core/chops"
	"github.com/elfsim/core/queue"
)

// ErrKeyNotFound is returned by any operation given a key the
// Collector was not constructed with.
var ErrKeyNotFound = fmt.Errorf("collector: key not found")

// Collector maps keys from a fixed universe to single-outstanding
// value slots. A producer calls SendData (or the atomic
// SendDataWaitReply) to hand off a value and, later, WaitReply to
// block until a consumer has called SignalReply for that key. A
// consumer drains ready keys with WaitOne/WaitOneTimed.
type Collector[K comparable, V any] struct {
	index map[K]int
	keys  []K
	slots []*slotState[V]
	q     *queue.Blocking[int]
}

type slotState[V any] struct {
	notif chan struct{}
	value V
}

// New constructs a Collector whose only valid keys are those in keys.
func New[K comparable, V any](keys []K) *Collector[K, V] {
	c := &Collector[K, V]{
		index: make(map[K]int, len(keys)),
		keys:  append([]K(nil), keys...),
		slots: make([]*slotState[V], len(keys)),
		q:     queue.New[int](),
	}
	for i, k := range keys {
		c.index[k] = i
		c.slots[i] = &slotState[V]{notif: make(chan struct{}, 1)}
	}
	return c
}

func (c *Collector[K, V]) idx(k K) (int, error) {
	i, ok := c.index[k]
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrKeyNotFound, k)
	}
	return i, nil
}

// SendData stores v for key and enqueues it for a consumer. It never
// blocks.
func (c *Collector[K, V]) SendData(k K, v V) error {
	i, err := c.idx(k)
	if err != nil {
		return err
	}
	c.slots[i].value = v
	c.q.Enqueue(i)
	return nil
}

// SignalReply marks key's reply as delivered and wakes any waiter
// blocked in WaitReply for that key.
func (c *Collector[K, V]) SignalReply(k K) error {
	i, err := c.idx(k)
	if err != nil {
		return err
	}
	c.signalIndex(i)
	return nil
}

func (c *Collector[K, V]) signalIndex(i int) {
	s := c.slots[i]
	select {
	case s.notif <- struct{}{}:
	default:
		// already signaled and not yet consumed
	}
}

// WaitReply blocks until key's reply has been signaled, then clears
// the signal so the slot can be reused for the next step.
func (c *Collector[K, V]) WaitReply(k K) error {
	i, err := c.idx(k)
	if err != nil {
		return err
	}
	<-c.slots[i].notif
	return nil
}

// SendDataWaitReply is the atomic combination of SendData followed by
// WaitReply: it stores v, enqueues it, and only then waits, so no
// reply can be signaled and missed between the two steps.
func (c *Collector[K, V]) SendDataWaitReply(k K, v V) error {
	i, err := c.idx(k)
	if err != nil {
		return err
	}
	c.slots[i].value = v
	c.q.Enqueue(i)
	<-c.slots[i].notif
	return nil
}

// WaitOne dequeues the next ready key's value. status is chops.Ok on
// success or chops.Closed if NotifyShutdown was used to wake the
// queue (the sentinel used to break a blocked consumer during
// shutdown).
func (c *Collector[K, V]) WaitOne() (v V, status chops.Status) {
	i, ok := c.dequeue()
	if !ok {
		return v, chops.Closed
	}
	return c.slots[i].value, chops.Ok
}

// WaitOneTimed is WaitOne bounded by d. status is chops.Blocked if
// the deadline passed with nothing ready.
func (c *Collector[K, V]) WaitOneTimed(d time.Duration) (v V, status chops.Status) {
	e, ok := c.q.WaitDequeueTimed(d)
	if !ok {
		return v, chops.Blocked
	}
	if e < 0 {
		return v, chops.Closed
	}
	return c.slots[e].value, chops.Ok
}

// WaitOneKV is WaitOne but also returns the key the ready value was
// sent under, which BatchCollector needs to group replies by key.
func (c *Collector[K, V]) WaitOneKV() (k K, v V, status chops.Status) {
	i, ok := c.dequeue()
	if !ok {
		return k, v, chops.Closed
	}
	return c.keys[i], c.slots[i].value, chops.Ok
}

func (c *Collector[K, V]) dequeue() (int, bool) {
	i := c.q.WaitDequeue()
	if i < 0 {
		return 0, false
	}
	return i, true
}

// Close shuts down the internal queue's pump goroutine. It must be
// called exactly once, after every producer and consumer of this
// Collector has stopped calling it.
func (c *Collector[K, V]) Close() {
	c.q.Close()
}

// NotifyShutdown wakes one blocked WaitOne/WaitOneTimed caller with a
// Closed status, the sentinel "nullptr" trick from the source,
// implemented here as a reserved negative index instead of a nil
// value union.
func (c *Collector[K, V]) NotifyShutdown() {
	c.q.Enqueue(-1)
}

// SignalReplyAll signals every slot's reply, whether or not it has an
// outstanding waiter. It is used exclusively during shutdown to
// unblock every SendDataWaitReply/WaitReply caller at once, including
// ones whose SendData raced with the shutdown. Consumers blocked in
// WaitOne/WaitOneTimed are woken separately, with NotifyShutdown.
func (c *Collector[K, V]) SignalReplyAll() {
	for i := range c.slots {
		c.signalIndex(i)
	}
}
