// Package queue provides the single blocking multi-producer/multi-
// consumer FIFO that the rest of the core suspends on: the daemon's
// wait_batch_data, a CollectorGroup's wait_batch, and the rendezvous
// queue inside Collector. Enqueue never blocks or fails; the queue
// grows to hold whatever has not yet been dequeued.
//
// The implementation is the "infinite buffered channel" pattern: a
// pump goroutine shuttles items between an unbounded internal slice
// and an unbuffered output channel.
package queue

import "time"

// Blocking is an unbounded FIFO queue of T.
type Blocking[T any] struct {
	in  chan T
	out chan T
}

// New creates a ready-to-use Blocking queue and starts its pump
// goroutine.
func New[T any]() *Blocking[T] {
	q := &Blocking[T]{
		in:  make(chan T),
		out: make(chan T),
	}
	go q.pump()
	return q
}

func (q *Blocking[T]) pump() {
	var buf []T
	for {
		if len(buf) == 0 {
			v, ok := <-q.in
			if !ok {
				close(q.out)
				return
			}
			buf = append(buf, v)
			continue
		}

		select {
		case v, ok := <-q.in:
			if !ok {
				for _, item := range buf {
					q.out <- item
				}
				close(q.out)
				return
			}
			buf = append(buf, v)
		case q.out <- buf[0]:
			buf = buf[1:]
		}
	}
}

// Enqueue adds t to the tail of the queue. It does not block on
// consumers; it only blocks momentarily on the pump goroutine
// accepting the value, which is always ready to receive.
func (q *Blocking[T]) Enqueue(t T) {
	q.in <- t
}

// WaitDequeue blocks until an item is available and returns it.
func (q *Blocking[T]) WaitDequeue() T {
	return <-q.out
}

// WaitDequeueTimed blocks for at most d waiting for an item. ok is
// false if the deadline passed with nothing enqueued.
func (q *Blocking[T]) WaitDequeueTimed(d time.Duration) (t T, ok bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case v, ok := <-q.out:
		if !ok {
			return t, false
		}
		return v, true
	case <-timer.C:
		return t, false
	}
}

// Close shuts down the pump goroutine once all previously enqueued
// items have been drained out. Enqueue must not be called after
// Close.
func (q *Blocking[T]) Close() {
	close(q.in)
}
