package queue

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestEnqueueDequeueOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := New[int]()
	defer q.Close()

	for i := 0; i < 5; i++ {
		q.Enqueue(i)
	}

	for i := 0; i < 5; i++ {
		if got := q.WaitDequeue(); got != i {
			t.Errorf("WaitDequeue() = %d, want %d", got, i)
		}
	}
}

func TestWaitDequeueBlocksUntilEnqueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := New[string]()
	defer q.Close()

	done := make(chan string)
	go func() {
		done <- q.WaitDequeue()
	}()

	select {
	case <-done:
		t.Fatal("WaitDequeue returned before any Enqueue")
	case <-time.After(20 * time.Millisecond):
	}

	q.Enqueue("hello")

	select {
	case got := <-done:
		if got != "hello" {
			t.Errorf("got %q, want %q", got, "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitDequeue did not return after Enqueue")
	}
}

func TestWaitDequeueTimedTimesOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := New[int]()
	defer q.Close()

	start := time.Now()
	_, ok := q.WaitDequeueTimed(10 * time.Millisecond)
	if ok {
		t.Fatal("expected timeout, got a value")
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}

func TestWaitDequeueTimedReturnsEnqueuedValue(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := New[int]()
	defer q.Close()

	q.Enqueue(42)
	v, ok := q.WaitDequeueTimed(time.Second)
	if !ok || v != 42 {
		t.Errorf("got (%d, %v), want (42, true)", v, ok)
	}
}

func TestWaitDequeueTimedAfterCloseReportsNotOk(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := New[int]()
	q.Close()

	v, ok := q.WaitDequeueTimed(time.Second)
	if ok {
		t.Fatalf("expected not-ok after Close, got (%d, %v)", v, ok)
	}
}
