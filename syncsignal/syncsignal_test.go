package syncsignal

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestSharedQueueFIFO(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New()
	defer s.Close()

	s.Push(0, 4)
	s.Push(1, 8)

	got, err := s.WaitBatch(SharedGID)
	if err != nil || got != (Infos{GID: 0, BatchSize: 4}) {
		t.Fatalf("WaitBatch() = (%+v, %v), want ({0 4}, nil)", got, err)
	}
	got, err = s.WaitBatch(SharedGID)
	if err != nil || got != (Infos{GID: 1, BatchSize: 8}) {
		t.Fatalf("WaitBatch() = (%+v, %v), want ({1 8}, nil)", got, err)
	}
}

func TestSharedQueueRejectsGroupID(t *testing.T) {
	s := New()
	defer s.Close()

	if _, err := s.WaitBatch(0); err == nil {
		t.Fatal("expected error waiting on a group id with a shared-only SyncSignal")
	}
}

func TestPerGroupQueuesAreIndependent(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewPerGroup(2)
	defer s.Close()

	s.Push(1, 3)

	_, ok, err := s.WaitBatchTimed(0, 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("group 0's queue should be empty")
	}

	got, err := s.WaitBatch(1)
	if err != nil || got.BatchSize != 3 {
		t.Fatalf("WaitBatch(1) = (%+v, %v), want batchsize 3", got, err)
	}
}

func TestWaitBatchTimedOutOfRange(t *testing.T) {
	s := NewPerGroup(1)
	defer s.Close()

	if _, _, err := s.WaitBatchTimed(5, time.Millisecond); err == nil {
		t.Fatal("expected error for out-of-range group id")
	}
}

func TestDoneNotifFanIn(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New()
	defer s.Close()

	done := make(chan struct{})
	go func() {
		s.Done.Wait(3)
		close(done)
	}()

	s.Done.Notify()
	s.Done.Notify()
	s.Done.Notify()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Done.Wait did not return after 3 groups finished")
	}
}
