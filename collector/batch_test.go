package collector

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestBatchCollectorReleasesOnThreshold(t *testing.T) {
	defer goleak.VerifyNone(t)

	bc := NewBatch[string, int]([]string{"a", "b", "c"}, 2)
	defer bc.Stop()

	bc.SendData("a", 1)
	bc.SendData("b", 2)

	batch, ok := bc.WaitBatch()
	if !ok {
		t.Fatal("WaitBatch() ok = false")
	}
	if len(batch) != 2 {
		t.Fatalf("len(batch) = %d, want 2", len(batch))
	}

	got := map[string]int{}
	for _, e := range batch {
		got[e.Key] = e.Value
	}
	if got["a"] != 1 || got["b"] != 2 {
		t.Errorf("batch = %+v, want a:1 b:2", batch)
	}
}

// TestBatchCollectorWaitsForThreshold verifies there is no time-based
// early release: a batch short of its threshold stays pending however
// long the caller waits.
func TestBatchCollectorWaitsForThreshold(t *testing.T) {
	defer goleak.VerifyNone(t)

	bc := NewBatch[string, int]([]string{"a", "b", "c"}, 2)
	defer bc.Stop()

	bc.SendData("a", 1)

	select {
	case batch := <-bc.out:
		t.Fatalf("batch released early with 1 entry: %+v", batch)
	case <-time.After(50 * time.Millisecond):
	}

	bc.SendData("b", 2)

	batch, ok := bc.WaitBatch()
	if !ok {
		t.Fatal("WaitBatch() ok = false")
	}
	if len(batch) != 2 {
		t.Fatalf("len(batch) = %d, want 2", len(batch))
	}
}

func TestBatchCollectorStopClosesOutput(t *testing.T) {
	defer goleak.VerifyNone(t)

	bc := NewBatch[string, int]([]string{"a"}, 10)
	bc.Stop()

	if _, ok := bc.WaitBatch(); ok {
		t.Fatal("WaitBatch() ok = true after Stop")
	}
}
