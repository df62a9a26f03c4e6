package group

import (
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/elfsim/core/syncsignal"
)

func TestMainLoopReleasesAndResumesBatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	signal := syncsignal.New()
	defer signal.Close()

	g := New[string, int](0, []string{"a", "b"}, 2, time.Second, signal, false)

	mainLoopDone := make(chan struct{})
	go func() {
		defer close(mainLoopDone)
		g.MainLoop()
	}()

	gameDone := make(chan struct{})
	go func() {
		defer close(gameDone)
		if err := g.SendData("a", 1); err != nil {
			t.Error(err)
		}
		if err := g.WaitReply("a"); err != nil {
			t.Error(err)
		}
	}()

	if err := g.SendData("b", 2); err != nil {
		t.Fatal(err)
	}

	infos, err := signal.WaitBatch(syncsignal.SharedGID)
	if err != nil {
		t.Fatal(err)
	}
	if infos.GID != 0 || infos.BatchSize != 2 {
		t.Fatalf("infos = %+v, want {0 2}", infos)
	}

	keys := g.BatchKeys()
	if len(keys) != 2 {
		t.Fatalf("BatchKeys() = %v, want 2 entries", keys)
	}

	g.SignalBatchUsed(0)

	if err := g.WaitReply("b"); err != nil {
		t.Fatal(err)
	}

	select {
	case <-gameDone:
	case <-time.After(time.Second):
		t.Fatal("game a's SendData/WaitReply did not complete")
	}

	g.Stop()

	select {
	case <-mainLoopDone:
	case <-time.After(time.Second):
		t.Fatal("MainLoop did not return after Stop")
	}
}

func TestSetBatchSizeAppliesToNextBatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	signal := syncsignal.New()
	defer signal.Close()

	g := New[string, int](1, []string{"a", "b"}, 2, time.Second, signal, false)

	mainLoopDone := make(chan struct{})
	go func() {
		defer close(mainLoopDone)
		g.MainLoop()
	}()

	g.SetBatchSize(1)

	if err := g.SendData("a", 1); err != nil {
		t.Fatal(err)
	}

	infos, err := signal.WaitBatch(syncsignal.SharedGID)
	if err != nil {
		t.Fatal(err)
	}
	if infos.BatchSize != 1 {
		t.Fatalf("BatchSize = %d, want 1", infos.BatchSize)
	}

	g.SignalBatchUsed(0)
	if err := g.WaitReply("a"); err != nil {
		t.Fatal(err)
	}

	g.Stop()

	select {
	case <-mainLoopDone:
	case <-time.After(time.Second):
		t.Fatal("MainLoop did not return after Stop")
	}
}
