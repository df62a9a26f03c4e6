// Command elfdemo runs a small in-process simulation of the
// rendezvous: a handful of synthetic games send steps through a
// shared Comm arranged into two exclusive classes (a fast group that
// takes every step, and a slow group that only fires once every few
// steps), while a daemon loop drains whatever batch is ready and
// echoes a reply back.
package main

import (
	"context"
	"flag"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/elfsim/core/aicomm"
	"github.com/elfsim/core/comm"
	"github.com/elfsim/core/gamectx"
	"github.com/elfsim/core/key"
)

var (
	numGames    = flag.Int("n", 8, "number of simulated games")
	batchSize   = flag.Int("b", 4, "batch size for each collector group")
	fastHistLen = flag.Int("fast", 1, "history depth for the fast group")
	slowHistLen = flag.Int("slow", 4, "history depth for the slow (decimated) group")
	duration    = flag.Duration("d", 3*time.Second, "how long to run before stopping")
	stepDelay   = flag.Duration("step", 20*time.Millisecond, "max random delay between a game's steps")
	verbose     = flag.Bool("v", false, "verbose group logging")
)

type demoState struct {
	seq         int
	gameCounter int
}

func (s *demoState) Prepare(seq key.Seq) {
	s.seq = seq.Seq
	s.gameCounter = seq.GameCounter
}

func (s *demoState) GateName() string { return "" }

func (s *demoState) GateSeq() (seq, gameCounter int) { return s.seq, s.gameCounter }

func main() {
	flag.Parse()

	keys := make([]key.Key, *numGames)
	for i := range keys {
		keys[i] = key.Encode(i, key.MainThread)
	}

	shared := comm.New[*demoState](keys, comm.Options{Verbose: *verbose})
	gidFast := shared.AddCollectors(*batchSize, 0, time.Second, comm.GroupStat{HistLen: *fastHistLen})
	gidSlow := shared.AddCollectors(*batchSize, 1, time.Second, comm.GroupStat{HistLen: *slowHistLen})

	pool := gamectx.New(shared, *numGames)

	var fastBatches, slowBatches int64
	go func() {
		for {
			infos := pool.Wait(5 * time.Millisecond)
			if infos.GID < 0 {
				continue
			}
			switch infos.GID {
			case gidFast:
				atomic.AddInt64(&fastBatches, 1)
			case gidSlow:
				atomic.AddInt64(&slowBatches, 1)
			}
			now := time.Now().Format("15:04:05.000")
			fmt.Printf("%s group=%d batch_size=%d\n", now, infos.GID, infos.BatchSize)
			pool.Steps(infos)
		}
	}()

	gameFn := func(ctx context.Context, idx int, signal gamectx.Signal, shared *comm.Comm[*demoState]) error {
		game := aicomm.New[*demoState](idx, shared, *slowHistLen, func() *demoState { return &demoState{} })
		rng := game.Rand()

		for !signal.IsDone() {
			game.Prepare()
			if err := game.SendDataWaitReply(); err != nil {
				return err
			}
			time.Sleep(time.Duration(rng.Int63n(int64(*stepDelay) + 1)))
		}
		return nil
	}

	pool.Start(context.Background(), gameFn)

	time.Sleep(*duration)

	fmt.Println(pool.Summary())
	fmt.Printf("fast batches=%d slow batches=%d\n", atomic.LoadInt64(&fastBatches), atomic.LoadInt64(&slowBatches))

	pool.Stop()
	fmt.Println("bye")
}
