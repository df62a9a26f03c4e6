// Package stats tracks latency and key-activity diagnostics for the
// comm rendezvous. CommStats implements the self-throttling scheme
// from the original latency feed: a fast-moving key that pulls too
// far ahead of the window's average round-trip time is made to sleep
// briefly, smoothing out stragglers without a hard rate limit.
package stats

import (
	"math/rand"
	"sync"
	"time"

	"github.com/elfsim/core/ring"
)

// windowSize bounds how many recent latency samples CommStats bases
// its min/max/avg estimate on.
const windowSize = 1000

const throttleSleep = 10 * time.Millisecond

// CommStats is a rolling window of round-trip latencies (in whatever
// unit the caller feeds it, typically microseconds) used to
// throttle outlier-fast callers back in line with the rest.
type CommStats struct {
	mu     sync.Mutex
	window *ring.Queue[int64]
}

// NewCommStats creates an empty CommStats.
func NewCommStats() *CommStats {
	return &CommStats{window: ring.New[int64](windowSize)}
}

// Feed records one latency sample v. When the window's spread (max -
// min) exceeds a thirtieth of its average and v lies in the upper half
// of [min, max], Feed sleeps for a short fixed duration with a
// probability that rises linearly from 0 at the midpoint to 1 at max.
// Feed is safe for concurrent use by every key's goroutine.
func (s *CommStats) Feed(v int64) {
	s.mu.Lock()
	*s.window.Push() = v

	var min, max, sum int64
	first := true
	count := 0
	s.window.ForEach(func(x int64) {
		if first {
			min, max = x, x
			first = false
		} else {
			if x < min {
				min = x
			}
			if x > max {
				max = x
			}
		}
		sum += x
		count++
	})
	s.mu.Unlock()

	if count == 0 {
		return
	}

	avg := float64(sum) / float64(count)
	minF, maxF := float64(min), float64(max)

	if maxF-minF <= avg/30 {
		return
	}

	ratio := (float64(v) - minF) / (maxF - minF)
	if ratio > 0.5 && rand.Float64()*0.5+0.5 <= ratio {
		time.Sleep(throttleSleep)
	}
}

// Snapshot returns the window's current sample count, min, max and
// average, for diagnostics.
func (s *CommStats) Snapshot() (count int, min, max int64, avg float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	first := true
	var sum int64
	s.window.ForEach(func(x int64) {
		if first {
			min, max = x, x
			first = false
		} else {
			if x < min {
				min = x
			}
			if x > max {
				max = x
			}
		}
		sum += x
		count++
	})
	if count > 0 {
		avg = float64(sum) / float64(count)
	}
	return count, min, max, avg
}
