package stats

import (
	"github.com/elfsim/core/counter"
	"github.com/elfsim/core/slidingwindow"
)

// KeyActivity tracks which keys have been sending data most often over
// a recent window, for diagnosing stragglers and starved games. It is
// safe for concurrent use.
type KeyActivity[K comparable] struct {
	window *slidingwindow.LockedCounter[K]
}

// NewKeyActivity creates a KeyActivity remembering the last size
// observations.
func NewKeyActivity[K comparable](size int) *KeyActivity[K] {
	return &KeyActivity[K]{
		window: slidingwindow.NewLocked(slidingwindow.NewCounter[K](size, 0, nil)),
	}
}

// Observe records one SendData from k.
func (a *KeyActivity[K]) Observe(k K) {
	a.window.Observe(k)
}

// Top returns the n keys that sent data most often within the current
// window, most active first.
func (a *KeyActivity[K]) Top(n int) []counter.Entry[K] {
	all := a.window.GetAll()
	if n > len(all) {
		n = len(all)
	}
	return counter.TopK(all, n)
}
