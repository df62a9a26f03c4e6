// Package comm implements the rendezvous every game talks to: Comm
// owns a set of CollectorGroups arranged into exclusive classes,
// gates each step's data against a per-(key,class) history policy,
// and blocks the producer until every group that accepted the step
// has both consumed it and delivered a reply.
package comm

import (
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/elfsim/core/group"
	"github.com/elfsim/core/hist"
	"github.com/elfsim/core/key"
	"github.com/elfsim/core/lmap"
	"github.com/elfsim/core/notif"
	"github.com/elfsim/core/slices"
	"github.com/elfsim/core/stats"
	"github.com/elfsim/core/syncsignal"
)

// State is the contract a per-game history entry must satisfy for use
// with Comm's gating: it composes hist.State (so it can live in a
// Hist ring buffer) with the few fields CondPerGroup reads from the
// newest entry. GateName returning "" means "no name, always passes
// the name check" — this replaces the original's compile-time
// has_field trait with an ordinary (and simpler) Go interface method.
type State interface {
	hist.State
	GateName() string
	GateSeq() (seq, gameCounter int)
}

// Info is one game's current observation and reply slot: a Meta
// identifying the producer, and the Hist its gating and batching
// decisions are made from. Info is referenced, never copied, into a
// group's batch.
type Info[S State] struct {
	Meta key.Meta
	Data *hist.Hist[S]
}

// GroupStat describes one collector group's contract: the history
// depth it consumes and the symbolic name that selects it. It is
// fixed at AddCollectors time and never mutated afterwards.
type GroupStat struct {
	GID     int
	HistLen int
	Name    string
}

func (g GroupStat) info() string {
	return fmt.Sprintf("[gid=%d][T=%d][name=%q]", g.GID, g.HistLen, g.Name)
}

// histOverlap is the fixed decimation overlap the original never
// exposed as configuration; kept as an unexported constant to match.
const histOverlap = 1

// condPerGroup is the per-(key, exclusive class) gating state: how
// far the episode/sequence counters have advanced the last time this
// pair was accepted.
type condPerGroup struct {
	lastUsedSeq int
	lastSeq     int
	gameCounter int
	freqSend    int64
}

// check decides whether record (size entries deep into its Hist) is
// eligible to join gstat's group this step, advancing the gating
// state on both episode-rewind and acceptance. It must only be called
// from the single goroutine that owns the producer's key.
func (c *condPerGroup) check(gstat GroupStat, size int, record State) bool {
	if gstat.Name != "" && gstat.Name != record.GateName() {
		return false
	}

	seq, gameCounter := record.GateSeq()
	if gameCounter > c.gameCounter {
		c.gameCounter = gameCounter
		// Make sure no frame is missed; seq starts from 0.
		c.lastUsedSeq -= c.lastSeq + 1
	}
	c.lastSeq = seq

	if size < gstat.HistLen || seq-c.lastUsedSeq < gstat.HistLen-histOverlap {
		return false
	}
	c.lastUsedSeq = seq
	c.freqSend++
	return true
}

// stat is the per-key bookkeeping Comm keeps: a send counter, the
// rendezvous Notif the game blocks on, and one condPerGroup per
// exclusive class.
type stat[S State] struct {
	key     key.Key
	freq    int64 // atomic
	counter *notif.Notif
	conds   []condPerGroup
}

// Options configures a Comm at construction.
type Options struct {
	// WaitPerGroup, when true, gives every group its own SyncSignal
	// queue instead of sharing one; the daemon must then call
	// WaitGroupBatchData per group rather than WaitBatchData.
	WaitPerGroup bool
	Verbose      bool
}

// pendingGroup is a group registered by AddCollectors but not yet
// constructed; it is built once the final group count (and hence the
// shape of the SyncSignal) is known, at CollectorsReady.
type pendingGroup struct {
	batchSize int
	timeout   time.Duration
}

// Comm is the rendezvous between game producers and the daemon.
type Comm[S State] struct {
	opts Options
	keys []key.Key

	pending []pendingGroup
	groups  []*group.CollectorGroup[key.Key, *Info[S]]

	// classes is the ordered registry of exclusive classes: key is the
	// exclusiveID passed to AddCollectors, value is every GroupStat
	// registered under it, in registration order. Using a LinkedMap
	// instead of a plain map keeps the SendDataWaitReply iteration
	// order (and therefore the positional condPerGroup slot each
	// class is assigned below) identical across every call, which a
	// plain Go map does not guarantee.
	classes *lmap.LinkedMap[int, []GroupStat]

	signal   *syncsignal.SyncSignal
	latency  *stats.CommStats
	activity *stats.KeyActivity[key.Key]

	byKey map[key.Key]*stat[S]
}

// New creates a Comm accepting exactly the given keys. Call
// AddCollectors for each group, then CollectorsReady once, before any
// SendDataWaitReply.
func New[S State](keys []key.Key, opts Options) *Comm[S] {
	c := &Comm[S]{
		opts:     opts,
		keys:     keys,
		classes:  lmap.New[int, []GroupStat](),
		latency:  stats.NewCommStats(),
		activity: stats.NewKeyActivity[key.Key](1024),
		byKey:    make(map[key.Key]*stat[S], len(keys)),
	}
	for _, k := range keys {
		c.byKey[k] = &stat[S]{key: k, counter: notif.New()}
	}
	return c
}

// AddCollectors registers a new CollectorGroup of batchSize, belonging
// to exclusiveID's class, described by gstat. timeout is this group's
// declared default for the daemon's wait_batch call (see
// CollectorGroup.Timeout), not a batch-accumulation deadline: a batch
// is released once it holds batchSize entries, or, when the group is
// stopped, with whatever has accumulated. It
// returns the assigned gid, which gstat.GID is also stamped with. The
// group itself is not constructed until CollectorsReady.
func (c *Comm[S]) AddCollectors(batchSize, exclusiveID int, timeout time.Duration, gstat GroupStat) int {
	gid := len(c.pending)
	c.pending = append(c.pending, pendingGroup{batchSize: batchSize, timeout: timeout})

	gstat.GID = gid
	candidates, _ := c.classes.Get(exclusiveID, false)
	c.classes.Set(exclusiveID, append(candidates, gstat), false)
	return gid
}

// CollectorsReady finalizes startup: builds the SyncSignal now that
// the group count is known, constructs every registered group,
// initializes each key's per-class gating state, and launches every
// group's MainLoop.
func (c *Comm[S]) CollectorsReady() {
	if len(c.pending) == 0 {
		panic("comm: CollectorsReady called with zero groups registered")
	}

	if c.opts.WaitPerGroup {
		c.signal = syncsignal.NewPerGroup(len(c.pending))
	} else {
		c.signal = syncsignal.New()
	}

	c.groups = make([]*group.CollectorGroup[key.Key, *Info[S]], len(c.pending))
	for gid, p := range c.pending {
		c.groups[gid] = group.New[key.Key, *Info[S]](gid, c.keys, p.batchSize, p.timeout, c.signal, c.opts.Verbose)
	}
	c.pending = nil

	for _, st := range c.byKey {
		st.conds = make([]condPerGroup, c.classes.Len())
	}

	for _, g := range c.groups {
		go g.MainLoop()
	}
}

// SendDataWaitReply offers info under key to every exclusive class's
// randomly-chosen candidate group, blocks until every group that
// accepted it has consumed the step, then blocks again until each has
// delivered its reply.
func (c *Comm[S]) SendDataWaitReply(k key.Key, info *Info[S]) error {
	st, ok := c.byKey[k]
	if !ok {
		return fmt.Errorf("comm: unknown key %v", k)
	}
	atomic.AddInt64(&st.freq, 1)

	start := time.Now()
	record := *info.Data.Newest(0)
	size := info.Data.Size()

	selected := make([]int, 0, c.classes.Len())
	i := 0
	it := c.classes.Iterator()
	for it.Next() {
		_, candidates := it.Entry()
		gstat := candidates[rand.Intn(len(candidates))]

		if st.conds[i].check(gstat, size, record) {
			if err := c.groups[gstat.GID].SendData(k, info); err != nil {
				return fmt.Errorf("comm: group %d: %w", gstat.GID, err)
			}
			selected = append(selected, gstat.GID)
		}
		i++
	}

	if len(selected) == 0 {
		return nil
	}

	c.activity.Observe(k)

	st.counter.Wait(int64(len(selected)))
	st.counter.Reset()

	for _, gid := range selected {
		if err := c.groups[gid].WaitReply(k); err != nil {
			return fmt.Errorf("comm: group %d: %w", gid, err)
		}
	}

	c.latency.Feed(time.Since(start).Microseconds())
	return nil
}

// WaitBatchData blocks (up to timeout, if positive) for the next
// ready batch from any group and returns its Infos.
func (c *Comm[S]) WaitBatchData(timeout time.Duration) syncsignal.Infos {
	return c.waitBatch(syncsignal.SharedGID, timeout)
}

// WaitGroupBatchData is WaitBatchData restricted to one group's
// private queue; only valid when Options.WaitPerGroup was set. If
// timeout is zero, the group's own registered default (the timeout
// passed to AddCollectors for this gid) is used instead of blocking
// forever.
func (c *Comm[S]) WaitGroupBatchData(gid int, timeout time.Duration) syncsignal.Infos {
	if timeout <= 0 {
		if t := c.groups[gid].Timeout(); t > 0 {
			timeout = t
		}
	}
	return c.waitBatch(gid, timeout)
}

func (c *Comm[S]) waitBatch(gid int, timeout time.Duration) syncsignal.Infos {
	if timeout <= 0 {
		infos, err := c.signal.WaitBatch(gid)
		if err != nil {
			return syncsignal.Infos{GID: syncsignal.SharedGID}
		}
		return infos
	}
	infos, _, err := c.signal.WaitBatchTimed(gid, timeout)
	if err != nil {
		return syncsignal.Infos{GID: syncsignal.SharedGID}
	}
	return infos
}

// Steps tells the collector group in infos that its batch has been
// processed: every key in the batch has its rendezvous counter
// notified once, then the group is released to deliver replies.
func (c *Comm[S]) Steps(infos syncsignal.Infos, futureTimeout int) bool {
	if infos.GID < 0 {
		return false
	}
	g := c.groups[infos.GID]
	for _, k := range g.BatchKeys() {
		if st, ok := c.byKey[k]; ok {
			st.counter.Notify()
		}
	}
	g.SignalBatchUsed(futureTimeout)
	return true
}

// PrepareStop drops every group's batch size to 1, so any
// partially-filled batch is released as soon as its next contributor
// arrives rather than waiting to fill.
func (c *Comm[S]) PrepareStop() {
	for _, g := range c.groups {
		g.SetBatchSize(1)
	}
}

// Stop shuts every group down and blocks until each has exited its
// MainLoop. Callers that still have games producing data should first
// drain remaining batches (see gamectx.Context.Stop) so no group is
// left parked waiting for a SignalBatchUsed that will never come.
func (c *Comm[S]) Stop() {
	for _, g := range c.groups {
		g.NotifyAwake()
	}
	for _, g := range c.groups {
		g.Stop()
	}
	c.signal.Done.Wait(int64(len(c.groups)))
	c.signal.Close()
}

// BatchValues returns the Info values of the batch named by infos, in
// the same order as the group delivered them. It returns nil if infos
// names no batch (GID < 0).
func (c *Comm[S]) BatchValues(infos syncsignal.Infos) []*Info[S] {
	if infos.GID < 0 {
		return nil
	}
	return c.groups[infos.GID].BatchValues()
}

// NumGroups reports how many collector groups are registered.
func (c *Comm[S]) NumGroups() int {
	return len(c.groups)
}

// Summary returns a diagnostic dump of every exclusive class and its
// candidate groups, in registration order, plus whatever keys are
// currently in-flight across all groups and the busiest keys overall.
func (c *Comm[S]) Summary() string {
	var sb strings.Builder

	it := c.classes.Iterator()
	for it.Next() {
		exclusiveID, candidates := it.Entry()
		fmt.Fprintf(&sb, "Group %d:\n", exclusiveID)
		for _, gstat := range candidates {
			fmt.Fprintf(&sb, "  %s %s\n", c.groups[gstat.GID].Summary(), gstat.info())
		}
	}

	inflight := make([][]key.Key, len(c.groups))
	for i, g := range c.groups {
		inflight[i] = g.BatchKeys()
	}
	active := slices.Flatten(inflight, nil)
	if len(active) > 0 {
		fmt.Fprintf(&sb, "In-flight keys: %v\n", active)
	}

	top := c.activity.Top(5)
	if len(top) > 0 {
		sb.WriteString("Busiest keys:\n")
		for _, e := range top {
			fmt.Fprintf(&sb, "  key=%v sends=%d\n", e.Element, e.Count)
		}
	}

	return sb.String()
}
