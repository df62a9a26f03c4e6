// Package syncsignal fans the "batch ready" notices from every
// CollectorGroup back in to the daemon loop that waits on them, and
// carries the single Done signal that every group raises once its
// MainLoop has exited. It is a many-producers/one-consumer queue of
// (group, batch size) pairs, with no payload beyond that to carry.
package syncsignal

import (
	"fmt"
	"time"

	"github.com/elfsim/core/notif"
	"github.com/elfsim/core/queue"
)

// Infos describes one batch that became ready: GID identifies which
// CollectorGroup produced it and BatchSize is how many entries the
// batch held. WaitBatchTimed sets GID to -1 (SharedGID) when its
// deadline passes with no batch ready.
type Infos struct {
	GID       int
	BatchSize int
}

// SharedGID is the group id used when a SyncSignal has no per-group
// queues: every group pushes into, and the daemon waits on, one
// shared queue.
const SharedGID = -1

// SyncSignal is the rendezvous point between every CollectorGroup's
// MainLoop and the daemon loop that consumes finished batches. Push
// is called once per batch by a group's MainLoop; WaitBatch is called
// by the daemon to retrieve the next one.
type SyncSignal struct {
	shared   *queue.Blocking[Infos]
	perGroup []*queue.Blocking[Infos]
	Done     *notif.Notif
}

// New creates a SyncSignal with a single shared queue: every group's
// Push lands in FIFO order on one queue, and the daemon calls
// WaitBatch(SharedGID, ...) to drain it.
func New() *SyncSignal {
	return &SyncSignal{
		shared: queue.New[Infos](),
		Done:   notif.New(),
	}
}

// NewPerGroup creates a SyncSignal with numGroups independent queues,
// one per CollectorGroup, so the daemon can wait on a specific
// group's batches without being woken by another group's.
func NewPerGroup(numGroups int) *SyncSignal {
	s := &SyncSignal{
		perGroup: make([]*queue.Blocking[Infos], numGroups),
		Done:     notif.New(),
	}
	for i := range s.perGroup {
		s.perGroup[i] = queue.New[Infos]()
	}
	return s
}

// Push enqueues a ready batch from group gid. If this SyncSignal uses
// per-group queues, gid selects which one; otherwise it is recorded
// in the Infos but routed to the shared queue regardless.
func (s *SyncSignal) Push(gid, batchSize int) {
	info := Infos{GID: gid, BatchSize: batchSize}
	if s.perGroup == nil || gid == SharedGID {
		s.shared.Enqueue(info)
		return
	}
	s.perGroup[gid].Enqueue(info)
}

// WaitBatch blocks until a batch is ready on the queue identified by
// groupID (SharedGID for the shared queue) and returns it.
func (s *SyncSignal) WaitBatch(groupID int) (Infos, error) {
	q, err := s.queueFor(groupID)
	if err != nil {
		return Infos{}, err
	}
	return q.WaitDequeue(), nil
}

// WaitBatchTimed is WaitBatch bounded by d. ok is false, and GID is
// set to SharedGID, if the deadline passed with nothing ready.
func (s *SyncSignal) WaitBatchTimed(groupID int, d time.Duration) (infos Infos, ok bool, err error) {
	q, err := s.queueFor(groupID)
	if err != nil {
		return Infos{}, false, err
	}
	infos, ok = q.WaitDequeueTimed(d)
	if !ok {
		infos.GID = SharedGID
	}
	return infos, ok, nil
}

func (s *SyncSignal) queueFor(groupID int) (*queue.Blocking[Infos], error) {
	if s.perGroup == nil {
		if groupID != SharedGID {
			return nil, fmt.Errorf("syncsignal: groupID %d given, but this signal has no per-group queues", groupID)
		}
		return s.shared, nil
	}
	if groupID < 0 || groupID >= len(s.perGroup) {
		return nil, fmt.Errorf("syncsignal: groupID %d out of range [0,%d)", groupID, len(s.perGroup))
	}
	return s.perGroup[groupID], nil
}

// Close shuts down every queue's pump goroutine. Call once, after
// every Push and WaitBatch caller has stopped.
func (s *SyncSignal) Close() {
	if s.shared != nil {
		s.shared.Close()
	}
	for _, q := range s.perGroup {
		q.Close()
	}
}
