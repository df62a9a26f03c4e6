package aicomm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/elfsim/core/comm"
	"github.com/elfsim/core/key"
)

type testState struct {
	name        string
	seq         int
	gameCounter int
	reply       int
}

func (s *testState) Prepare(seq key.Seq) {
	s.seq = seq.Seq
	s.gameCounter = seq.GameCounter
}

func (s *testState) GateName() string { return s.name }

func (s *testState) GateSeq() (seq, gameCounter int) { return s.seq, s.gameCounter }

func newTestComm(t *testing.T) (*comm.Comm[*testState], int) {
	t.Helper()

	k := key.Encode(0, key.MainThread)
	c := comm.New[*testState]([]key.Key{k}, comm.Options{})
	gid := c.AddCollectors(1, 0, time.Second, comm.GroupStat{HistLen: 1})
	c.CollectorsReady()
	return c, gid
}

func TestPrepareSendDataWaitReplyRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	shared, gid := newTestComm(t)
	game := New[*testState](0, shared, 1, func() *testState { return &testState{} })

	done := make(chan error, 1)
	go func() {
		room := game.Prepare()
		(*room).name = ""
		done <- game.SendDataWaitReply()
	}()

	infos := shared.WaitBatchData(0)
	assert.Equal(t, gid, infos.GID)
	shared.Steps(infos, 0)

	assert.NoError(t, <-done)
	shared.Stop()
}

func TestRestartResetsSeqAndBumpsEpisode(t *testing.T) {
	shared, _ := newTestComm(t)
	game := New[*testState](0, shared, 1, func() *testState { return &testState{} })

	game.Prepare()
	game.Prepare()
	assert.Equal(t, 2, game.Seq().Seq)

	game.Restart()
	assert.Equal(t, 0, game.Seq().Seq)
	assert.Equal(t, 1, game.Seq().GameCounter)
	assert.True(t, game.Seq().LastTerminal)
}

func TestSpawnSharesGameIDAndSeq(t *testing.T) {
	shared, _ := newTestComm(t)
	game := New[*testState](3, shared, 1, func() *testState { return &testState{} })
	game.Prepare()

	child := game.Spawn(1, 1, func() *testState { return &testState{} })

	assert.Equal(t, game.Meta().ID, child.Meta().ID)
	assert.NotEqual(t, game.Meta().QueryID, child.Meta().QueryID)
	assert.Equal(t, game.Seq().Seq, child.Seq().Seq)
}

func TestRandIsSeededDeterministically(t *testing.T) {
	shared, _ := newTestComm(t)
	a := New[*testState](5, shared, 1, func() *testState { return &testState{} })
	b := New[*testState](5, shared, 1, func() *testState { return &testState{} })

	assert.Equal(t, a.Rand().Int63(), b.Rand().Int63())
}
