// Package key identifies the producers (games and their sub-threads)
// that talk to a Comm. A Key is a 32-bit composite of a game index and
// a thread index, and is unique for the lifetime of a Context.
package key

// Key identifies one producer within a process. The lower 24 bits hold
// the game index, the upper 8 bits hold the thread index plus one;
// thread index -1 (the main thread of a game) therefore encodes as 0
// in the upper byte.
type Key uint32

// MainThread is the thread ID of a game's main query, matching the
// special-cased thread_id == -1 in the original encoding.
const MainThread = -1

// Encode computes the Key for a (gameID, threadID) pair. gameID must
// fit in 24 bits; threadID must be MainThread or in [0, 255).
func Encode(gameID, threadID int) Key {
	return Key((uint32(threadID+1) << 24) | (uint32(gameID) & 0xFFFFFF))
}

// Decode recovers the (gameID, threadID) pair from a Key produced by
// Encode.
func Decode(k Key) (gameID, threadID int) {
	gameID = int(uint32(k) & 0xFFFFFF)
	threadID = int(uint32(k)>>24) - 1
	return
}

// Meta identifies one producer within a game. Spawned sub-agents share
// the parent's ID but carry their own ThreadID/QueryID.
type Meta struct {
	ID       int
	ThreadID int
	QueryID  Key
}

// NewMeta creates the Meta for a game's main query.
func NewMeta(id int) Meta {
	return Meta{
		ID:       id,
		ThreadID: MainThread,
		QueryID:  Encode(id, MainThread),
	}
}

// Child derives a sub-agent's Meta from its parent, assigning it a new
// thread ID. The ID is inherited, matching the parent/child tree
// described by the data model.
func (m Meta) Child(threadID int) Meta {
	return Meta{
		ID:       m.ID,
		ThreadID: threadID,
		QueryID:  Encode(m.ID, threadID),
	}
}

// Seq tracks one producer's position within its current episode: a
// strictly increasing intra-episode sequence number, a monotonic
// episode counter, and whether this is the first step of a new
// episode.
type Seq struct {
	Seq          int
	GameCounter  int
	LastTerminal bool
}

// Inc advances to the next step of the current episode.
func (s *Seq) Inc() {
	s.Seq++
	s.LastTerminal = false
}

// NewEpisode resets the sequence number, bumps the episode counter,
// and marks the next step as the first of a new episode.
func (s *Seq) NewEpisode() {
	s.Seq = 0
	s.GameCounter++
	s.LastTerminal = true
}
