package core

import "github.com/linzo/meet/internal/domain"

// Frame is an encoded signaling payload ready for the wire.
type Frame []byte

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds domain.Peer and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	Meta() *domain.Peer
	Signal() SignalConnection
}

// PublishResult reports delivery stats/backpressure to the orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs and join snapshots.
type MemberDTO struct {
	ID   domain.PeerID `json:"id"`
	Name string        `json:"name"`
}

// RoomService owns one room's membership set. All mutations of a room
// are serialized behind its lock; different rooms never contend.
//
// Join registers a member and fans the given notification out to the
// members that were already present, all inside one critical section:
// the snapshot it returns and the set of notified members are the same,
// so no member learns of a peer that never learned of them. Joining a
// room one is already in is a no-op that still returns the snapshot.
//
// Remove is idempotent and reports the remaining member count so the
// caller can evict the room when it hits zero.
type RoomService interface {
	ID() domain.RoomID
	MemberCount() int
	MembersSnapshot() []MemberDTO

	Join(id domain.PeerID, ms MemberSession, joined Frame) (existing []MemberDTO, ok bool)
	Remove(id domain.PeerID) (remaining int)
	Has(id domain.PeerID) bool
	Broadcast(from domain.PeerID, data Frame) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

// RoomManager creates rooms on first join and deletes them when their
// membership reaches zero. Emptiness is the sole destruction trigger;
// there is no explicit close operation.
type RoomManager interface {
	GetOrCreate(id domain.RoomID) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	EvictIfEmpty(id domain.RoomID) bool
}
