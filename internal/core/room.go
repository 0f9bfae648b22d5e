package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/linzo/meet/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	id domain.RoomID

	mu      sync.RWMutex
	members map[domain.PeerID]MemberSession
	closed  bool
}

func NewRoomService(id domain.RoomID) RoomService {
	return &roomImpl{
		id:      id,
		members: make(map[domain.PeerID]MemberSession),
	}
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *roomImpl) Has(id domain.PeerID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[id]
	return ok
}

// Join snapshots the current members, registers the newcomer and
// notifies the prior members, without releasing the lock in between.
// TrySend never blocks, so holding the lock across the fan-out is safe.
// Returns ok=false only when the room has been evicted; the caller must
// then fetch a fresh room from the manager.
func (r *roomImpl) Join(id domain.PeerID, ms MemberSession, joined Frame) ([]MemberDTO, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false
	}

	existing := r.snapshotLocked(id)
	if _, dup := r.members[id]; dup {
		// Duplicate join for an already-tracked member is a no-op.
		log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("peer", string(id)).Msg("duplicate join ignored")
		return existing, true
	}
	r.members[id] = ms

	for mid, m := range r.members {
		if mid == id {
			continue
		}
		if err := m.Signal().TrySend(joined); err != nil {
			log.Warn().Err(err).Str("module", "core.room").Str("room", string(r.id)).Str("peer", string(mid)).Msg("join notify dropped")
		}
	}
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("peer", string(id)).Int("count", len(r.members)).Msg("member added")
	return existing, true
}

func (r *roomImpl) Remove(id domain.PeerID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; ok {
		delete(r.members, id)
		log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("peer", string(id)).Int("count", len(r.members)).Msg("member removed")
	}
	return len(r.members)
}

func (r *roomImpl) Broadcast(from domain.PeerID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for id, m := range r.members {
		if id == from {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked("")
}

func (r *roomImpl) snapshotLocked(skip domain.PeerID) []MemberDTO {
	out := make([]MemberDTO, 0, len(r.members))
	for id, ms := range r.members {
		if id == skip {
			continue
		}
		p := ms.Meta()
		out = append(out, MemberDTO{ID: p.ID, Name: p.Name})
	}
	return out
}

// markClosed flips the room into its terminal state. Only the manager
// calls this, under its own lock, after verifying emptiness.
func (r *roomImpl) markClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) > 0 {
		return false
	}
	r.closed = true
	return true
}
