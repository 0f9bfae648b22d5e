package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/linzo/meet/internal/core"
	"github.com/linzo/meet/internal/domain"
)

type sessionEntry struct {
	Session core.MemberSession
	Rooms   map[domain.RoomID]struct{}
	Cancel  context.CancelFunc
}

// Registry tracks every connected peer: its transport session, the set
// of rooms it has joined, and the cancel func tearing its pumps down.
// A connection may only be a member of rooms it explicitly joined, but
// disconnect cleanup must walk all of them.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.PeerID]*sessionEntry
	peers    map[domain.PeerID]*domain.Peer
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.PeerID]*sessionEntry),
		peers:    make(map[domain.PeerID]*domain.Peer),
	}
}

// GetOrCreatePeer survives reconnects: identity comes from the client
// token, so a returning browser keeps its display name.
func (r *Registry) GetOrCreatePeer(id domain.PeerID) *domain.Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[id]; ok {
		return p
	}
	p := domain.NewPeer(id)
	r.peers[id] = p
	log.Info().Str("module", "app.registry").Str("peer", string(id)).Msg("created new peer")
	return p
}

func (r *Registry) UpdateName(id domain.PeerID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[id]
	if !ok {
		p = domain.NewPeer(id)
		r.peers[id] = p
	}
	if err := p.SetName(name); err != nil {
		return err
	}
	log.Info().Str("module", "app.registry").Str("peer", string(id)).Str("name", name).Msg("updated display name")
	return nil
}

func (r *Registry) BindSignal(id domain.PeerID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &sessionEntry{
		Session: sess,
		Rooms:   make(map[domain.RoomID]struct{}),
		Cancel:  cancel,
	}
	log.Info().Str("module", "app.registry").Str("peer", string(id)).Msg("bound signal")
}

func (r *Registry) GetSession(id domain.PeerID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[id]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) Unbind(id domain.PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	log.Info().Str("module", "app.registry").Str("peer", string(id)).Msg("unbind session")
}

func (r *Registry) AddRoom(id domain.PeerID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return false
	}
	e.Rooms[room] = struct{}{}
	return true
}

func (r *Registry) RemoveRoom(id domain.PeerID, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[id]; ok {
		delete(e.Rooms, room)
	}
}

// RoomsOf returns a copy; the caller may mutate membership while iterating.
func (r *Registry) RoomsOf(id domain.PeerID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil
	}
	out := make([]domain.RoomID, 0, len(e.Rooms))
	for room := range e.Rooms {
		out = append(out, room)
	}
	return out
}

func (r *Registry) InRoom(id domain.PeerID, room domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return false
	}
	_, ok = e.Rooms[room]
	return ok
}

func (r *Registry) Cancel(id domain.PeerID) bool {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("peer", string(id)).Msg("canceled session")
	return true
}
