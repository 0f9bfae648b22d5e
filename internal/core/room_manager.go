package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/linzo/meet/internal/domain"
)

type roomManager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomImpl
}

func NewRoomManager() RoomManager {
	return &roomManager{rooms: make(map[domain.RoomID]*roomImpl)}
}

func (m *roomManager) GetOrCreate(id domain.RoomID) RoomService {
	m.mu.RLock()
	room, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok {
		return room
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok = m.rooms[id]; ok {
		return room
	}
	room = NewRoomService(id).(*roomImpl)
	m.rooms[id] = room
	log.Info().Str("module", "core.rooms").Str("room", string(id)).Msg("room created")
	return room
}

func (m *roomManager) Get(id domain.RoomID) (RoomService, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	return room, ok
}

func (m *roomManager) List() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for id, r := range m.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: r.MemberCount()})
	}
	return out
}

// EvictIfEmpty deletes the room once membership hit zero. The room is
// marked closed under the manager lock so a racing Join on a stale
// reference fails and retries against a fresh room.
func (m *roomManager) EvictIfEmpty(id domain.RoomID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return false
	}
	if !room.markClosed() {
		return false
	}
	delete(m.rooms, id)
	log.Info().Str("module", "core.rooms").Str("room", string(id)).Msg("empty room evicted")
	return true
}
