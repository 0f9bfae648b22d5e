package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/linzo/meet/internal/core"
	"github.com/linzo/meet/internal/domain"
)

// Orchestrator coordinates membership, presence fan-out and transcript
// broadcast. It never touches transport resources directly; adapters
// own those and hand in pre-encoded frames.
type Orchestrator struct {
	Registry *Registry
	Rooms    core.RoomManager
	Policy   Policy
	Sink     TranscriptSink
}

// Join registers the peer in the room and returns the members that were
// present before it, computed atomically with the joined notification.
// The retry loop covers the narrow window where a racing disconnect
// evicted the room between lookup and join.
func (o *Orchestrator) Join(id domain.PeerID, roomID domain.RoomID, joined core.Frame) ([]core.MemberDTO, bool) {
	sess, ok := o.Registry.GetSession(id)
	if !ok {
		log.Warn().Str("module", "app.orch").Str("peer", string(id)).Msg("join without bound session")
		return nil, false
	}
	for {
		room := o.Rooms.GetOrCreate(roomID)
		existing, ok := room.Join(id, sess, joined)
		if !ok {
			continue
		}
		o.Registry.AddRoom(id, roomID)
		log.Info().Str("module", "app.orch").Str("peer", string(id)).Str("room", string(roomID)).Msg("joined room")
		return existing, true
	}
}

// Leave removes the peer, tells the remaining members and evicts the
// room once it is empty. Leaving a room one never joined is a no-op.
func (o *Orchestrator) Leave(id domain.PeerID, roomID domain.RoomID, left core.Frame) bool {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return false
	}
	if !room.Has(id) {
		return false
	}
	remaining := room.Remove(id)
	o.Registry.RemoveRoom(id, roomID)
	if remaining == 0 {
		o.Rooms.EvictIfEmpty(roomID)
	} else {
		o.handleDropped(roomID, room.Broadcast(id, left))
	}
	log.Info().Str("module", "app.orch").Str("peer", string(id)).Str("room", string(roomID)).Msg("left room")
	return true
}

// Disconnect is the transport-level cleanup path: abrupt loss must be
// equivalent to an explicit leave of every joined room.
func (o *Orchestrator) Disconnect(id domain.PeerID, left core.Frame) {
	for _, roomID := range o.Registry.RoomsOf(id) {
		o.Leave(id, roomID, left)
	}
	o.Registry.Unbind(id)
	log.Info().Str("module", "app.orch").Str("peer", string(id)).Msg("disconnected")
}

// BroadcastRoom fans a frame out to the other members of one room the
// sender belongs to.
func (o *Orchestrator) BroadcastRoom(from domain.PeerID, roomID domain.RoomID, data core.Frame) bool {
	if !o.Registry.InRoom(from, roomID) {
		return false
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return false
	}
	o.handleDropped(roomID, room.Broadcast(from, data))
	return true
}

// OnTranscript fans an accepted transcript out to every room the sender
// is in and hands it to the persistence observer. The observer has no
// write access back into session state; its errors are only logged.
func (o *Orchestrator) OnTranscript(ctx context.Context, from domain.PeerID, speaker, text string, data core.Frame) int {
	rooms := o.Registry.RoomsOf(from)
	for _, roomID := range rooms {
		room, ok := o.Rooms.Get(roomID)
		if !ok {
			continue
		}
		o.handleDropped(roomID, room.Broadcast(from, data))
		if o.Sink != nil {
			if err := o.Sink.Record(ctx, roomID, from, speaker, text); err != nil {
				log.Warn().Err(err).Str("module", "app.orch").Str("room", string(roomID)).Msg("transcript sink record")
			}
		}
	}
	return len(rooms)
}

func (o *Orchestrator) handleDropped(roomID domain.RoomID, res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(roomID, slow) {
		case KickMember:
			// Cancel tears the pumps down; the read loop's disconnect
			// path then performs the full membership cleanup.
			o.Registry.Cancel(slow.Meta().ID)
		case MarkSlow, DropFrame, NoAction:
		}
	}
}
