package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/linzo/meet/internal/core"
	"github.com/linzo/meet/internal/domain"
)

func (ctl *Controller) peerJoinedFrame(id domain.PeerID) core.Frame {
	peer := ctl.Orch.Registry.GetOrCreatePeer(id)
	b, _ := json.Marshal(struct {
		Type string        `json:"type"`
		ID   domain.PeerID `json:"id"`
		Name string        `json:"name,omitempty"`
	}{"peer-joined", peer.ID, peer.Name})
	return b
}

func (ctl *Controller) peerLeftFrame(id domain.PeerID) core.Frame {
	b, _ := json.Marshal(struct {
		Type string        `json:"type"`
		ID   domain.PeerID `json:"id"`
	}{"peer-left", id})
	return b
}

func (ctl *Controller) handleJoin(
	id domain.PeerID,
	conn *WsSignalConn,
	data []byte,
) {
	type joinPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
		Name string `json:"name,omitempty"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad_payload",
		})
		return
	}
	roomID, err := domain.ParseRoomID(p.Room)
	if err != nil {
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "missing room",
		})
		return
	}

	if p.Name != "" {
		if err := ctl.Orch.Registry.UpdateName(id, p.Name); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("peer", string(id)).Msg("rename on join rejected")
		}
	}

	log.Info().Str("module", "signal").Str("peer", string(id)).Str("room", string(roomID)).Msg("join")
	existing, ok := ctl.Orch.Join(id, roomID, ctl.peerJoinedFrame(id))
	if !ok {
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "no session",
		})
		return
	}

	// The snapshot the joiner receives and the peer-joined fan-out were
	// taken in the same critical section; both sides of every new pair
	// can now run the offer tie-break locally.
	ctl.sendJSON(conn, struct {
		Type    string           `json:"type"`
		Room    domain.RoomID    `json:"room"`
		Members []core.MemberDTO `json:"members"`
		Count   int              `json:"count"`
	}{
		Type:    "room_state",
		Room:    roomID,
		Members: existing,
		Count:   len(existing) + 1,
	})
}

func (ctl *Controller) handleLeave(
	id domain.PeerID,
	conn *WsSignalConn,
	data []byte,
) {
	type leavePayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	var p leavePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad leave payload")
		return
	}
	roomID, err := domain.ParseRoomID(p.Room)
	if err != nil {
		return
	}

	log.Info().Str("module", "signal").Str("peer", string(id)).Str("room", string(roomID)).Msg("leave")
	ctl.Orch.Leave(id, roomID, ctl.peerLeftFrame(id))
	ctl.sendJSON(conn, struct {
		Type string        `json:"type"`
		Room domain.RoomID `json:"room"`
	}{"left", roomID})
}
