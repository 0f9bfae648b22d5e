package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/linzo/meet/internal/domain"
)

func (ctl *Controller) handleRename(
	id domain.PeerID,
	conn *WsSignalConn,
	data []byte,
) {
	type renamePayload struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	var p renamePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad rename payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad_payload",
		})
		return
	}
	if err := ctl.Orch.Registry.UpdateName(id, p.Name); err != nil {
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "invalid_name",
		})
		return
	}

	log.Info().Str("module", "signal").Str("peer", string(id)).Str("name", p.Name).Msg("rename")
	ctl.handleWhoAmI(id, conn)

	peer := ctl.Orch.Registry.GetOrCreatePeer(id)
	out, _ := json.Marshal(struct {
		Type string        `json:"type"`
		ID   domain.PeerID `json:"id"`
		Name string        `json:"name"`
	}{"peer-updated", peer.ID, peer.Name})
	for _, roomID := range ctl.Orch.Registry.RoomsOf(id) {
		ctl.Orch.BroadcastRoom(id, roomID, out)
	}
}

func (ctl *Controller) handleWhoAmI(
	id domain.PeerID,
	conn *WsSignalConn,
) {
	peer := ctl.Orch.Registry.GetOrCreatePeer(id)
	ctl.sendJSON(conn, struct {
		Type  string          `json:"type"`
		ID    domain.PeerID   `json:"id"`
		Name  string          `json:"name"`
		Rooms []domain.RoomID `json:"rooms,omitempty"`
	}{
		Type:  "whoami",
		ID:    peer.ID,
		Name:  peer.Name,
		Rooms: ctl.Orch.Registry.RoomsOf(id),
	})
}
