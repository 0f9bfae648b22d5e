package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/linzo/meet/internal/domain"
)

// handleTranscript fans a speech-recognition result out to every room
// the sender is in, with the sender identity and speaker name attached.
// Receivers run it through their own caption filter before display;
// the server side only rate-limits and relays.
func (ctl *Controller) handleTranscript(ctx context.Context, id domain.PeerID, data []byte) {
	type transcriptPayload struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	var p transcriptPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad transcript payload")
		return
	}
	if p.Text == "" {
		return
	}
	if !ctl.Transcripts.Allow(id) {
		log.Warn().Str("module", "signal").Str("peer", string(id)).Msg("transcript rate limit, dropped")
		return
	}

	peer := ctl.Orch.Registry.GetOrCreatePeer(id)
	out, _ := json.Marshal(struct {
		Type    string        `json:"type"`
		Text    string        `json:"text"`
		From    domain.PeerID `json:"from"`
		Speaker string        `json:"speaker,omitempty"`
	}{"transcript", p.Text, id, peer.Name})

	ctl.Orch.OnTranscript(ctx, id, peer.Name, p.Text, out)
}

func (ctl *Controller) handleChat(id domain.PeerID, data []byte) {
	type chatPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
		Text string `json:"text"`
	}
	var p chatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad chat payload")
		return
	}
	if p.Room == "" || p.Text == "" {
		return
	}

	peer := ctl.Orch.Registry.GetOrCreatePeer(id)
	out, _ := json.Marshal(struct {
		Type    string        `json:"type"`
		Text    string        `json:"text"`
		From    domain.PeerID `json:"from"`
		Speaker string        `json:"speaker,omitempty"`
	}{"chat", p.Text, id, peer.Name})

	ctl.Orch.BroadcastRoom(id, domain.RoomID(p.Room), out)
}

func (ctl *Controller) handleMediaState(id domain.PeerID, data []byte) {
	type mediaStatePayload struct {
		Type  string `json:"type"`
		Room  string `json:"room"`
		MicOn bool   `json:"mic_on"`
		CamOn bool   `json:"cam_on"`
	}
	var p mediaStatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad media_state payload")
		return
	}
	if p.Room == "" {
		return
	}

	out, _ := json.Marshal(struct {
		Type  string        `json:"type"`
		ID    domain.PeerID `json:"id"`
		MicOn bool          `json:"mic_on"`
		CamOn bool          `json:"cam_on"`
	}{"media_state", id, p.MicOn, p.CamOn})

	ctl.Orch.BroadcastRoom(id, domain.RoomID(p.Room), out)
}
