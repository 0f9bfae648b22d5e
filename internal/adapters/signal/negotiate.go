package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/linzo/meet/internal/domain"
)

// handleNegotiation forwards offer/answer/candidate messages. The
// payload is opaque to the relay: everything except the routing fields
// passes through verbatim, with the sender identity attached. Protocol
// errors (malformed payload, missing target) are logged and dropped
// without a reply; negotiation traffic is best-effort.
func (ctl *Controller) handleNegotiation(id domain.PeerID, kind string, data []byte) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("kind", kind).Msg("bad negotiation payload")
		return
	}

	var target domain.PeerID
	if raw, ok := fields["target"]; ok {
		_ = json.Unmarshal(raw, &target)
	}
	if target == "" {
		log.Warn().Str("module", "signal").Str("kind", kind).Str("from", string(id)).Msg("negotiation without target, dropped")
		return
	}
	delete(fields, "target")

	from, _ := json.Marshal(id)
	fields["from"] = from

	out, err := json.Marshal(fields)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("kind", kind).Msg("negotiation re-encode")
		return
	}

	ctl.Orch.Forward(id, target, out)
}
