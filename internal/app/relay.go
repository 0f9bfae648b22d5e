package app

import (
	"github.com/rs/zerolog/log"

	"github.com/linzo/meet/internal/core"
	"github.com/linzo/meet/internal/domain"
)

// Forward is the negotiation relay: blind, at-most-once delivery of an
// offer/answer/candidate frame to a currently-connected target. Nothing
// is stored, queued or retried; a stale negotiation message is
// meaningless once either side reconnects, so an absent target means a
// silent drop. The caller has already attached the sender identity.
func (o *Orchestrator) Forward(from, target domain.PeerID, data core.Frame) bool {
	sess, ok := o.Registry.GetSession(target)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("from", string(from)).Str("target", string(target)).Msg("target not connected, dropped")
		return false
	}
	if err := sess.Signal().TrySend(data); err != nil {
		log.Debug().Err(err).Str("module", "app.relay").Str("from", string(from)).Str("target", string(target)).Msg("delivery dropped")
		return false
	}
	return true
}
