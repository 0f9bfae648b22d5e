// Package peerlink drives the client side of a negotiated peer
// connection: one state machine per remote participant, from the join
// notification through offer/answer and candidate exchange to an
// established link. A room with N participants runs N-1 independent
// instances on each client, yielding full-mesh connectivity.
package peerlink

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/linzo/meet/internal/domain"
)

// State of a single link.
type State int

const (
	StateIdle State = iota
	StateOffering
	StateAwaitingOffer
	StateNegotiating
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateAwaitingOffer:
		return "awaiting-offer"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// DefaultNegotiationTimeout bounds how long a link may sit half
// negotiated before it is abandoned.
const DefaultNegotiationTimeout = 30 * time.Second

// Initiates reports whether the local side creates the offer for a
// newly discovered pair. Identities are totally ordered; the lower one
// offers, the other waits. Both sides compute this locally from the
// join notification, so exactly one offer is produced per pair without
// any coordination message.
func Initiates(local, remote domain.PeerID) bool {
	return local < remote
}

// Negotiator is the media side of one link. The concrete
// implementation wraps a webrtc.PeerConnection; tests substitute a
// fake, so the state machine never depends on live ICE.
type Negotiator interface {
	CreateOffer(ctx context.Context) (sdp string, err error)
	AcceptOffer(sdp string) (answer string, err error)
	AcceptAnswer(sdp string) error
	AddRemoteCandidate(c webrtc.ICECandidateInit) error
	Close() error
}

// Callbacks fire from the negotiator's own goroutines.
type Callbacks struct {
	OnLocalCandidate func(webrtc.ICECandidateInit)
	OnConnected      func()
	OnFailed         func()
}

// NegotiatorFactory builds the media side for one remote peer.
type NegotiatorFactory func(remote domain.PeerID, cb Callbacks) (Negotiator, error)

// Sender carries outbound negotiation messages to the relay.
type Sender interface {
	SendOffer(to domain.PeerID, sdp string) error
	SendAnswer(to domain.PeerID, sdp string) error
	SendCandidate(to domain.PeerID, c webrtc.ICECandidateInit) error
}
