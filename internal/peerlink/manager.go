package peerlink

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/linzo/meet/internal/domain"
)

type link struct {
	remote domain.PeerID
	state  State
	neg    Negotiator
	timer  *time.Timer
}

// Manager owns the links of one local participant. All handler methods
// are safe for concurrent use; negotiator I/O happens outside the lock.
type Manager struct {
	local   domain.PeerID
	timeout time.Duration
	factory NegotiatorFactory
	sender  Sender

	mu    sync.Mutex
	links map[domain.PeerID]*link

	// OnState, when set, observes every transition. Called outside the
	// manager lock.
	OnState func(remote domain.PeerID, s State)
}

func NewManager(local domain.PeerID, factory NegotiatorFactory, sender Sender, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultNegotiationTimeout
	}
	return &Manager{
		local:   local,
		timeout: timeout,
		factory: factory,
		sender:  sender,
		links:   make(map[domain.PeerID]*link),
	}
}

// State reports the current state for a remote, StateIdle if untracked.
func (m *Manager) State(remote domain.PeerID) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.links[remote]; ok {
		return l.state
	}
	return StateIdle
}

// HandlePeerJoined reacts to a peer-joined notification. A live link
// for the same identity means a duplicate notification: ignored, never
// recreated. A closed link is replaced by a fresh instance.
func (m *Manager) HandlePeerJoined(remote domain.PeerID) {
	m.mu.Lock()
	if l, ok := m.links[remote]; ok && l.state != StateClosed {
		m.mu.Unlock()
		log.Debug().Str("module", "peerlink").Str("remote", string(remote)).Msg("duplicate peer-joined ignored")
		return
	}
	l := &link{remote: remote, state: StateIdle}
	m.links[remote] = l
	m.mu.Unlock()

	neg, err := m.factory(remote, Callbacks{
		OnLocalCandidate: func(c webrtc.ICECandidateInit) {
			if err := m.sender.SendCandidate(remote, c); err != nil {
				log.Warn().Err(err).Str("module", "peerlink").Str("remote", string(remote)).Msg("send candidate")
			}
		},
		OnConnected: func() { m.markConnected(remote, l) },
		OnFailed:    func() { m.closeLink(remote, l) },
	})
	if err != nil {
		log.Error().Err(err).Str("module", "peerlink").Str("remote", string(remote)).Msg("negotiator setup failed")
		m.closeLink(remote, l)
		return
	}

	m.mu.Lock()
	if m.links[remote] != l || l.state == StateClosed {
		m.mu.Unlock()
		_ = neg.Close()
		return
	}
	l.neg = neg
	offering := Initiates(m.local, remote)
	if offering {
		l.state = StateOffering
	} else {
		l.state = StateAwaitingOffer
	}
	l.timer = time.AfterFunc(m.timeout, func() { m.onTimeout(remote, l) })
	st := l.state
	m.mu.Unlock()
	m.notify(remote, st)

	if !offering {
		return
	}

	sdp, err := neg.CreateOffer(context.Background())
	if err != nil {
		log.Error().Err(err).Str("module", "peerlink").Str("remote", string(remote)).Msg("create offer failed")
		m.closeLink(remote, l)
		return
	}
	if err := m.sender.SendOffer(remote, sdp); err != nil {
		log.Warn().Err(err).Str("module", "peerlink").Str("remote", string(remote)).Msg("send offer")
	}
	m.transition(remote, l, StateOffering, StateNegotiating)
}

// HandleOffer answers an incoming offer. An offer may precede the
// peer-joined notification (relay and presence race); in that case the
// link is created on the spot.
func (m *Manager) HandleOffer(from domain.PeerID, sdp string) {
	m.mu.Lock()
	l, ok := m.links[from]
	stale := !ok || l.state == StateClosed
	m.mu.Unlock()

	if stale {
		m.HandlePeerJoined(from)
		m.mu.Lock()
		l, ok = m.links[from]
		m.mu.Unlock()
		if !ok {
			return
		}
	}

	m.mu.Lock()
	if l.state != StateAwaitingOffer || l.neg == nil {
		st := l.state
		m.mu.Unlock()
		log.Warn().Str("module", "peerlink").Str("remote", string(from)).Str("state", st.String()).Msg("offer in unexpected state, dropped")
		return
	}
	neg := l.neg
	m.mu.Unlock()

	answer, err := neg.AcceptOffer(sdp)
	if err != nil {
		log.Error().Err(err).Str("module", "peerlink").Str("remote", string(from)).Msg("accept offer failed")
		m.closeLink(from, l)
		return
	}
	if err := m.sender.SendAnswer(from, answer); err != nil {
		log.Warn().Err(err).Str("module", "peerlink").Str("remote", string(from)).Msg("send answer")
	}
	m.transition(from, l, StateAwaitingOffer, StateNegotiating)
}

func (m *Manager) HandleAnswer(from domain.PeerID, sdp string) {
	m.mu.Lock()
	l, ok := m.links[from]
	if !ok || l.state != StateNegotiating || l.neg == nil {
		m.mu.Unlock()
		log.Warn().Str("module", "peerlink").Str("remote", string(from)).Msg("answer without pending offer, dropped")
		return
	}
	neg := l.neg
	m.mu.Unlock()

	if err := neg.AcceptAnswer(sdp); err != nil {
		log.Error().Err(err).Str("module", "peerlink").Str("remote", string(from)).Msg("accept answer failed")
		m.closeLink(from, l)
	}
}

// HandleCandidate feeds a remote ICE candidate into the link. Failures
// are logged and swallowed: a missed candidate is one fewer path tried.
func (m *Manager) HandleCandidate(from domain.PeerID, c webrtc.ICECandidateInit) {
	m.mu.Lock()
	l, ok := m.links[from]
	if !ok || l.neg == nil || l.state == StateClosed {
		m.mu.Unlock()
		return
	}
	neg := l.neg
	m.mu.Unlock()

	if err := neg.AddRemoteCandidate(c); err != nil {
		log.Debug().Err(err).Str("module", "peerlink").Str("remote", string(from)).Msg("add candidate")
	}
}

// HandlePeerLeft closes and forgets the link. A future rejoin starts a
// fresh instance.
func (m *Manager) HandlePeerLeft(remote domain.PeerID) {
	m.mu.Lock()
	l, ok := m.links[remote]
	if ok {
		delete(m.links, remote)
	}
	m.mu.Unlock()
	if ok {
		m.closeLink(remote, l)
	}
}

// Close tears down every link, e.g. on local leave or transport loss.
func (m *Manager) Close() {
	m.mu.Lock()
	links := make(map[domain.PeerID]*link, len(m.links))
	for id, l := range m.links {
		links[id] = l
	}
	m.links = make(map[domain.PeerID]*link)
	m.mu.Unlock()
	for id, l := range links {
		m.closeLink(id, l)
	}
}

func (m *Manager) markConnected(remote domain.PeerID, l *link) {
	m.mu.Lock()
	if l.state == StateClosed || l.state == StateConnected {
		m.mu.Unlock()
		return
	}
	l.state = StateConnected
	if l.timer != nil {
		l.timer.Stop()
	}
	m.mu.Unlock()
	log.Info().Str("module", "peerlink").Str("remote", string(remote)).Msg("link connected")
	m.notify(remote, StateConnected)
}

// closeLink is terminal: it releases all negotiation state for the pair.
func (m *Manager) closeLink(remote domain.PeerID, l *link) {
	m.mu.Lock()
	if l.state == StateClosed {
		m.mu.Unlock()
		return
	}
	l.state = StateClosed
	if l.timer != nil {
		l.timer.Stop()
	}
	neg := l.neg
	l.neg = nil
	m.mu.Unlock()

	if neg != nil {
		_ = neg.Close()
	}
	log.Info().Str("module", "peerlink").Str("remote", string(remote)).Msg("link closed")
	m.notify(remote, StateClosed)
}

func (m *Manager) onTimeout(remote domain.PeerID, l *link) {
	m.mu.Lock()
	stale := m.links[remote] != l
	st := l.state
	m.mu.Unlock()
	if stale || st == StateConnected || st == StateClosed {
		return
	}
	log.Warn().Str("module", "peerlink").Str("remote", string(remote)).Str("state", st.String()).Msg("negotiation timeout, abandoning link")
	m.closeLink(remote, l)
}

func (m *Manager) transition(remote domain.PeerID, l *link, from, to State) {
	m.mu.Lock()
	if l.state != from {
		m.mu.Unlock()
		return
	}
	l.state = to
	m.mu.Unlock()
	m.notify(remote, to)
}

func (m *Manager) notify(remote domain.PeerID, s State) {
	if m.OnState != nil {
		m.OnState(remote, s)
	}
}
