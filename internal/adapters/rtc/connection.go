package rtc

import (
	"context"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/linzo/meet/internal/domain"
	"github.com/linzo/meet/internal/peerlink"
)

// Connection wraps a pion PeerConnection behind peerlink.Negotiator.
// Candidates trickle out through the callback as they are gathered.
type Connection struct {
	pc     *webrtc.PeerConnection
	remote domain.PeerID
}

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// NewConnection is a peerlink.NegotiatorFactory when partially applied
// with a configuration, see Factory.
func NewConnection(cfg webrtc.Configuration, remote domain.PeerID, cb peerlink.Callbacks) (*Connection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	c := &Connection{pc: pc, remote: remote}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && cb.OnLocalCandidate != nil {
			cb.OnLocalCandidate(cand.ToJSON())
		}
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("remote", string(remote)).Str("peer_connection_state", s.String()).Msg("peer state")
		switch s {
		case webrtc.PeerConnectionStateConnected:
			if cb.OnConnected != nil {
				cb.OnConnected()
			}
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			if cb.OnFailed != nil {
				cb.OnFailed()
			}
		}
	})

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Debug().Str("module", "rtc").Str("remote", string(remote)).Str("ice_state", s.String()).Msg("ICE state")
	})

	return c, nil
}

// Factory adapts NewConnection to peerlink.NegotiatorFactory.
func Factory(cfg webrtc.Configuration) peerlink.NegotiatorFactory {
	return func(remote domain.PeerID, cb peerlink.Callbacks) (peerlink.Negotiator, error) {
		return NewConnection(cfg, remote, cb)
	}
}

func (c *Connection) CreateOffer(ctx context.Context) (string, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return "", err
	}
	return offer.SDP, nil
}

func (c *Connection) AcceptOffer(sdp string) (string, error) {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return "", err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	return answer.SDP, nil
}

func (c *Connection) AcceptAnswer(sdp string) error {
	return c.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	})
}

func (c *Connection) AddRemoteCandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *Connection) Close() error {
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("remote", string(c.remote)).Msg("close error")
		return err
	}
	log.Info().Str("module", "rtc").Str("remote", string(c.remote)).Msg("closed")
	return nil
}
