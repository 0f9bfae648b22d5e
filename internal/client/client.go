// Package client is the reference client for the signaling server: it
// joins a room, runs one peer link state machine per remote participant
// and filters captions before display and broadcast.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/linzo/meet/internal/captions"
	"github.com/linzo/meet/internal/domain"
	"github.com/linzo/meet/internal/peerlink"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

type Options struct {
	ServerURL          string
	Room               domain.RoomID
	Name               string
	DedupWindow        time.Duration
	NegotiationTimeout time.Duration
	Factory            peerlink.NegotiatorFactory

	// OnCaption receives accepted (non-duplicate) captions.
	OnCaption func(speaker, text string)
}

// Client ties the websocket signaling transport to the peer link
// manager and the caption filter.
type Client struct {
	opts     Options
	conn     *websocket.Conn
	outgoing chan []byte

	self   domain.PeerID
	links  *peerlink.Manager
	filter *captions.Filter
}

func New(opts Options) *Client {
	return &Client{
		opts:     opts,
		outgoing: make(chan []byte, 32),
		filter:   captions.NewFilter(opts.DedupWindow),
	}
}

// Self reports the identity the server issued, empty before Connect.
func (c *Client) Self() domain.PeerID { return c.self }

// Connect dials the server, learns its own identity and joins the room.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.opts.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)

	go c.writePump(ctx)

	// The identity comes back on whoami before anything else; the link
	// manager needs it for the offer tie-break.
	if err := c.sendJSON(map[string]any{"type": "whoami"}); err != nil {
		return err
	}
	self, err := c.awaitWhoAmI()
	if err != nil {
		return err
	}
	c.self = self
	c.links = peerlink.NewManager(self, c.opts.Factory, sender{c}, c.opts.NegotiationTimeout)

	join := map[string]any{"type": "join", "room": string(c.opts.Room)}
	if c.opts.Name != "" {
		join["name"] = c.opts.Name
	}
	return c.sendJSON(join)
}

// Run processes inbound signaling until the context ends or the
// connection drops. It always tears every link down on the way out.
func (c *Client) Run(ctx context.Context) error {
	defer c.close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(data)
	}
}

// Say runs a local speech-recognition result through the caption
// filter; accepted text is displayed and broadcast to the room.
func (c *Client) Say(text string) {
	if !c.filter.Observe(text, domain.SourceLocal) {
		log.Debug().Str("module", "client").Str("text", text).Msg("local caption suppressed as echo")
		return
	}
	if c.opts.OnCaption != nil {
		c.opts.OnCaption("you", text)
	}
	_ = c.sendJSON(map[string]any{"type": "transcript", "text": text})
}

func (c *Client) dispatch(data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad json")
		return
	}

	switch env.Type {
	case "room_state":
		var p struct {
			Members []struct {
				ID domain.PeerID `json:"id"`
			} `json:"members"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		for _, m := range p.Members {
			c.links.HandlePeerJoined(m.ID)
		}
	case "peer-joined":
		var p struct {
			ID domain.PeerID `json:"id"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		c.links.HandlePeerJoined(p.ID)
	case "peer-left":
		var p struct {
			ID domain.PeerID `json:"id"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		c.links.HandlePeerLeft(p.ID)
	case "offer":
		var p struct {
			From domain.PeerID `json:"from"`
			SDP  string        `json:"sdp"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		c.links.HandleOffer(p.From, p.SDP)
	case "answer":
		var p struct {
			From domain.PeerID `json:"from"`
			SDP  string        `json:"sdp"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		c.links.HandleAnswer(p.From, p.SDP)
	case "candidate":
		var p struct {
			From          domain.PeerID `json:"from"`
			Candidate     string        `json:"candidate"`
			SDPMid        *string       `json:"sdpMid,omitempty"`
			SDPMLineIndex *uint16       `json:"sdpMLineIndex,omitempty"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		c.links.HandleCandidate(p.From, webrtc.ICECandidateInit{
			Candidate:     p.Candidate,
			SDPMid:        p.SDPMid,
			SDPMLineIndex: p.SDPMLineIndex,
		})
	case "transcript":
		var p struct {
			From    domain.PeerID `json:"from"`
			Speaker string        `json:"speaker"`
			Text    string        `json:"text"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		if p.From == c.self || p.Text == "" {
			return
		}
		if !c.filter.Observe(p.Text, domain.SourceRemote) {
			log.Debug().Str("module", "client").Str("text", p.Text).Msg("remote caption suppressed as echo")
			return
		}
		if c.opts.OnCaption != nil {
			c.opts.OnCaption(p.Speaker, p.Text)
		}
	case "left", "pong", "whoami", "peer-updated", "media_state", "chat", "error":
		// No link-manager reaction needed.
	default:
		log.Debug().Str("module", "client").Str("type", env.Type).Msg("unhandled signal")
	}
}

func (c *Client) awaitWhoAmI() (domain.PeerID, error) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		var p struct {
			Type string        `json:"type"`
			ID   domain.PeerID `json:"id"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		if p.Type == "whoami" && p.ID != "" {
			return p.ID, nil
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.outgoing:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "client").Msg("write error")
				return
			}
		}
	}
}

func (c *Client) sendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case c.outgoing <- b:
		return nil
	default:
		return fmt.Errorf("outgoing buffer full")
	}
}

func (c *Client) close() {
	if c.links != nil {
		c.links.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// sender adapts the client to peerlink.Sender.
type sender struct{ c *Client }

func (s sender) SendOffer(to domain.PeerID, sdp string) error {
	return s.c.sendJSON(map[string]any{"type": "offer", "target": string(to), "sdp": sdp})
}

func (s sender) SendAnswer(to domain.PeerID, sdp string) error {
	return s.c.sendJSON(map[string]any{"type": "answer", "target": string(to), "sdp": sdp})
}

func (s sender) SendCandidate(to domain.PeerID, ci webrtc.ICECandidateInit) error {
	out := map[string]any{"type": "candidate", "target": string(to), "candidate": ci.Candidate}
	if ci.SDPMid != nil {
		out["sdpMid"] = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		out["sdpMLineIndex"] = *ci.SDPMLineIndex
	}
	return s.c.sendJSON(out)
}
