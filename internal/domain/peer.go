// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxDisplayNameLen = 36

var (
	ErrNameTooLong = errors.New("display name too long")
	ErrNameEmpty   = errors.New("display name empty")
)

// PeerID is the opaque connection identity assigned by the transport
// layer at connect time. It is stable for the lifetime of one physical
// connection and totally ordered by plain string comparison, which the
// negotiation tie-break relies on.
type PeerID string

type Peer struct {
	ID   PeerID `json:"id"`
	Name string `json:"name"`
}

// NewPeer builds a peer with a deterministic placeholder name derived
// from the identity. A real name can be set later via SetName.
func NewPeer(id PeerID) *Peer {
	return &Peer{ID: id, Name: PlaceholderName(id)}
}

func (p *Peer) SetName(name string) error {
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrNameTooLong
	}
	p.Name = name
	return nil
}

// PlaceholderName is used when a peer never supplied a display name.
func PlaceholderName(id PeerID) string {
	s := string(id)
	if len(s) > 8 {
		s = s[:8]
	}
	return "guest-" + s
}
