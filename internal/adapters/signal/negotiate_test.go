package signal

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/linzo/meet/internal/app"
	"github.com/linzo/meet/internal/core"
	"github.com/linzo/meet/internal/domain"
)

type captureConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (c *captureConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *captureConn) Close() {}

func (c *captureConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

type captureSession struct {
	peer *domain.Peer
	conn *captureConn
}

func (s *captureSession) Meta() *domain.Peer            { return s.peer }
func (s *captureSession) Signal() core.SignalConnection { return s.conn }

func newTestController() *Controller {
	orch := &app.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    core.NewRoomManager(),
		Sink:     app.NopSink{},
	}
	return NewController(orch, 10, 10*time.Second)
}

func connect(ctl *Controller, id domain.PeerID) *captureConn {
	conn := &captureConn{}
	peer := ctl.Orch.Registry.GetOrCreatePeer(id)
	ctl.Orch.Registry.BindSignal(id, &captureSession{peer: peer, conn: conn}, nil)
	return conn
}

func TestNegotiationAttachesSenderAndStripsTarget(t *testing.T) {
	ctl := newTestController()
	connect(ctl, "alice")
	bobConn := connect(ctl, "bob")

	ctl.handleNegotiation("alice", "offer", []byte(`{"type":"offer","target":"bob","sdp":"v=0 fake"}`))

	if bobConn.count() != 1 {
		t.Fatalf("target got %d frames, want 1", bobConn.count())
	}
	var got map[string]any
	if err := json.Unmarshal(bobConn.frames[0], &got); err != nil {
		t.Fatalf("forwarded frame not valid JSON: %v", err)
	}
	if got["from"] != "alice" {
		t.Errorf("sender identity not attached, got %v", got["from"])
	}
	if _, ok := got["target"]; ok {
		t.Error("routing field must be stripped before delivery")
	}
	if got["sdp"] != "v=0 fake" {
		t.Errorf("payload must pass through verbatim, got %v", got["sdp"])
	}
	if got["type"] != "offer" {
		t.Errorf("type must pass through, got %v", got["type"])
	}
}

func TestNegotiationWithoutTargetDropped(t *testing.T) {
	ctl := newTestController()
	aliceConn := connect(ctl, "alice")
	bobConn := connect(ctl, "bob")

	ctl.handleNegotiation("alice", "candidate", []byte(`{"type":"candidate","candidate":"path"}`))

	if bobConn.count() != 0 || aliceConn.count() != 0 {
		t.Fatal("a message without a target must go nowhere, including back to the sender")
	}
}

func TestNegotiationToAbsentTargetSilentlyDropped(t *testing.T) {
	ctl := newTestController()
	aliceConn := connect(ctl, "alice")

	ctl.handleNegotiation("alice", "answer", []byte(`{"type":"answer","target":"ghost","sdp":"v=0"}`))

	if aliceConn.count() != 0 {
		t.Fatal("no error frame may flow back for an absent target")
	}
}

func TestNegotiationMalformedPayloadDropped(t *testing.T) {
	ctl := newTestController()
	aliceConn := connect(ctl, "alice")
	bobConn := connect(ctl, "bob")

	ctl.handleNegotiation("alice", "offer", []byte(`not json`))

	if bobConn.count() != 0 || aliceConn.count() != 0 {
		t.Fatal("malformed payloads must be dropped without a reply")
	}
}
