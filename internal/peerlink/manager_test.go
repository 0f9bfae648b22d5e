package peerlink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/linzo/meet/internal/domain"
)

type fakeNegotiator struct {
	mu         sync.Mutex
	remote     domain.PeerID
	cb         Callbacks
	offered    bool
	answered   bool
	accepted   bool
	candidates []webrtc.ICECandidateInit
	closed     bool
}

func (n *fakeNegotiator) CreateOffer(ctx context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offered = true
	return "offer-from-" + string(n.remote), nil
}

func (n *fakeNegotiator) AcceptOffer(sdp string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.answered = true
	return "answer-to-" + sdp, nil
}

func (n *fakeNegotiator) AcceptAnswer(sdp string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accepted = true
	return nil
}

func (n *fakeNegotiator) AddRemoteCandidate(c webrtc.ICECandidateInit) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.candidates = append(n.candidates, c)
	return nil
}

func (n *fakeNegotiator) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	return nil
}

func (n *fakeNegotiator) isClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

type fakeFactory struct {
	mu    sync.Mutex
	built []*fakeNegotiator
}

func (f *fakeFactory) new(remote domain.PeerID, cb Callbacks) (Negotiator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := &fakeNegotiator{remote: remote, cb: cb}
	f.built = append(f.built, n)
	return n, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built)
}

func (f *fakeFactory) last() *fakeNegotiator {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.built) == 0 {
		return nil
	}
	return f.built[len(f.built)-1]
}

type sentSignal struct {
	kind string
	to   domain.PeerID
	sdp  string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentSignal
}

func (s *fakeSender) SendOffer(to domain.PeerID, sdp string) error {
	return s.record("offer", to, sdp)
}

func (s *fakeSender) SendAnswer(to domain.PeerID, sdp string) error {
	return s.record("answer", to, sdp)
}

func (s *fakeSender) SendCandidate(to domain.PeerID, c webrtc.ICECandidateInit) error {
	return s.record("candidate", to, c.Candidate)
}

func (s *fakeSender) record(kind string, to domain.PeerID, sdp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentSignal{kind, to, sdp})
	return nil
}

func (s *fakeSender) countKind(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.sent {
		if m.kind == kind {
			n++
		}
	}
	return n
}

func newTestManager(local domain.PeerID) (*Manager, *fakeFactory, *fakeSender) {
	f := &fakeFactory{}
	s := &fakeSender{}
	return NewManager(local, f.new, s, time.Minute), f, s
}

func TestInitiatesIsTotalOrder(t *testing.T) {
	if !Initiates("alice", "bob") {
		t.Error("alice sorts lower and must initiate")
	}
	if Initiates("bob", "alice") {
		t.Error("bob sorts higher and must wait")
	}
}

func TestLowerIdentityOffers(t *testing.T) {
	m, _, s := newTestManager("alice")
	m.HandlePeerJoined("bob")

	if got := m.State("bob"); got != StateNegotiating {
		t.Fatalf("expected negotiating after sending offer, got %s", got)
	}
	if s.countKind("offer") != 1 {
		t.Errorf("expected exactly 1 offer, got %d", s.countKind("offer"))
	}
}

func TestHigherIdentityAwaitsOffer(t *testing.T) {
	m, _, s := newTestManager("bob")
	m.HandlePeerJoined("alice")

	if got := m.State("alice"); got != StateAwaitingOffer {
		t.Fatalf("expected awaiting-offer, got %s", got)
	}
	if s.countKind("offer") != 0 {
		t.Errorf("higher identity must not offer, got %d offers", s.countKind("offer"))
	}
}

// Both sides learn of each other at once; exactly one offer must come
// out of the pair.
func TestExactlyOneOfferPerPair(t *testing.T) {
	alice, _, aliceSender := newTestManager("alice")
	bob, _, bobSender := newTestManager("bob")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); alice.HandlePeerJoined("bob") }()
	go func() { defer wg.Done(); bob.HandlePeerJoined("alice") }()
	wg.Wait()

	total := aliceSender.countKind("offer") + bobSender.countKind("offer")
	if total != 1 {
		t.Fatalf("expected exactly 1 offer across the pair, got %d", total)
	}
	if aliceSender.countKind("offer") != 1 {
		t.Error("the offer must come from the lower identity")
	}
}

func TestDuplicatePeerJoinedIsNoOp(t *testing.T) {
	m, f, s := newTestManager("alice")
	m.HandlePeerJoined("bob")
	m.HandlePeerJoined("bob")

	if f.count() != 1 {
		t.Errorf("duplicate notification must not build a second link, got %d", f.count())
	}
	if s.countKind("offer") != 1 {
		t.Errorf("duplicate notification must not re-offer, got %d", s.countKind("offer"))
	}
}

func TestOfferProducesAnswer(t *testing.T) {
	m, f, s := newTestManager("bob")
	m.HandlePeerJoined("alice")
	m.HandleOffer("alice", "offer-sdp")

	if got := m.State("alice"); got != StateNegotiating {
		t.Fatalf("expected negotiating after answering, got %s", got)
	}
	if s.countKind("answer") != 1 {
		t.Errorf("expected 1 answer, got %d", s.countKind("answer"))
	}
	if !f.last().answered {
		t.Error("negotiator never saw the offer")
	}
}

// The relay and the presence fan-out race: an offer may arrive before
// the peer-joined notification.
func TestOfferBeforeJoinNotification(t *testing.T) {
	m, _, s := newTestManager("bob")
	m.HandleOffer("alice", "offer-sdp")

	if got := m.State("alice"); got != StateNegotiating {
		t.Fatalf("expected negotiating, got %s", got)
	}
	if s.countKind("answer") != 1 {
		t.Errorf("expected 1 answer, got %d", s.countKind("answer"))
	}
}

func TestAnswerThenConnected(t *testing.T) {
	m, f, _ := newTestManager("alice")
	m.HandlePeerJoined("bob")
	m.HandleAnswer("bob", "answer-sdp")

	neg := f.last()
	if !neg.accepted {
		t.Fatal("negotiator never saw the answer")
	}

	neg.cb.OnConnected()
	if got := m.State("bob"); got != StateConnected {
		t.Fatalf("expected connected, got %s", got)
	}
}

func TestCandidatesFlowBothWays(t *testing.T) {
	m, f, s := newTestManager("alice")
	m.HandlePeerJoined("bob")

	neg := f.last()
	neg.cb.OnLocalCandidate(webrtc.ICECandidateInit{Candidate: "local-path"})
	if s.countKind("candidate") != 1 {
		t.Errorf("local candidate must be sent, got %d", s.countKind("candidate"))
	}

	m.HandleCandidate("bob", webrtc.ICECandidateInit{Candidate: "remote-path"})
	if len(neg.candidates) != 1 || neg.candidates[0].Candidate != "remote-path" {
		t.Errorf("remote candidate must reach the negotiator, got %v", neg.candidates)
	}
}

func TestPeerLeftClosesAndRejoinStartsFresh(t *testing.T) {
	m, f, _ := newTestManager("alice")
	m.HandlePeerJoined("bob")
	first := f.last()

	m.HandlePeerLeft("bob")
	if !first.isClosed() {
		t.Fatal("negotiator must be closed on peer-left")
	}
	if got := m.State("bob"); got != StateIdle {
		t.Fatalf("forgotten link must read idle, got %s", got)
	}

	m.HandlePeerJoined("bob")
	if f.count() != 2 {
		t.Fatal("rejoin must build a fresh link, not reuse the closed one")
	}
	if got := m.State("bob"); got != StateNegotiating {
		t.Fatalf("fresh link must negotiate again, got %s", got)
	}
}

func TestCloseTearsDownEverything(t *testing.T) {
	m, f, _ := newTestManager("alice")
	m.HandlePeerJoined("bob")
	m.HandlePeerJoined("carol")
	m.Close()

	if f.count() != 2 {
		t.Fatalf("expected 2 links, got %d", f.count())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.built {
		if !n.closed {
			t.Errorf("link to %s not closed", n.remote)
		}
	}
}

func TestNegotiationTimeout(t *testing.T) {
	f := &fakeFactory{}
	s := &fakeSender{}
	m := NewManager("bob", f.new, s, 20*time.Millisecond)

	var mu sync.Mutex
	var states []State
	m.OnState = func(_ domain.PeerID, st State) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	}

	m.HandlePeerJoined("carol")
	time.Sleep(100 * time.Millisecond)

	if got := m.State("carol"); got != StateClosed {
		t.Fatalf("half-negotiated link must be abandoned, got %s", got)
	}
	if !f.last().isClosed() {
		t.Error("negotiator must be closed on timeout")
	}

	mu.Lock()
	defer mu.Unlock()
	last := states[len(states)-1]
	if last != StateClosed {
		t.Errorf("expected terminal closed transition, got %s", last)
	}
}

func TestConnectedLinkSurvivesTimeout(t *testing.T) {
	f := &fakeFactory{}
	s := &fakeSender{}
	m := NewManager("alice", f.new, s, 20*time.Millisecond)

	m.HandlePeerJoined("bob")
	f.last().cb.OnConnected()
	time.Sleep(100 * time.Millisecond)

	if got := m.State("bob"); got != StateConnected {
		t.Fatalf("connected link must not be timed out, got %s", got)
	}
}

// A link abandoned by the timeout stays tracked in its terminal state;
// a later offer for the same peer must build a fresh link, not touch
// the dead one.
func TestOfferAfterTimedOutLinkStartsFresh(t *testing.T) {
	f := &fakeFactory{}
	s := &fakeSender{}
	m := NewManager("bob", f.new, s, 20*time.Millisecond)

	m.HandlePeerJoined("alice")
	time.Sleep(100 * time.Millisecond)
	if got := m.State("alice"); got != StateClosed {
		t.Fatalf("expected the first link to be abandoned, got %s", got)
	}

	m.HandleOffer("alice", "offer-sdp")
	if f.count() != 2 {
		t.Fatalf("offer after teardown must build a fresh link, got %d", f.count())
	}
	if got := m.State("alice"); got != StateNegotiating {
		t.Fatalf("expected negotiating on the fresh link, got %s", got)
	}
	if s.countKind("answer") != 1 {
		t.Errorf("expected 1 answer, got %d", s.countKind("answer"))
	}
}

func TestAnswerWithoutPendingOfferDropped(t *testing.T) {
	m, f, _ := newTestManager("bob")
	m.HandlePeerJoined("alice") // awaiting-offer, never offered
	m.HandleAnswer("alice", "bogus")

	if f.last().accepted {
		t.Error("answer in awaiting-offer state must be dropped")
	}
	if got := m.State("alice"); got != StateAwaitingOffer {
		t.Errorf("state must be unchanged, got %s", got)
	}
}
