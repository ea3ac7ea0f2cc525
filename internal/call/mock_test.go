package call

import (
	"context"
	"fmt"
	"sync"

	"github.com/khacquyetdang/matrix-call-engine/internal/peerconn"
)

// mockPeerConnection implements peerconn.PeerConnection for in-process
// testing, grounded on the teacher's tests/adapter_test.go mockTransport
// pattern: a hand-rolled fake of the narrow interface the engine drives,
// with Fire* hooks standing in for pion's own event callbacks.
type mockPeerConnection struct {
	mu sync.Mutex

	offerSDP  string
	answerSDP string

	localDesc  *peerconn.SessionDescription
	remoteDesc *peerconn.SessionDescription

	signalingState SignalingStateOverride
	gatheringState peerconn.GatheringState
	connState      peerconn.ConnectionState
	holdDirs       []peerconn.TransceiverDirection

	audioEnabled *bool
	videoEnabled *bool
	closed       bool

	onICECandidate      func(*peerconn.ICECandidate)
	onNegotiationNeeded func()
	onConnStateChange   func(peerconn.ConnectionState)
	onTrack             func(string)

	createOfferErr  error
	createAnswerErr error
	setLocalErr     error
	setRemoteErr    error
}

// SignalingStateOverride lets a test force SignalingState() independent of
// local/remote description bookkeeping, needed to simulate an offer
// collision (spec.md §4.2).
type SignalingStateOverride = peerconn.SignalingState

func newMockPeerConnection() *mockPeerConnection {
	return &mockPeerConnection{
		offerSDP:       "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\nm=audio 9 UDP/TLS/RTP/SAVPF 0\r\n",
		answerSDP:      "v=0\r\no=- 2 1 IN IP4 0.0.0.0\r\nm=audio 9 UDP/TLS/RTP/SAVPF 0\r\n",
		signalingState: peerconn.SignalingStable,
		gatheringState: peerconn.GatheringComplete,
	}
}

func (m *mockPeerConnection) CreateOffer() (peerconn.SessionDescription, error) {
	if m.createOfferErr != nil {
		return peerconn.SessionDescription{}, m.createOfferErr
	}
	return peerconn.SessionDescription{Type: peerconn.SDPTypeOffer, SDP: m.offerSDP}, nil
}

func (m *mockPeerConnection) CreateAnswer() (peerconn.SessionDescription, error) {
	if m.createAnswerErr != nil {
		return peerconn.SessionDescription{}, m.createAnswerErr
	}
	return peerconn.SessionDescription{Type: peerconn.SDPTypeAnswer, SDP: m.answerSDP}, nil
}

func (m *mockPeerConnection) SetLocalDescription(d peerconn.SessionDescription) error {
	if m.setLocalErr != nil {
		return m.setLocalErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.localDesc = &d
	return nil
}

func (m *mockPeerConnection) SetRemoteDescription(d peerconn.SessionDescription) error {
	if m.setRemoteErr != nil {
		return m.setRemoteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remoteDesc = &d
	return nil
}

func (m *mockPeerConnection) AddICECandidate(peerconn.ICECandidateInit) error { return nil }

func (m *mockPeerConnection) OnICECandidate(fn func(*peerconn.ICECandidate)) {
	m.onICECandidate = fn
}
func (m *mockPeerConnection) OnNegotiationNeeded(fn func()) { m.onNegotiationNeeded = fn }
func (m *mockPeerConnection) OnConnectionStateChange(fn func(peerconn.ConnectionState)) {
	m.onConnStateChange = fn
}
func (m *mockPeerConnection) OnTrack(fn func(string)) { m.onTrack = fn }

func (m *mockPeerConnection) SignalingState() peerconn.SignalingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signalingState
}
func (m *mockPeerConnection) ICEGatheringState() peerconn.GatheringState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gatheringState
}
func (m *mockPeerConnection) ConnectionState() peerconn.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connState
}

func (m *mockPeerConnection) LocalHoldDirections() []peerconn.TransceiverDirection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holdDirs
}

func (m *mockPeerConnection) SetTrackEnabled(_, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audioEnabled = &enabled
}
func (m *mockPeerConnection) SetTrackEnabledVideo(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videoEnabled = &enabled
}

func (m *mockPeerConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockPeerConnection) audioGate() *bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioEnabled
}
func (m *mockPeerConnection) videoGate() *bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videoEnabled
}

// fireNegotiationNeeded and friends simulate pion invoking the callbacks the
// engine registered in wirePeerConnection.
func (m *mockPeerConnection) fireNegotiationNeeded() {
	if m.onNegotiationNeeded != nil {
		m.onNegotiationNeeded()
	}
}
func (m *mockPeerConnection) fireConnectionStateChange(s peerconn.ConnectionState) {
	if m.onConnStateChange != nil {
		m.onConnStateChange(s)
	}
}

var _ peerconn.PeerConnection = (*mockPeerConnection)(nil)

// mockTransport implements transport.SignalingTransport for in-process
// testing, recording every envelope sent so tests can assert on wire
// traffic without a real network.
type mockTransport struct {
	mu        sync.Mutex
	sent      []Envelope
	sendErr   error
	failCount int // when > 0, Send returns sendErr and decrements this; at 0, Send succeeds
	attempts  int
	canceled  []MessageType
}

func newMockTransport() *mockTransport { return &mockTransport{} }

func (t *mockTransport) Send(_ context.Context, _, _ string, env Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts++
	if t.failCount > 0 {
		t.failCount--
		return t.sendErr
	}
	t.sent = append(t.sent, env)
	return nil
}

func (t *mockTransport) attemptCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

func (t *mockTransport) CancelPending(_ string, msgType MessageType) {
	t.mu.Lock()
	t.canceled = append(t.canceled, msgType)
	t.mu.Unlock()
}

func (t *mockTransport) IsUnknownDevicesError(error) bool { return false }

func (t *mockTransport) sentOfType(mt MessageType) []Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Envelope
	for _, e := range t.sent {
		if e.Type == mt {
			out = append(out, e)
		}
	}
	return out
}

// mockListener records every event a Call emits, for assertions.
type mockListener struct {
	mu       sync.Mutex
	states   []State
	errors   []*CallError
	hangups  int
	holds    []bool
	replaced []*Call
}

func (l *mockListener) OnState(newState, _ State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, newState)
}
func (l *mockListener) OnHoldUnhold(nowOnHold bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holds = append(l.holds, nowOnHold)
}
func (l *mockListener) OnError(err *CallError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, err)
}
func (l *mockListener) OnHangup(*Call) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hangups++
}
func (l *mockListener) OnReplaced(newCall *Call) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.replaced = append(l.replaced, newCall)
}

func (l *mockListener) lastState() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.states) == 0 {
		return ""
	}
	return l.states[len(l.states)-1]
}

func (l *mockListener) hangupCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hangups
}

var _ Listener = (*mockListener)(nil)

// stubStream is a zero-track Stream for MediaAcquirer stand-ins.
type stubStream struct{}

func (stubStream) Tracks() []Track { return nil }

func alwaysAcquire(context.Context, MediaConstraints) (Stream, error) {
	return stubStream{}, nil
}

func failingAcquire(context.Context, MediaConstraints) (Stream, error) {
	return nil, fmt.Errorf("mock: no device available")
}

// newTestCall builds a Call wired to fresh mocks, returning all three so
// tests can both drive and inspect it.
func newTestCall(acquire MediaAcquirer) (*Call, *mockPeerConnection, *mockTransport, *mockListener) {
	pc := newMockPeerConnection()
	tr := newMockTransport()
	ln := &mockListener{}
	c := New(Options{
		RoomID:     "!room:example.org",
		OurPartyID: "party-a",
		Transport:  tr,
		PeerConn:   pc,
		Listener:   ln,
		Acquire:    acquire,
	})
	return c, pc, tr, ln
}
