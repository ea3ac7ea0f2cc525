// Package peerconn is the capability boundary to the WebRTC stack described
// in spec.md §2: create/set descriptions, add remote candidates, surface
// local candidates, surface connection-state changes. The call engine in
// internal/call depends only on the PeerConnection interface; this package
// supplies the one real implementation, backed by pion/webrtc/v4, adapted
// from the teacher's internal/webrtc/peer.go and internal/transport/transport.go.
package peerconn

import (
	"github.com/pion/webrtc/v4"
)

// GatheringState mirrors webrtc.ICEGatheringState without leaking the pion
// type into the call package's public surface.
type GatheringState int

const (
	GatheringNew GatheringState = iota
	GatheringGathering
	GatheringComplete
)

// ConnectionState mirrors webrtc.PeerConnectionState.
type ConnectionState int

const (
	ConnectionNew ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionDisconnected
	ConnectionFailed
	ConnectionClosed
)

// SignalingState mirrors webrtc.SignalingState, needed to detect offer
// collisions per spec.md §4.2 ("signaling_state != stable").
type SignalingState int

const (
	SignalingStable SignalingState = iota
	SignalingHaveLocalOffer
	SignalingHaveRemoteOffer
	SignalingHaveLocalPranswer
	SignalingHaveRemotePranswer
	SignalingClosed
)

// SDPType distinguishes an offer from an answer, carried alongside SDP
// text in descriptions exchanged over the wire.
type SDPType int

const (
	SDPTypeOffer SDPType = iota
	SDPTypeAnswer
)

// SessionDescription is the engine-facing SDP container.
type SessionDescription struct {
	Type SDPType
	SDP  string
}

// ICECandidate is the engine-facing representation of a gathered local
// candidate. A nil *ICECandidate passed to an OnICECandidate callback (or an
// empty Candidate string here) signals end-of-gathering.
type ICECandidate struct {
	Candidate     string
	SDPMid        string
	SDPMLineIndex uint16
}

// ICECandidateInit is the engine-facing representation of a remote
// candidate received over the wire.
type ICECandidateInit struct {
	Candidate     string
	SDPMid        *string
	SDPMLineIndex *uint16
}

// TransceiverDirection mirrors webrtc.RTPTransceiverDirection, used by
// MediaOrchestrator.isLocalOnHold to inspect negotiated track directions.
type TransceiverDirection int

const (
	DirectionSendRecv TransceiverDirection = iota
	DirectionSendOnly
	DirectionRecvOnly
	DirectionInactive
	DirectionUnknown
)

// PeerConnection is the abstract capability boundary the call engine drives.
// Every method mirrors one pion/webrtc/v4 call; the pionPeerConnection
// implementation below is the only production adapter.
type PeerConnection interface {
	CreateOffer() (SessionDescription, error)
	CreateAnswer() (SessionDescription, error)
	SetLocalDescription(SessionDescription) error
	SetRemoteDescription(SessionDescription) error
	AddICECandidate(ICECandidateInit) error

	OnICECandidate(func(*ICECandidate))
	OnNegotiationNeeded(func())
	OnConnectionStateChange(func(ConnectionState))
	OnTrack(func(streamID string))

	SignalingState() SignalingState
	ICEGatheringState() GatheringState
	ConnectionState() ConnectionState

	// LocalHoldDirections reports, for every transceiver whose local side
	// is currently sending media, the negotiated direction — used by
	// MediaOrchestrator to resolve spec.md §9's isLocalOnHold question.
	LocalHoldDirections() []TransceiverDirection

	// SetTrackEnabled gates outbound audio/video per spec.md §4.5's mute
	// gating rule.
	SetTrackEnabled(audio, enabled bool)
	SetTrackEnabledVideo(enabled bool)

	Close() error
}

// pionPeerConnection adapts a *webrtc.PeerConnection to the PeerConnection
// interface. Field/method shape follows the teacher's transport.Transport
// wrapper in internal/transport/transport.go.
type pionPeerConnection struct {
	pc *webrtc.PeerConnection
}

// New wraps an existing pion PeerConnection (already constructed with the
// resolved ICE server set — see ResolveICEServers/NewConnection).
func New(pc *webrtc.PeerConnection) PeerConnection {
	return &pionPeerConnection{pc: pc}
}

func (p *pionPeerConnection) CreateOffer() (SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return SessionDescription{}, err
	}
	return SessionDescription{Type: SDPTypeOffer, SDP: offer.SDP}, nil
}

func (p *pionPeerConnection) CreateAnswer() (SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return SessionDescription{}, err
	}
	return SessionDescription{Type: SDPTypeAnswer, SDP: answer.SDP}, nil
}

func toWebrtcSDP(d SessionDescription) webrtc.SessionDescription {
	t := webrtc.SDPTypeOffer
	if d.Type == SDPTypeAnswer {
		t = webrtc.SDPTypeAnswer
	}
	return webrtc.SessionDescription{Type: t, SDP: d.SDP}
}

func (p *pionPeerConnection) SetLocalDescription(d SessionDescription) error {
	return p.pc.SetLocalDescription(toWebrtcSDP(d))
}

func (p *pionPeerConnection) SetRemoteDescription(d SessionDescription) error {
	return p.pc.SetRemoteDescription(toWebrtcSDP(d))
}

func (p *pionPeerConnection) AddICECandidate(c ICECandidateInit) error {
	return p.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	})
}

func (p *pionPeerConnection) OnICECandidate(fn func(*ICECandidate)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			fn(nil)
			return
		}
		init := c.ToJSON()
		out := &ICECandidate{Candidate: init.Candidate}
		if init.SDPMid != nil {
			out.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			out.SDPMLineIndex = *init.SDPMLineIndex
		}
		fn(out)
	})
}

func (p *pionPeerConnection) OnNegotiationNeeded(fn func()) {
	p.pc.OnNegotiationNeeded(fn)
}

func (p *pionPeerConnection) OnConnectionStateChange(fn func(ConnectionState)) {
	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		fn(fromWebrtcConnectionState(s))
	})
}

func (p *pionPeerConnection) OnTrack(fn func(streamID string)) {
	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(track.StreamID())
	})
}

func fromWebrtcConnectionState(s webrtc.PeerConnectionState) ConnectionState {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return ConnectionConnecting
	case webrtc.PeerConnectionStateConnected:
		return ConnectionConnected
	case webrtc.PeerConnectionStateDisconnected:
		return ConnectionDisconnected
	case webrtc.PeerConnectionStateFailed:
		return ConnectionFailed
	case webrtc.PeerConnectionStateClosed:
		return ConnectionClosed
	default:
		return ConnectionNew
	}
}

func (p *pionPeerConnection) SignalingState() SignalingState {
	switch p.pc.SignalingState() {
	case webrtc.SignalingStateStable:
		return SignalingStable
	case webrtc.SignalingStateHaveLocalOffer:
		return SignalingHaveLocalOffer
	case webrtc.SignalingStateHaveRemoteOffer:
		return SignalingHaveRemoteOffer
	case webrtc.SignalingStateHaveLocalPranswer:
		return SignalingHaveLocalPranswer
	case webrtc.SignalingStateHaveRemotePranswer:
		return SignalingHaveRemotePranswer
	case webrtc.SignalingStateClosed:
		return SignalingClosed
	default:
		return SignalingStable
	}
}

func (p *pionPeerConnection) ICEGatheringState() GatheringState {
	switch p.pc.ICEGatheringState() {
	case webrtc.ICEGatheringStateGathering:
		return GatheringGathering
	case webrtc.ICEGatheringStateComplete:
		return GatheringComplete
	default:
		return GatheringNew
	}
}

func (p *pionPeerConnection) ConnectionState() ConnectionState {
	return fromWebrtcConnectionState(p.pc.ConnectionState())
}

func (p *pionPeerConnection) LocalHoldDirections() []TransceiverDirection {
	var out []TransceiverDirection
	for _, t := range p.pc.GetTransceivers() {
		sender := t.Sender()
		if sender == nil || sender.Track() == nil {
			continue // we're not sending on this transceiver; irrelevant to hold
		}
		out = append(out, fromWebrtcDirection(t.CurrentDirection()))
	}
	return out
}

func fromWebrtcDirection(d webrtc.RTPTransceiverDirection) TransceiverDirection {
	switch d {
	case webrtc.RTPTransceiverDirectionSendrecv:
		return DirectionSendRecv
	case webrtc.RTPTransceiverDirectionSendonly:
		return DirectionSendOnly
	case webrtc.RTPTransceiverDirectionRecvonly:
		return DirectionRecvOnly
	case webrtc.RTPTransceiverDirectionInactive:
		return DirectionInactive
	default:
		return DirectionUnknown
	}
}

func (p *pionPeerConnection) SetTrackEnabled(audio, enabled bool) {
	setSendersEnabled(p.pc, webrtc.RTPCodecTypeAudio, enabled)
	_ = audio
}

func (p *pionPeerConnection) SetTrackEnabledVideo(enabled bool) {
	setSendersEnabled(p.pc, webrtc.RTPCodecTypeVideo, enabled)
}

// setSendersEnabled does nothing: pion's local track abstraction has no
// native enable/disable bit, so no outbound flow is actually stopped here.
// It is a hook point for a concrete local-track type that supports muting
// (e.g. one backed by pion/mediadevices); the gating state of record lives
// in the Call, not the peer connection.
func setSendersEnabled(_ *webrtc.PeerConnection, _ webrtc.RTPCodecType, _ bool) {}

func (p *pionPeerConnection) Close() error {
	return p.pc.Close()
}

var _ PeerConnection = (*pionPeerConnection)(nil)
