package call

import (
	"context"
	"fmt"

	"github.com/khacquyetdang/matrix-call-engine/internal/peerconn"
)

// PlaceVoiceCall starts a fresh outbound voice call: acquire local audio,
// move through WaitLocalMedia -> CreateOffer, and let onNegotiationNeeded
// drive the rest. Returns ErrNoListener if the call was built without one
// (spec.md §7's prerequisite guard — checked before any side effect).
func (c *Call) PlaceVoiceCall() error {
	return c.place(TypeVoice)
}

// PlaceVideoCall is PlaceVoiceCall's video-constraint counterpart.
func (c *Call) PlaceVideoCall() error {
	return c.place(TypeVideo)
}

func (c *Call) place(t CallType) error {
	if c.listener == nil {
		return ErrNoListener
	}
	c.enqueue(func() {
		if c.state != StateFledgling {
			return
		}
		c.Direction = DirectionOutbound
		c.callType = t
		c.setState(StateWaitLocalMedia)
		c.acquireLocalMedia(t, func() {
			if c.state != StateWaitLocalMedia {
				return
			}
			c.setState(StateCreateOffer)
			c.onNegotiationNeeded()
		})
	})
	return nil
}

// Answer accepts an inbound call currently Ringing: acquire local media,
// move through WaitLocalMedia -> CreateAnswer, and negotiate an answer
// against the remote offer already held in the peer connection (set by
// InitWithInvite).
func (c *Call) Answer() error {
	if c.listener == nil {
		return ErrNoListener
	}
	c.enqueue(func() {
		if c.state != StateRinging {
			return
		}
		c.setState(StateWaitLocalMedia)
		c.acquireLocalMedia(c.callType, func() {
			if c.state != StateWaitLocalMedia {
				return
			}
			c.setState(StateCreateAnswer)
			c.answerRemoteOffer()
		})
	})
	return nil
}

// Reject declines an inbound call still Ringing, sending a reject message
// rather than a hangup (spec.md §4.4).
func (c *Call) Reject() {
	c.enqueue(func() {
		if c.state != StateRinging {
			return
		}
		env := Envelope{Type: MsgReject, Version: ProtocolVersion, CallID: c.CallID, PartyID: strPtr(c.OurPartyID)}
		c.asyncSend(env, MsgReject, func(error) {})
		c.rejectSent = true
		c.terminate(ErrUserHangup, PartyLocal, nil)
	})
}

// acquireLocalMedia calls the configured MediaAcquirer off-loop (it may
// prompt a user or touch hardware) and re-enters via enqueue, per spec.md
// §5's no-blocking-the-loop rule. On success it stores the stream and runs
// onReady; on failure it terminates with NoUserMedia.
func (c *Call) acquireLocalMedia(t CallType, onReady func()) {
	if c.acquire == nil {
		c.terminate(ErrNoUserMedia, PartyLocal, errNoAcquirer)
		return
	}
	constraints := constraintsFor(t)
	go func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		stream, err := c.acquire(ctx, constraints)
		c.enqueue(func() {
			if c.delegateToSuccessor(stream, err) {
				return
			}
			if err != nil {
				c.terminate(ErrNoUserMedia, PartyLocal, err)
				return
			}
			c.localStream = stream
			c.applyTrackGating()
			onReady()
		})
	}()
}

var errNoAcquirer = fmt.Errorf("call: no MediaAcquirer configured")

// errNoRemoteStream is the cause reported when the connection reaches
// Connected with no remote stream ever having surfaced via onTrack
// (spec.md §4.5's "no remote streams exist after setting a remote
// description" protocol error).
var errNoRemoteStream = fmt.Errorf("call: remote description carried no remote stream")

// answerRemoteOffer creates and sends the answer to the invite already
// loaded as the remote description (by InitWithInvite), mirroring the
// answer half of onRemoteDescription without re-running the offer-collision
// check — there is no collision on an initial answer.
func (c *Call) answerRemoteOffer() {
	answer, err := c.pc.CreateAnswer()
	if err != nil {
		c.terminate(ErrCreateAnswer, PartyLocal, err)
		return
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		c.terminate(ErrSetLocalDescription, PartyLocal, err)
		return
	}

	env := Envelope{
		Type: MsgAnswer, Version: ProtocolVersion, CallID: c.CallID,
		PartyID: strPtr(c.OurPartyID),
		Answer:  &SessionDescription{SDP: answer.SDP, Type: "answer"},
	}
	c.asyncSend(env, MsgAnswer, func(err error) {
		if err != nil {
			code := ErrSendAnswer
			if c.transport.IsUnknownDevicesError(err) {
				code = ErrUnknownDevices
			}
			c.terminate(code, PartyLocal, err)
			return
		}
		c.queue.flush()
		c.inviteOrAnswerSent = true
		c.setState(StateConnecting)
	})
}

// onTrack records that a remote stream has arrived. The orchestrator only
// tracks presence/hold state here; actual media rendering is the caller's
// business (spec.md §1 excludes media rendering from scope).
func (c *Call) onTrack(streamID string) {
	if c.remoteStream == nil {
		c.remoteStream = &trackStreamStub{id: streamID}
	}
	before := c.wasOnHold
	c.reportHoldChange(before)
}

// trackStreamStub is a zero-track Stream placeholder recording that a
// remote stream of the given id has been seen. Concrete track handles come
// from the caller's PeerConnection/media stack, out of this engine's scope;
// nothing here needs to Stop() a track it never owned.
type trackStreamStub struct{ id string }

func (s *trackStreamStub) Tracks() []Track { return nil }

// isLocalOnHold resolves spec.md §9's open question by inspecting the
// negotiated direction of every transceiver we're sending on: we're on hold
// only while Connected, if we hold at least one sending transceiver and none
// of them are negotiated sendrecv/sendonly (i.e. every one has been demoted
// to recvonly/inactive by the remote).
func (c *Call) isLocalOnHold() bool {
	if c.state != StateConnected {
		return false
	}
	dirs := c.pc.LocalHoldDirections()
	if len(dirs) == 0 {
		return false
	}
	for _, d := range dirs {
		if d == peerconn.DirectionSendRecv || d == peerconn.DirectionSendOnly {
			return false
		}
	}
	return true
}

// SetMicrophoneMuted gates the local audio track per spec.md §4.5.
func (c *Call) SetMicrophoneMuted(muted bool) {
	c.enqueue(func() {
		c.micMuted = muted
		c.applyTrackGating()
	})
}

// SetVideoMuted gates the local video track per spec.md §4.5.
func (c *Call) SetVideoMuted(muted bool) {
	c.enqueue(func() {
		c.vidMuted = muted
		c.applyTrackGating()
	})
}

// SetRemoteOnHold records the user's request to pause outbound media toward
// the remote party (the remote_on_hold field of spec.md §3), distinct from
// isLocalOnHold's remote-initiated signal.
func (c *Call) SetRemoteOnHold(onHold bool) {
	c.enqueue(func() {
		c.remoteOnHold = onHold
		c.applyTrackGating()
	})
}

// applyTrackGating implements spec.md §4.5's gating rule: outbound audio and
// video tracks are enabled iff neither muted nor holding the remote.
func (c *Call) applyTrackGating() {
	c.pc.SetTrackEnabled(true, !(c.micMuted || c.remoteOnHold))
	c.pc.SetTrackEnabledVideo(!(c.vidMuted || c.remoteOnHold))
}
