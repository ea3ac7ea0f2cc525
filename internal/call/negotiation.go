package call

import (
	"context"
	"time"

	"github.com/khacquyetdang/matrix-call-engine/internal/peerconn"
	"github.com/khacquyetdang/matrix-call-engine/internal/util"
)

// polite reports this call's perfect-negotiation politeness, fixed for the
// call's life by direction per spec.md §4.2: inbound is polite, outbound is
// impolite.
func (c *Call) polite() bool {
	return c.Direction == DirectionInbound
}

// wirePeerConnection attaches the engine's callbacks to the peer
// connection. Called once from New.
func (c *Call) wirePeerConnection() {
	c.pc.OnNegotiationNeeded(func() {
		c.enqueue(c.onNegotiationNeeded)
	})
	c.pc.OnICECandidate(func(ic *peerconn.ICECandidate) {
		c.enqueue(func() { c.onLocalICECandidate(ic) })
	})
	c.pc.OnConnectionStateChange(func(s peerconn.ConnectionState) {
		c.enqueue(func() { c.onConnectionStateChange(s) })
	})
	c.pc.OnTrack(func(streamID string) {
		c.enqueue(func() { c.onTrack(streamID) })
	})
}

// asyncSend performs a transport send on its own goroutine — spec.md §5
// requires that no operation block the engine loop, all waits are
// timer/callback driven — and re-enters the loop via enqueue to deliver the
// result to cb.
func (c *Call) asyncSend(env Envelope, msgType MessageType, cb func(error)) {
	c.lastPendingSend = msgType
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := c.transport.Send(ctx, c.RoomID, c.CallID, env)
		c.enqueue(func() { cb(err) })
	}()
}

func (c *Call) onConnectionStateChange(s peerconn.ConnectionState) {
	switch s {
	case peerconn.ConnectionConnected:
		if c.state == StateConnecting || c.state == StateCreateAnswer {
			// spec.md §4.5: if the transport reaches a fully connected state
			// and no remote stream ever surfaced via onTrack, the remote
			// description never carried usable media, a protocol error.
			if c.remoteStream == nil {
				c.terminate(ErrSetRemoteDescription, PartyLocal, errNoRemoteStream)
				return
			}
			c.setState(StateConnected)
		}
	case peerconn.ConnectionFailed:
		c.terminate(ErrIceFailed, PartyLocal, nil)
	}
}

func (c *Call) onLocalICECandidate(ic *peerconn.ICECandidate) {
	if ic == nil {
		// End of gathering: enqueue the end-of-candidates sentinel,
		// invariant 4 (at most once).
		c.queue.enqueueEndOfCandidates()
		return
	}
	c.queue.enqueue(Candidate{
		Candidate:     ic.Candidate,
		SDPMid:        strPtr(ic.SDPMid),
		SDPMLineIndex: u16Ptr(ic.SDPMLineIndex),
	})
}

func strPtr(s string) *string { return &s }
func u16Ptr(u uint16) *uint16 { return &u }

// onNegotiationNeeded implements spec.md §4.2's onNegotiationNeeded.
func (c *Call) onNegotiationNeeded() {
	if c.state != StateCreateOffer && c.opponentVersion == 0 {
		// Legacy peers cannot renegotiate.
		return
	}
	if c.makingOffer {
		return // a second gotLocalOffer cannot start while one is in flight
	}
	c.makingOffer = true

	offer, err := c.pc.CreateOffer()
	if err != nil {
		c.makingOffer = false
		c.terminate(ErrLocalOfferFailed, PartyLocal, err)
		return
	}
	c.gotLocalOffer(offer)
}

// gotLocalOffer implements spec.md §4.2's gotLocalOffer. making_offer is
// released on every exit path (guaranteed-release discipline, spec.md §9).
func (c *Call) gotLocalOffer(offer peerconn.SessionDescription) {
	release := func() { c.makingOffer = false }

	if c.state == StateEnded {
		release()
		return
	}

	if err := c.pc.SetLocalDescription(offer); err != nil {
		release()
		c.terminate(ErrSetLocalDescription, PartyLocal, err)
		return
	}

	proceed := func() {
		c.queue.discard() // candidates are embedded in the description now

		isInvite := c.state == StateCreateOffer
		env := Envelope{Version: ProtocolVersion, CallID: c.CallID, PartyID: strPtr(c.OurPartyID)}
		sendType := MsgNegotiate
		if isInvite {
			sendType = MsgInvite
			env.Type = MsgInvite
			env.Offer = &SessionDescription{SDP: offer.SDP, Type: "offer"}
			env.Lifetime = InviteLifetimeDefault
		} else {
			env.Type = MsgNegotiate
			env.Description = &SessionDescription{SDP: offer.SDP, Type: "offer"}
		}

		c.asyncSend(env, sendType, func(err error) {
			defer release()
			if err != nil {
				c.handleSendFailure(err, isInvite)
				return
			}
			c.queue.flush()
			if isInvite {
				c.inviteOrAnswerSent = true
				c.setState(StateInviteSent)
			}
		})
	}

	if c.pc.ICEGatheringState() == peerconn.GatheringGathering {
		// Wait so the description carries initial candidates — a
		// timer-driven suspension point (spec.md §5), not a blocking sleep.
		time.AfterFunc(200*time.Millisecond, func() {
			c.enqueue(proceed)
		})
		return
	}
	proceed()
}

func (c *Call) handleSendFailure(err error, isInvite bool) {
	code := ErrSignallingFailed
	if c.transport.IsUnknownDevicesError(err) {
		code = ErrUnknownDevices
	} else if isInvite {
		code = ErrSendInvite
	}
	c.terminate(code, PartyLocal, err)
}

// onRemoteDescription implements spec.md §4.2's onRemoteDescription,
// invoked when an invite (initial offer) or a negotiate message carrying an
// offer/answer arrives.
func (c *Call) onRemoteDescription(desc peerconn.SessionDescription, isOffer bool) {
	offerCollision := isOffer && (c.makingOffer || c.pc.SignalingState() != peerconn.SignalingStable)
	c.ignoreOffer = !c.polite() && offerCollision
	if c.ignoreOffer {
		util.LogDebug("call %s: impolite side ignoring colliding offer", c.CallID)
		return
	}

	wasOnHold := c.isLocalOnHold()

	if err := c.pc.SetRemoteDescription(desc); err != nil {
		c.terminate(ErrSetRemoteDescription, PartyLocal, err)
		return
	}

	c.reportHoldChange(wasOnHold)

	if !isOffer {
		return
	}

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
		Type: MsgNegotiate, Version: ProtocolVersion, CallID: c.CallID,
		PartyID:     strPtr(c.OurPartyID),
		Description: &SessionDescription{SDP: answer.SDP, Type: "answer"},
	}
	c.asyncSend(env, MsgNegotiate, func(err error) {
		if err != nil {
			c.handleSendFailure(err, false)
		}
	})
}

// reportHoldChange re-checks isLocalOnHold after any remote-description
// change and emits hold_unhold exactly when it flipped, per spec.md §4.2.
func (c *Call) reportHoldChange(before bool) {
	after := c.isLocalOnHold()
	if after == before {
		return
	}
	c.wasOnHold = after
	if !c.suppressEvents {
		c.listener.OnHoldUnhold(after)
	}
}

// onAnswer implements spec.md §4.2's answer path.
func (c *Call) onAnswer(env Envelope) {
	if c.opponentCommitted {
		// Another device already answered from our side's view.
		return
	}
	c.opponentCommitted = true
	c.opponentPartyID = env.PartyID
	if env.Version >= 1 {
		c.opponentVersion = env.Version
	}

	c.setState(StateConnecting)

	if env.Answer == nil {
		c.terminate(ErrSetRemoteDescription, PartyLocal, nil)
		return
	}
	if err := c.pc.SetRemoteDescription(peerconn.SessionDescription{
		Type: peerconn.SDPTypeAnswer, SDP: env.Answer.SDP,
	}); err != nil {
		c.terminate(ErrSetRemoteDescription, PartyLocal, err)
		return
	}

	if c.opponentPartyID != nil {
		selEnv := Envelope{
			Type: MsgSelectAnswer, Version: ProtocolVersion, CallID: c.CallID,
			PartyID: strPtr(c.OurPartyID), SelectedPartyID: c.opponentPartyID,
		}
		c.asyncSend(selEnv, MsgSelectAnswer, func(err error) {
			if err != nil {
				// select_answer failure is non-fatal per spec.md §4.2.
				util.LogWarning("call %s: select_answer send failed: %v", c.CallID, err)
			}
		})
	}
}
