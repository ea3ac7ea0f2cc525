package call

import (
	"fmt"
	"strings"
	"time"

	"github.com/khacquyetdang/matrix-call-engine/internal/peerconn"
	"github.com/khacquyetdang/matrix-call-engine/internal/util"
)

// HandleInbound is the single entry point a SignalingTransport uses to
// deliver an inbound message for this call, per spec.md §4.4. It enqueues
// dispatch onto the engine loop; callers never block.
func (c *Call) HandleInbound(env Envelope) {
	c.enqueue(func() { c.dispatch(env) })
}

// InitWithInvite processes the invite that created this (inbound) call.
// The owner constructs a Call in StateFledgling and calls this once, before
// any other inbound message can be routed to it; it marks the call
// DirectionInbound. localAge is how long the transport reports the invite
// event has already aged, per spec.md §4.3's inbound invite lifetime rule.
func (c *Call) InitWithInvite(env Envelope, localAge time.Duration) {
	c.enqueue(func() {
		if c.state != StateFledgling {
			return
		}
		c.Direction = DirectionInbound
		c.setState(StateRinging)

		if env.Offer == nil {
			c.terminate(ErrSetRemoteDescription, PartyLocal, fmt.Errorf("invite missing offer"))
			return
		}
		if err := c.pc.SetRemoteDescription(peerconn.SessionDescription{
			Type: peerconn.SDPTypeOffer, SDP: env.Offer.SDP,
		}); err != nil {
			c.terminate(ErrSetRemoteDescription, PartyLocal, err)
			return
		}
		c.callType = detectCallType(env.Offer.SDP)

		remaining := time.Duration(env.Lifetime)*time.Millisecond - localAge
		if remaining <= 0 {
			c.terminate(ErrUserHangup, PartyRemote, fmt.Errorf("invite already expired on arrival"))
			return
		}
		c.armRingTimeout(remaining)
	})
}

// detectCallType inspects an offer's media lines for a video section. The
// wire format carries no explicit call-type hint (spec.md §6), so inbound
// calls infer video-vs-voice the same way matrix-js-sdk's call.ts does: by
// looking at what the offer actually negotiates.
func detectCallType(sdp string) CallType {
	if strings.Contains(sdp, "m=video") {
		return TypeVideo
	}
	return TypeVoice
}

func (c *Call) armRingTimeout(d time.Duration) {
	c.ringTimer = time.AfterFunc(d, func() {
		c.enqueue(func() {
			if c.state != StateRinging {
				return
			}
			c.terminate(ErrUserHangup, PartyRemote, fmt.Errorf("ring lifetime expired unanswered"))
		})
	})
}

// dispatch applies the party-id filter (spec.md §4.4, invariant 5) and then
// routes by message type. Must only run on the engine loop.
func (c *Call) dispatch(env Envelope) {
	// The v0 compatibility carve-out does not extend past commit: once
	// opponentCommitted is set, a message from another party id, hangup
	// included, is simply a stray message from a losing device, not our
	// remote, and is dropped unconditionally.
	if c.opponentCommitted && !c.partyMatches(env.PartyID) {
		util.LogDebug("call %s: dropping %s from non-matching party_id", c.CallID, env.Type)
		return
	}

	switch env.Type {
	case MsgAnswer:
		c.onAnswer(env)
	case MsgCandidates:
		c.onCandidatesMsg(env)
	case MsgNegotiate:
		c.onNegotiateMsg(env)
	case MsgHangup:
		c.onHangupMsg(env)
	case MsgReject:
		c.onRejectMsg(env)
	case MsgSelectAnswer:
		c.onSelectAnswerMsg(env)
	default:
		util.LogDebug("call %s: ignoring unexpected inbound %s", c.CallID, env.Type)
	}
}

func (c *Call) partyMatches(partyID *string) bool {
	committed := c.opponentPartyID
	switch {
	case committed == nil && partyID == nil:
		return true
	case committed == nil || partyID == nil:
		return false
	default:
		return *committed == *partyID
	}
}

func (c *Call) onCandidatesMsg(env Envelope) {
	for _, cand := range env.Candidates {
		if cand.SDPMid == nil && cand.SDPMLineIndex == nil {
			continue // drop: both identifiers missing, per spec.md §4.4
		}
		err := c.pc.AddICECandidate(peerconn.ICECandidateInit{
			Candidate:     cand.Candidate,
			SDPMid:        cand.SDPMid,
			SDPMLineIndex: cand.SDPMLineIndex,
		})
		if err != nil && !c.ignoreOffer {
			// A failed add-candidate is never fatal: it is logged, unless
			// we've signaled we're ignoring this negotiation pass, in which
			// case it is swallowed silently.
			util.LogWarning("call %s: AddICECandidate failed: %v", c.CallID, err)
		}
	}
}

func (c *Call) onNegotiateMsg(env Envelope) {
	if env.Description == nil {
		return
	}
	sdpType := peerconn.SDPTypeAnswer
	isOffer := env.Description.Type == "offer"
	if isOffer {
		sdpType = peerconn.SDPTypeOffer
	}
	c.onRemoteDescription(peerconn.SessionDescription{Type: sdpType, SDP: env.Description.SDP}, isOffer)
}

func (c *Call) onHangupMsg(env Envelope) {
	reason := ErrorCode(env.Reason)
	if reason == "" {
		reason = ErrUserHangup
	}
	c.terminate(reason, PartyRemote, nil)
}

// onRejectMsg implements spec.md §4.4's reject handling: only meaningful in
// InviteSent (otherwise we already hold an answer or reject).
func (c *Call) onRejectMsg(env Envelope) {
	if c.state != StateInviteSent {
		return
	}
	c.terminate(ErrUserHangup, PartyRemote, nil)
}

// onSelectAnswerMsg implements spec.md §4.4's select_answer handling: only
// meaningful for inbound-direction calls.
func (c *Call) onSelectAnswerMsg(env Envelope) {
	if c.Direction != DirectionInbound {
		return
	}
	if env.SelectedPartyID == nil || *env.SelectedPartyID != c.OurPartyID {
		c.terminate(ErrAnsweredElsewhere, PartyRemote, nil)
	}
}
