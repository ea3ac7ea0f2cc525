// Package call implements the per-call signaling engine: the state machine,
// perfect-negotiation collision handler, ICE-candidate batching/retry
// pipeline, glare/replacement protocol, and media-lifecycle coordination
// described in spec.md. It is the core named in spec.md §1/§2; the
// PeerConnection and SignalingTransport it drives are named interfaces
// supplied by the caller (internal/peerconn, internal/transport).
package call

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/khacquyetdang/matrix-call-engine/internal/peerconn"
	"github.com/khacquyetdang/matrix-call-engine/internal/transport"
	"github.com/khacquyetdang/matrix-call-engine/internal/util"
)

// ErrNoListener is returned by PlaceVoiceCall/PlaceVideoCall when the call
// was constructed without a Listener, per spec.md §7's prerequisite guard:
// placing a call without an error listener is a programmer error that must
// fail fast before any side effect.
var ErrNoListener = fmt.Errorf("call: cannot place a call without a Listener")

// Options configures a new Call. RoomID, OurPartyID, Transport, PeerConn,
// and Listener are required; MediaAcquirer defaults to a function that
// always fails with NoUserMedia if left nil (tests typically supply one).
type Options struct {
	RoomID     string
	OurPartyID string
	Transport  transport.SignalingTransport
	PeerConn   peerconn.PeerConnection
	Listener   Listener
	Acquire    MediaAcquirer

	// There is no option for ResolveICEServers' fallback STUN rule: ICE
	// server resolution happens before the PeerConn is constructed, so by
	// the time Options reaches New the decision is already baked in.

	// now, if set, overrides time.Now for deterministic tests.
	now func() time.Time
}

// Call is the sole aggregate described in spec.md §3. It is mutated only
// from its own single-goroutine engine loop (spec.md §5); every exported
// method enqueues a closure onto that loop instead of touching fields
// directly, so callers never need their own locking.
type Call struct {
	// immutable for the call's lifetime
	CallID     string
	RoomID     string
	OurPartyID string
	Direction  Direction

	transport transport.SignalingTransport
	pc        peerconn.PeerConnection
	listener  Listener
	acquire   MediaAcquirer
	now       func() time.Time

	// engine loop
	cmdCh     chan func()
	loopDone  chan struct{}
	closeOnce sync.Once

	// mutable state — touched only inside the loop goroutine
	state             State
	callType          CallType
	opponentPartyID   *string
	opponentCommitted bool
	opponentVersion   int
	hangupParty       Party
	hangupReason      ErrorCode
	localStream       Stream
	remoteStream      Stream

	queue               *candidateQueue
	makingOffer         bool
	ignoreOffer         bool
	inviteOrAnswerSent  bool
	sentEndOfCandidates bool
	micMuted            bool
	vidMuted            bool
	remoteOnHold        bool
	wasOnHold           bool
	successor           *Call
	suppressEvents      bool
	rejectSent          bool

	inviteTimer *time.Timer
	ringTimer   *time.Timer

	// lastPendingSend names the message type of the most recent outbound
	// send attempt, so a send-failure termination can tell the transport
	// which pending event to cancel (spec.md §7).
	lastPendingSend MessageType
}

// New constructs a Fledgling call. Its Direction, which fixes the call's
// politeness for life (spec.md §4.2: inbound calls are polite, outbound
// impolite), is set when the call is placed or initialised with an invite.
func New(opts Options) *Call {
	if opts.now == nil {
		opts.now = time.Now
	}
	c := &Call{
		CallID:     uuid.NewString(),
		RoomID:     opts.RoomID,
		OurPartyID: opts.OurPartyID,
		transport:  opts.Transport,
		pc:         opts.PeerConn,
		listener:   opts.Listener,
		acquire:    opts.Acquire,
		now:        opts.now,
		state:      StateFledgling,
		cmdCh:      make(chan func(), 32),
		loopDone:   make(chan struct{}),
	}
	c.queue = newCandidateQueue(c)
	c.wirePeerConnection()
	go c.loop()
	return c
}

// loop is the single logical executor described in spec.md §5. All
// mutation of Call fields happens here; external callbacks (transport
// replies, timers, peer-connection events) and public API methods alike
// only ever enqueue a closure via c.enqueue.
func (c *Call) loop() {
	defer close(c.loopDone)
	for fn := range c.cmdCh {
		fn()
	}
}

// enqueue schedules fn to run on the engine loop. Safe to call from any
// goroutine, including the loop itself (re-entrant calls simply queue
// behind whatever's currently running; a second gotLocalOffer is kept from
// starting while making_offer is true by onNegotiationNeeded's own check).
func (c *Call) enqueue(fn func()) {
	select {
	case c.cmdCh <- fn:
	case <-c.loopDone:
	}
}

// sync blocks the caller until every previously-enqueued closure has
// finished. It exists for tests that need
// to observe state deterministically after driving the engine
// asynchronously; production code never needs it.
func (c *Call) sync() {
	done := make(chan struct{})
	c.enqueue(func() { close(done) })
	<-done
}

// State returns the call's current state. Safe to call from any goroutine;
// the returned value may be stale by the time the caller observes it,
// which is expected of a live state machine.
func (c *Call) State() State {
	out := make(chan State, 1)
	c.enqueue(func() { out <- c.state })
	return <-out
}

// setState performs the one legal place state changes happen: validates the
// transition (spec.md invariant 1), emits exactly one OnState event (per
// spec.md §9's design note), and arms/disarms the invite timeout per
// invariant 7.
func (c *Call) setState(next State) {
	if c.state == StateEnded {
		return // absorbing; invariant 1
	}
	if !allowedTransition(c.state, next) {
		// Unlisted transitions are programmer error: log and ignore,
		// per spec.md §4.3's transition table note.
		logIllegalTransition(c.state, next)
		return
	}
	old := c.state
	c.state = next

	// Invariant 7: invite_timeout is armed only in InviteSent, disarmed by
	// any state exit.
	if old == StateInviteSent && c.inviteTimer != nil {
		c.inviteTimer.Stop()
		c.inviteTimer = nil
	}
	if old == StateRinging && c.ringTimer != nil {
		c.ringTimer.Stop()
		c.ringTimer = nil
	}
	if next == StateInviteSent {
		c.armInviteTimeout()
	}

	if !c.suppressEvents {
		c.listener.OnState(next, old)
	}
}

func (c *Call) armInviteTimeout() {
	c.inviteTimer = time.AfterFunc(60*time.Second, func() {
		c.enqueue(func() {
			if c.state != StateInviteSent {
				return // disarmed by an intervening state exit
			}
			c.terminate(ErrInviteTimeout, PartyLocal, nil)
		})
	})
}

// terminate is the single path to Ended, implementing spec.md §7's
// propagation policy and invariants 1 and 6 (idempotence).
func (c *Call) terminate(code ErrorCode, party Party, err error) {
	if c.state == StateEnded {
		return // invariant 6: hangup is idempotent
	}

	c.hangupReason = code
	c.hangupParty = party
	c.setState(StateEnded)

	c.teardownMedia()
	if closeErr := c.pc.Close(); closeErr != nil {
		// best-effort; the call is ending regardless
		_ = closeErr
	}

	switch {
	case code.isLocalSetupFailure():
		if !c.suppressEvents {
			c.listener.OnError(newCallError(code, err))
		}
		// no hangup event: the call never established.
		return

	case code.isSignalingSendFailure():
		c.transport.CancelPending(c.CallID, c.pendingSendType())
		if !c.suppressEvents {
			c.listener.OnError(newCallError(code, err))
			c.listener.OnHangup(c)
		}
		return
	}

	// Protocol timeout / ICE failure: send a wire hangup, no error emitted
	// (these are normal-ish outcomes on our side).
	if code == ErrInviteTimeout || code == ErrIceFailed {
		c.sendHangup(code)
		if !c.suppressEvents {
			c.listener.OnHangup(c)
		}
		return
	}

	// Local user hangup: wire-visible, the remote doesn't know yet. A local
	// reject already told the remote via its own reject message, so it
	// does not also get a hangup.
	if code == ErrUserHangup && party == PartyLocal && !c.rejectSent {
		c.sendHangup(code)
	}
	// Peer-initiated (remote hangup/reject, Replaced, AnsweredElsewhere) or
	// our own Replaced/glare suppression: silent on the wire, remote
	// already knows or doesn't need to.
	if !c.suppressEvents {
		c.listener.OnHangup(c)
	}
}

// pendingSendType is a placeholder hook for send-failure bookkeeping; the
// candidate/negotiation code sets this via lastPendingSend before a send
// that might fail, so CancelPending names the right message type.
func (c *Call) pendingSendType() MessageType {
	return c.lastPendingSend
}

// sendHangup fires the wire hangup on its own goroutine. It never needs to
// re-enter the engine loop (the call is already Ended and there is nothing
// further to do with the result), so unlike asyncSend it doesn't enqueue a
// continuation — just a best-effort, non-blocking send.
func (c *Call) sendHangup(reason ErrorCode) {
	env := Envelope{
		Type: MsgHangup, Version: ProtocolVersion, CallID: c.CallID,
		PartyID: strPtr(c.OurPartyID), Reason: string(reason),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.transport.Send(ctx, c.RoomID, c.CallID, env) // best-effort: call is already ending
	}()
}

// HangUp terminates the call locally with reason UserHangup, attributed to
// the local party. Idempotent per invariant 6.
func (c *Call) HangUp() {
	c.enqueue(func() { c.terminate(ErrUserHangup, PartyLocal, nil) })
}

// teardownMedia stops every track in every owned stream and is safe to call
// more than once, per invariant 6.
func (c *Call) teardownMedia() {
	stopStream(c.localStream)
	stopStream(c.remoteStream)
	c.localStream = nil
	c.remoteStream = nil
}

func stopStream(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

func logIllegalTransition(from, to State) {
	// Programmer error per spec.md §4.3: logged, not fatal.
	util.LogWarning("call: illegal state transition %s -> %s (ignored)", from, to)
}
