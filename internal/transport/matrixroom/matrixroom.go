// Package matrixroom implements a SignalingTransport over a Matrix room
// timeline using maunium.net/go/mautrix, grounded on matrix-org/waterfall's
// conference message processing (pkg/conference/matrix_message_processor.go,
// pkg/conference/matrix_message_processing.go) and its call.ts-derived event
// dispatch (src/call.go, focus.go). Unlike waterfall's to-device SFU focus
// protocol, this engine exchanges call events as ordinary room timeline
// events, matching spec.md's "federated, room-based messaging substrate".
package matrixroom

import (
	"context"
	"fmt"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/khacquyetdang/matrix-call-engine/internal/call"
	"github.com/khacquyetdang/matrix-call-engine/internal/util"
)

// NewCallFunc constructs the Call an unrecognized inbound invite should be
// routed to, given the room it arrived in.
type NewCallFunc func(roomID id.RoomID, env call.Envelope) *call.Call

// Room is a SignalingTransport backed by one Matrix room's call event
// timeline, shared by every call placed or received in that room.
type Room struct {
	client  *mautrix.Client
	newCall NewCallFunc

	mu    sync.Mutex
	calls map[string]*call.Call
}

// NewRoom wraps an authenticated mautrix client as a signaling room.
func NewRoom(client *mautrix.Client, newCall NewCallFunc) *Room {
	return &Room{client: client, newCall: newCall, calls: make(map[string]*call.Call)}
}

// Register associates an already-constructed outbound call with this room so
// inbound replies addressed to its call_id route back to it.
func (r *Room) Register(c *call.Call) {
	r.mu.Lock()
	r.calls[c.CallID] = c
	r.mu.Unlock()
}

// Listen wires every call event type onto a mautrix syncer, mirroring
// waterfall's message-processor dispatch table.
func (r *Room) Listen(syncer *mautrix.DefaultSyncer) {
	syncer.OnEventType(event.CallInvite, r.onInvite)
	syncer.OnEventType(event.CallCandidates, r.onCandidates)
	syncer.OnEventType(event.CallAnswer, r.onAnswer)
	syncer.OnEventType(event.CallNegotiate, r.onNegotiate)
	syncer.OnEventType(event.CallHangup, r.onHangup)
	syncer.OnEventType(event.CallReject, r.onReject)
	syncer.OnEventType(event.CallSelectAnswer, r.onSelectAnswer)
}

func (r *Room) fromUs(evt *event.Event) bool {
	return evt.Sender == r.client.UserID
}

func (r *Room) onInvite(_ context.Context, evt *event.Event) {
	if r.fromUs(evt) {
		return
	}
	content := evt.Content.AsCallInvite()
	if content == nil {
		return
	}
	env := call.Envelope{
		Type:     call.MsgInvite,
		Version:  parseVersion(string(content.Version)),
		CallID:   content.CallID,
		PartyID:  optionalStr(content.PartyID),
		Offer:    &call.SessionDescription{SDP: content.Offer.SDP, Type: content.Offer.Type},
		Lifetime: content.Lifetime,
		LocalAge: evt.Unsigned.Age,
	}
	r.route(evt.RoomID, env)
}

func (r *Room) onCandidates(_ context.Context, evt *event.Event) {
	if r.fromUs(evt) {
		return
	}
	content := evt.Content.AsCallCandidates()
	if content == nil {
		return
	}
	candidates := make([]call.Candidate, len(content.Candidates))
	for i, c := range content.Candidates {
		idx := uint16(c.SDPMLineIndex)
		candidates[i] = call.Candidate{Candidate: c.Candidate, SDPMid: strPtr(c.SDPMID), SDPMLineIndex: &idx}
	}
	env := call.Envelope{
		Type: call.MsgCandidates, Version: parseVersion(string(content.Version)),
		CallID: content.CallID, PartyID: optionalStr(content.PartyID), Candidates: candidates,
	}
	r.route(evt.RoomID, env)
}

func (r *Room) onAnswer(_ context.Context, evt *event.Event) {
	if r.fromUs(evt) {
		return
	}
	content := evt.Content.AsCallAnswer()
	if content == nil {
		return
	}
	env := call.Envelope{
		Type: call.MsgAnswer, Version: parseVersion(string(content.Version)),
		CallID: content.CallID, PartyID: optionalStr(content.PartyID),
		Answer: &call.SessionDescription{SDP: content.Answer.SDP, Type: content.Answer.Type},
	}
	r.route(evt.RoomID, env)
}

func (r *Room) onNegotiate(_ context.Context, evt *event.Event) {
	if r.fromUs(evt) {
		return
	}
	content := evt.Content.AsCallNegotiate()
	if content == nil {
		return
	}
	env := call.Envelope{
		Type: call.MsgNegotiate, Version: parseVersion(string(content.Version)),
		CallID: content.CallID, PartyID: optionalStr(content.PartyID),
		Description: &call.SessionDescription{SDP: content.Description.SDP, Type: content.Description.Type},
	}
	r.route(evt.RoomID, env)
}

func (r *Room) onHangup(_ context.Context, evt *event.Event) {
	if r.fromUs(evt) {
		return
	}
	content := evt.Content.AsCallHangup()
	if content == nil {
		return
	}
	env := call.Envelope{
		Type: call.MsgHangup, Version: parseVersion(string(content.Version)),
		CallID: content.CallID, PartyID: optionalStr(content.PartyID),
		Reason: string(content.Reason),
	}
	r.route(evt.RoomID, env)
}

func (r *Room) onReject(_ context.Context, evt *event.Event) {
	if r.fromUs(evt) {
		return
	}
	content := evt.Content.AsCallReject()
	if content == nil {
		return
	}
	env := call.Envelope{
		Type: call.MsgReject, Version: parseVersion(string(content.Version)),
		CallID: content.CallID, PartyID: optionalStr(content.PartyID),
	}
	r.route(evt.RoomID, env)
}

func (r *Room) onSelectAnswer(_ context.Context, evt *event.Event) {
	if r.fromUs(evt) {
		return
	}
	content := evt.Content.AsCallSelectAnswer()
	if content == nil {
		return
	}
	env := call.Envelope{
		Type: call.MsgSelectAnswer, Version: parseVersion(string(content.Version)),
		CallID: content.CallID, PartyID: optionalStr(content.PartyID),
		SelectedPartyID: strPtr(content.SelectedPartyID),
	}
	r.route(evt.RoomID, env)
}

func (r *Room) route(roomID id.RoomID, env call.Envelope) {
	r.mu.Lock()
	c, ok := r.calls[env.CallID]
	r.mu.Unlock()

	if !ok {
		if env.Type != call.MsgInvite || r.newCall == nil {
			util.LogDebug("matrixroom: dropping %s for unknown call %s", env.Type, env.CallID)
			return
		}
		c = r.newCall(roomID, env)
		if c == nil {
			return
		}
		r.mu.Lock()
		r.calls[env.CallID] = c
		r.mu.Unlock()
		c.InitWithInvite(env, time.Duration(env.LocalAge)*time.Millisecond)
		return
	}
	c.HandleInbound(env)
}

// Send implements transport.SignalingTransport by posting a room event.
func (r *Room) Send(ctx context.Context, roomID, callID string, env call.Envelope) error {
	content, eventType, err := toEventContent(env)
	if err != nil {
		return err
	}
	_, err = r.client.SendMessageEvent(ctx, id.RoomID(roomID), eventType, content)
	return err
}

// CancelPending implements transport.SignalingTransport. SendMessageEvent is
// a single synchronous round trip with no client-side retry queue, so by the
// time a termination decides to cancel a pending send, Send has already
// either returned or is mid-flight and uncancelable; nothing to drain here.
func (r *Room) CancelPending(string, call.MessageType) {}

// IsUnknownDevicesError implements transport.SignalingTransport. This
// engine does not wire end-to-end device verification, so the
// UnknownDevices error path is unreachable through this transport.
func (r *Room) IsUnknownDevicesError(error) bool { return false }

func toEventContent(env call.Envelope) (any, event.Type, error) {
	base := event.BaseCallEventContent{
		CallID:  env.CallID,
		Version: event.CallVersion(fmt.Sprint(call.ProtocolVersion)),
	}
	if env.PartyID != nil {
		base.PartyID = *env.PartyID
	}

	switch env.Type {
	case call.MsgInvite:
		return &event.CallInviteEventContent{
			BaseCallEventContent: base,
			Offer:                event.CallData{Type: env.Offer.Type, SDP: env.Offer.SDP},
			Lifetime:             env.Lifetime,
		}, event.CallInvite, nil
	case call.MsgAnswer:
		return &event.CallAnswerEventContent{
			BaseCallEventContent: base,
			Answer:               event.CallData{Type: env.Answer.Type, SDP: env.Answer.SDP},
		}, event.CallAnswer, nil
	case call.MsgCandidates:
		candidates := make([]event.CallCandidate, len(env.Candidates))
		for i, c := range env.Candidates {
			candidates[i] = event.CallCandidate{Candidate: c.Candidate}
			if c.SDPMid != nil {
				candidates[i].SDPMID = *c.SDPMid
			}
			if c.SDPMLineIndex != nil {
				candidates[i].SDPMLineIndex = int(*c.SDPMLineIndex)
			}
		}
		return &event.CallCandidatesEventContent{
			BaseCallEventContent: base,
			Candidates:           candidates,
		}, event.CallCandidates, nil
	case call.MsgNegotiate:
		return &event.CallNegotiateEventContent{
			BaseCallEventContent: base,
			Description:          event.CallData{Type: env.Description.Type, SDP: env.Description.SDP},
		}, event.CallNegotiate, nil
	case call.MsgSelectAnswer:
		return &event.CallSelectAnswerEventContent{
			BaseCallEventContent: base,
			SelectedPartyID:      *env.SelectedPartyID,
		}, event.CallSelectAnswer, nil
	case call.MsgHangup:
		return &event.CallHangupEventContent{
			BaseCallEventContent: base,
			Reason:               string(env.Reason),
		}, event.CallHangup, nil
	case call.MsgReject:
		return &event.CallRejectEventContent{BaseCallEventContent: base}, event.CallReject, nil
	default:
		return nil, event.Type{}, fmt.Errorf("matrixroom: unknown message type %s", env.Type)
	}
}

func parseVersion(v string) int {
	if v == "1" {
		return 1
	}
	return 0
}

func optionalStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strPtr(s string) *string { return &s }
