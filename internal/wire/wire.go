// Package wire holds the signaling payload types shared by the call engine
// and its transports. It is a leaf package: it imports nothing from
// internal/call or internal/transport, so both sides can depend on it
// without creating an import cycle.
package wire

// ProtocolVersion is the version this engine emits on every outbound
// envelope. 0 means legacy-compatible: peers reporting a version < 1 are
// assumed to lack reject, select_answer, and mid-call renegotiation.
const ProtocolVersion = 0

// MessageType identifies the kind of signaling payload carried in an
// Envelope.
type MessageType string

const (
	MsgInvite       MessageType = "invite"
	MsgAnswer       MessageType = "answer"
	MsgCandidates   MessageType = "candidates"
	MsgNegotiate    MessageType = "negotiate"
	MsgSelectAnswer MessageType = "select_answer"
	MsgHangup       MessageType = "hangup"
	MsgReject       MessageType = "reject"
)

// SessionDescription mirrors the {sdp, type} pair carried in invite,
// answer, and negotiate payloads.
type SessionDescription struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// Candidate is a single ICE candidate as carried in a candidates payload.
// An empty Candidate string denotes the end-of-candidates sentinel.
type Candidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// Envelope is the JSON structure exchanged with the signaling transport.
// Every outbound payload is extended with Version, CallID, and PartyID per
// spec.md §6; every inbound payload is parsed back into this same shape.
//
// Reason is a plain string rather than the call package's ErrorCode: this
// package knows nothing about call-domain error classification, only the
// wire shape. Callers convert at the boundary.
type Envelope struct {
	Type    MessageType `json:"type"`
	Version int         `json:"version"`
	CallID  string      `json:"call_id"`
	PartyID *string     `json:"party_id,omitempty"`

	// invite
	Offer    *SessionDescription `json:"offer,omitempty"`
	Lifetime int64               `json:"lifetime,omitempty"` // ms

	// answer
	Answer *SessionDescription `json:"answer,omitempty"`

	// candidates
	Candidates []Candidate `json:"candidates,omitempty"`

	// negotiate
	Description *SessionDescription `json:"description,omitempty"`

	// select_answer
	SelectedPartyID *string `json:"selected_party_id,omitempty"`

	// hangup
	Reason string `json:"reason,omitempty"`

	// LocalAge is not part of the wire format; it is stamped by the
	// transport when delivering an invite, reporting how long the event
	// has aged since it was originally sent (per spec.md §4.3's inbound
	// invite lifetime rule). Transports that cannot report this leave it
	// zero, which the router treats as "just arrived."
	LocalAge int64 `json:"-"`
}

// InviteLifetimeDefault is the advisory expiry attached to outbound invites.
const InviteLifetimeDefault = 60_000 // ms, per spec.md §4.2 step 5
