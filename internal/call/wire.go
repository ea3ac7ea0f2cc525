package call

import "github.com/khacquyetdang/matrix-call-engine/internal/wire"

// These are re-exported from internal/wire so the rest of this package can
// keep referring to the wire shapes unqualified. internal/wire is a leaf
// package with no dependency on call or transport, which is what lets
// internal/transport depend on it instead of on this package, breaking
// what would otherwise be an internal/call <-> internal/transport import
// cycle.
type (
	MessageType        = wire.MessageType
	SessionDescription = wire.SessionDescription
	Candidate          = wire.Candidate
	Envelope           = wire.Envelope
)

const (
	ProtocolVersion       = wire.ProtocolVersion
	InviteLifetimeDefault = wire.InviteLifetimeDefault

	MsgInvite       = wire.MsgInvite
	MsgAnswer       = wire.MsgAnswer
	MsgCandidates   = wire.MsgCandidates
	MsgNegotiate    = wire.MsgNegotiate
	MsgSelectAnswer = wire.MsgSelectAnswer
	MsgHangup       = wire.MsgHangup
	MsgReject       = wire.MsgReject
)
