// Package transport names the signaling-transport boundary from spec.md §1:
// room event send/receive, modeled as a narrow interface the call engine
// depends on without knowing the implementation. Concrete implementations
// live in the wsroom and matrixroom subpackages; a third, in-process mock
// lives in internal/call's test files.
package transport

import (
	"context"

	"github.com/khacquyetdang/matrix-call-engine/internal/wire"
)

// SignalingTransport is the narrow interface the call engine drives, per
// spec.md §2's component table and §6's "Process-wide settings" /
// "SignalingTransport (abstract)" description. It is expressed in terms of
// internal/wire's payload types rather than internal/call's so that this
// package never needs to import internal/call: call depends on transport
// for this interface, and transport depends on wire for the envelope shape,
// but transport never depends back on call.
type SignalingTransport interface {
	// Send delivers an envelope for the given call to the room. It blocks
	// until the send completes or ctx is cancelled.
	Send(ctx context.Context, roomID, callID string, env wire.Envelope) error

	// CancelPending asks the transport to drop/deduplicate a pending send
	// for this call_id and message type, per spec.md §7's signaling-send-
	// failure handling. Best-effort; implementations may no-op.
	CancelPending(callID string, msgType wire.MessageType)

	// IsUnknownDevicesError reports whether err is the transport's
	// distinguished "unknown devices" sentinel (spec.md §6), which the
	// engine maps to the UnknownDevices error code rather than a generic
	// SendInvite/SignallingFailed failure.
	IsUnknownDevicesError(err error) bool
}
