package call

import "fmt"

// ErrorCode is one of the wire-visible error codes from spec.md §6. It
// doubles as a hangup reason when the termination is wire-visible.
type ErrorCode string

const (
	ErrUserHangup           ErrorCode = "UserHangup"
	ErrLocalOfferFailed     ErrorCode = "LocalOfferFailed"
	ErrNoUserMedia          ErrorCode = "NoUserMedia"
	ErrUnknownDevices       ErrorCode = "UnknownDevices"
	ErrSendInvite           ErrorCode = "SendInvite"
	ErrCreateAnswer         ErrorCode = "CreateAnswer"
	ErrSendAnswer           ErrorCode = "SendAnswer"
	ErrSetRemoteDescription ErrorCode = "SetRemoteDescription"
	ErrSetLocalDescription  ErrorCode = "SetLocalDescription"
	ErrAnsweredElsewhere    ErrorCode = "AnsweredElsewhere"
	ErrIceFailed            ErrorCode = "IceFailed"
	ErrInviteTimeout        ErrorCode = "InviteTimeout"
	ErrReplaced             ErrorCode = "Replaced"
	ErrSignallingFailed     ErrorCode = "SignallingFailed"
)

// CallError wraps one of the error codes above together with the
// underlying cause, following the teacher's fmt.Errorf("...: %w", err)
// wrapping convention.
type CallError struct {
	Code ErrorCode
	Err  error
}

func newCallError(code ErrorCode, err error) *CallError {
	return &CallError{Code: code, Err: err}
}

func (e *CallError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// isLocalSetupFailure reports whether code belongs to spec.md §7's "local
// setup failure" bucket: emit on the error channel, terminate, and emit no
// hangup event at all since the call never established.
func (c ErrorCode) isLocalSetupFailure() bool {
	switch c {
	case ErrLocalOfferFailed, ErrCreateAnswer, ErrSetLocalDescription,
		ErrSetRemoteDescription, ErrNoUserMedia:
		return true
	default:
		return false
	}
}

// isSignalingSendFailure reports whether code belongs to §7's "signaling
// send failure" bucket: cancel the pending transport event, emit an error,
// terminate — no additional wire hangup (the failed send already told the
// transport what it needs to know).
func (c ErrorCode) isSignalingSendFailure() bool {
	switch c {
	case ErrSendInvite, ErrSendAnswer, ErrSignallingFailed, ErrUnknownDevices:
		return true
	default:
		return false
	}
}
