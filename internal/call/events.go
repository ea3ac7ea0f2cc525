package call

// Listener receives the events a Call emits to its owner, per spec.md §6.
// Placing a call without a Listener is a programmer error and must fail
// fast before any side effect (spec.md §7's prerequisite guard).
type Listener interface {
	OnState(newState, oldState State)
	OnHoldUnhold(nowOnHold bool)
	OnError(err *CallError)
	OnHangup(c *Call)
	OnReplaced(newCall *Call)
}

// NopListener is a Listener that discards every event. It exists only for
// tests that don't care about event delivery; production callers must
// supply a real Listener (see Options.Listener / ErrNoListener).
type NopListener struct{}

func (NopListener) OnState(State, State)     {}
func (NopListener) OnHoldUnhold(bool)        {}
func (NopListener) OnError(*CallError)       {}
func (NopListener) OnHangup(*Call)           {}
func (NopListener) OnReplaced(*Call)         {}

var _ Listener = NopListener{}
