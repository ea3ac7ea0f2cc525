package callstats

import (
	"testing"

	"github.com/khacquyetdang/matrix-call-engine/internal/call"
)

// fakeListener records every event it receives, so tests can assert
// Reporter both counts and forwards.
type fakeListener struct {
	states  []call.State
	errs    []*call.CallError
	hangups []*call.Call
	holds   []bool
	replace []*call.Call
}

func (f *fakeListener) OnState(newState, _ call.State)  { f.states = append(f.states, newState) }
func (f *fakeListener) OnHoldUnhold(onHold bool)         { f.holds = append(f.holds, onHold) }
func (f *fakeListener) OnError(err *call.CallError)      { f.errs = append(f.errs, err) }
func (f *fakeListener) OnHangup(c *call.Call)            { f.hangups = append(f.hangups, c) }
func (f *fakeListener) OnReplaced(newCall *call.Call)    { f.replace = append(f.replace, newCall) }

var _ call.Listener = (*fakeListener)(nil)

func TestReporter_OnState_CountsOnlyConnectedAndForwards(t *testing.T) {
	inner := &fakeListener{}
	r := Reporter{Inner: inner}

	before := Stats.Connected.Load()
	r.OnState(call.StateConnected, call.StateConnecting)
	r.OnState(call.StateInviteSent, call.StateCreateOffer)

	if got := Stats.Connected.Load() - before; got != 1 {
		t.Fatalf("expected Connected to increment exactly once, got delta %d", got)
	}
	if len(inner.states) != 2 {
		t.Fatalf("expected both OnState calls forwarded to Inner, got %d", len(inner.states))
	}
}

func TestReporter_OnError_CountsAndForwards(t *testing.T) {
	inner := &fakeListener{}
	r := Reporter{Inner: inner}

	before := Stats.Errors.Load()
	cerr := &call.CallError{}
	r.OnError(cerr)

	if got := Stats.Errors.Load() - before; got != 1 {
		t.Fatalf("expected Errors to increment exactly once, got delta %d", got)
	}
	if len(inner.errs) != 1 || inner.errs[0] != cerr {
		t.Fatalf("expected OnError forwarded to Inner unchanged, got %+v", inner.errs)
	}
}

func TestReporter_OnHangup_CountsAndForwards(t *testing.T) {
	inner := &fakeListener{}
	r := Reporter{Inner: inner}

	before := Stats.Ended.Load()
	r.OnHangup(nil)

	if got := Stats.Ended.Load() - before; got != 1 {
		t.Fatalf("expected Ended to increment exactly once, got delta %d", got)
	}
	if len(inner.hangups) != 1 {
		t.Fatalf("expected OnHangup forwarded to Inner, got %d calls", len(inner.hangups))
	}
}

func TestReporter_WithNilInner_NeverPanics(t *testing.T) {
	r := Reporter{}
	r.OnState(call.StateConnected, call.StateConnecting)
	r.OnHoldUnhold(true)
	r.OnError(&call.CallError{})
	r.OnHangup(nil)
	r.OnReplaced(nil)
}
