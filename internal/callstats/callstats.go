// Package callstats is a supplemental call-lifecycle stats reporter,
// adapted from the teacher's process-wide atomic counter singleton and
// periodic pterm reporter (internal/util/stats.go), generalized from
// byte/connection counts to call outcome counts.
package callstats

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"

	"github.com/khacquyetdang/matrix-call-engine/internal/call"
)

// Stats is the process-wide call-lifecycle counter.
var Stats = &stats{}

type stats struct {
	Connected atomic.Int64 // cumulative calls that reached Connected
	Ended     atomic.Int64 // cumulative calls that reached Ended
	Errors    atomic.Int64 // cumulative CallError events emitted
}

// Reporter is a call.Listener that feeds Stats and forwards every event
// unchanged to Inner, so callers can observe stats without replacing their
// real Listener.
type Reporter struct {
	Inner call.Listener
}

func (r Reporter) OnState(newState, oldState call.State) {
	if newState == call.StateConnected {
		Stats.Connected.Add(1)
	}
	if r.Inner != nil {
		r.Inner.OnState(newState, oldState)
	}
}

func (r Reporter) OnHoldUnhold(nowOnHold bool) {
	if r.Inner != nil {
		r.Inner.OnHoldUnhold(nowOnHold)
	}
}

func (r Reporter) OnError(err *call.CallError) {
	Stats.Errors.Add(1)
	if r.Inner != nil {
		r.Inner.OnError(err)
	}
}

func (r Reporter) OnHangup(c *call.Call) {
	Stats.Ended.Add(1)
	if r.Inner != nil {
		r.Inner.OnHangup(c)
	}
}

func (r Reporter) OnReplaced(newCall *call.Call) {
	if r.Inner != nil {
		r.Inner.OnReplaced(newCall)
	}
}

var _ call.Listener = Reporter{}

// StartReporter launches a goroutine that logs call stats every 10 seconds,
// mirroring the teacher's StartStatsReporter cadence and pterm usage. It
// stops when ctx is cancelled.
func StartReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevConnected, prevEnded, prevErrors int64
		for {
			select {
			case <-ticker.C:
				connected := Stats.Connected.Load()
				ended := Stats.Ended.Load()
				errs := Stats.Errors.Load()

				if connected != prevConnected || ended != prevEnded || errs != prevErrors {
					pterm.DefaultLogger.Info(fmt.Sprintf(
						"calls: %d connected (+%d) | %d ended (+%d) | %d errors (+%d)",
						connected, connected-prevConnected,
						ended, ended-prevEnded,
						errs, errs-prevErrors,
					))
				}

				prevConnected, prevEnded, prevErrors = connected, ended, errs

			case <-ctx.Done():
				return
			}
		}
	}()
}
