package call

import (
	"fmt"
	"testing"
	"time"
)

// TestCandidateQueue_RetriesWithBackoffThenSucceeds is scenario S6: three
// candidates (two real plus the end-of-candidates sentinel) are buffered
// while the transport fails the first two send attempts, then the queue's
// backoff retry succeeds, delivering all three in one ordered batch with
// tries reset to 0 afterward.
func TestCandidateQueue_RetriesWithBackoffThenSucceeds(t *testing.T) {
	c, _, tr, _ := newTestCall(alwaysAcquire)
	c.Direction = DirectionOutbound

	// Drive the queue into a ready-to-flush state without a full
	// negotiation: past Ringing, with an invite already marked sent, which
	// is maybeSchedule's and flush's precondition.
	c.enqueue(func() {
		c.state = StateInviteSent
		c.inviteOrAnswerSent = true
	})
	c.sync()

	tr.mu.Lock()
	tr.failCount = 2
	tr.sendErr = fmt.Errorf("mock: transient candidates send failure")
	tr.mu.Unlock()

	first := Candidate{Candidate: "candidate:1 1 UDP 1 1.2.3.4 1 typ host", SDPMid: strPtr("0")}
	second := Candidate{Candidate: "candidate:2 1 UDP 1 1.2.3.5 1 typ host", SDPMid: strPtr("0")}

	c.enqueue(func() {
		c.queue.enqueue(first)
		c.queue.enqueue(second)
		c.queue.enqueueEndOfCandidates()
	})
	c.sync()

	// The initial schedule waits 2s (outbound direction), then each failed
	// attempt backs off 500ms*2^tries before retrying (1s, then 2s) — about
	// 5s total before the third attempt succeeds. Allow generous headroom.
	deadline := time.Now().Add(8 * time.Second)
	for len(tr.sentOfType(MsgCandidates)) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if got := tr.attemptCount(); got < 3 {
		t.Fatalf("expected at least 3 send attempts (2 failures + 1 success), got %d", got)
	}

	sent := tr.sentOfType(MsgCandidates)
	if len(sent) != 1 {
		t.Fatalf("expected exactly one successful candidates envelope, got %d", len(sent))
	}
	if len(sent[0].Candidates) != 3 {
		t.Fatalf("expected all 3 buffered candidates (2 + end-of-candidates) in one batch, got %d",
			len(sent[0].Candidates))
	}
	if sent[0].Candidates[0].Candidate != first.Candidate || sent[0].Candidates[1].Candidate != second.Candidate {
		t.Fatalf("expected candidate order preserved across retry, got %+v", sent[0].Candidates)
	}
	if sent[0].Candidates[2].Candidate != "" {
		t.Fatalf("expected the end-of-candidates sentinel last, got %+v", sent[0].Candidates[2])
	}

	done := make(chan struct{})
	var tries int
	c.enqueue(func() {
		tries = c.queue.tries
		close(done)
	})
	<-done
	if tries != 0 {
		t.Fatalf("expected tries reset to 0 after a successful flush, got %d", tries)
	}
}

// TestCandidateQueue_AbandonsAfterFiveTries covers the other half of spec.md
// §4.1: once a flush attempt pushes tries past 5, the queue abandons and
// resets rather than scheduling yet another backoff retry. tries is seeded
// at 5 directly (simulating five prior failures) so the one attempt this
// test drives is the abandoning one, without waiting out the real
// exponential backoff delays five retries would otherwise take.
func TestCandidateQueue_AbandonsAfterFiveTries(t *testing.T) {
	c, _, tr, _ := newTestCall(alwaysAcquire)
	c.Direction = DirectionOutbound

	c.enqueue(func() {
		c.state = StateInviteSent
		c.inviteOrAnswerSent = true
	})
	c.sync()

	tr.mu.Lock()
	tr.failCount = 1 << 30 // always fail
	tr.sendErr = fmt.Errorf("mock: permanent candidates send failure")
	tr.mu.Unlock()

	c.enqueue(func() {
		c.queue.tries = 5
		c.queue.buf = []Candidate{{Candidate: "candidate:1 1 UDP 1 1.2.3.4 1 typ host", SDPMid: strPtr("0")}}
	})
	c.enqueue(func() { c.queue.flush() })
	c.sync()

	deadline := time.Now().Add(time.Second)
	for {
		done := make(chan struct{})
		var tries int
		c.enqueue(func() {
			tries = c.queue.tries
			close(done)
		})
		<-done
		if tries == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected tries to reset to 0 after abandoning, still at %d", tries)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if len(tr.sentOfType(MsgCandidates)) != 0 {
		t.Fatalf("a permanently failing transport must never record a successful send")
	}
}
