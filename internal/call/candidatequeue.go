package call

import "time"

// candidateQueue implements spec.md §4.1: buffer local ICE candidates,
// batch-send them, retry with exponential backoff, abandon after too many
// tries. Grounded on the teacher's internal/transport/sender.go single-
// writer goroutine + inbox/backoff shape, generalized from backpressure-
// driven draining to timer-driven batched retry.
//
// Every method is called only from the owning Call's engine loop, so the
// queue itself needs no locking — it is exactly as single-threaded as the
// Call it belongs to.
type candidateQueue struct {
	call  *Call
	buf   []Candidate
	tries int
	timer *time.Timer
}

func newCandidateQueue(c *Call) *candidateQueue {
	return &candidateQueue{call: c}
}

// enqueue appends a candidate to the buffer and schedules a flush if one
// isn't already pending, per spec.md §4.1.
func (q *candidateQueue) enqueue(cand Candidate) {
	q.buf = append(q.buf, cand)
	q.maybeSchedule()
}

// enqueueEndOfCandidates enqueues the empty-string sentinel exactly once
// per call (invariant 3/4).
func (q *candidateQueue) enqueueEndOfCandidates() {
	c := q.call
	if c.sentEndOfCandidates {
		return
	}
	c.sentEndOfCandidates = true
	q.enqueue(Candidate{Candidate: ""})
}

// maybeSchedule arms a flush timer if the call is ready to send candidates
// and no flush is already scheduled/in flight.
func (q *candidateQueue) maybeSchedule() {
	c := q.call
	if c.state == StateRinging || !c.inviteOrAnswerSent {
		return // ride the next description instead
	}
	if q.tries != 0 || q.timer != nil {
		return // a flush is already scheduled or in flight
	}
	delay := 2000 * time.Millisecond // outbound: callee still deciding
	if c.Direction == DirectionInbound {
		delay = 500 * time.Millisecond
	}
	q.timer = time.AfterFunc(delay, func() {
		c.enqueue(func() {
			q.timer = nil
			q.flush()
		})
	})
}

// discard drops the buffer and cancels any scheduled flush — used when the
// candidates are about to ride an invite/answer/negotiate description
// instead (spec.md §4.1's "two-phase hold" rule).
func (q *candidateQueue) discard() {
	q.buf = nil
	q.tries = 0
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

// flush sends the entire buffer as one candidates message. On failure the
// batch is re-prepended (preserving order) and retried with backoff; after
// more than 5 total tries the queue is abandoned (spec.md §4.1).
func (q *candidateQueue) flush() {
	c := q.call
	if len(q.buf) == 0 {
		return
	}
	if c.state == StateRinging || !c.inviteOrAnswerSent {
		return
	}

	batch := q.buf
	q.buf = nil
	q.tries++

	env := Envelope{
		Type: MsgCandidates, Version: ProtocolVersion, CallID: c.CallID,
		PartyID: strPtr(c.OurPartyID), Candidates: batch,
	}
	c.asyncSend(env, MsgCandidates, func(err error) {
		if err != nil {
			q.buf = append(append([]Candidate{}, batch...), q.buf...)
			if q.tries > 5 {
				q.tries = 0 // abandon; future enqueues may retry
				return
			}
			backoff := 500 * time.Millisecond * time.Duration(1<<uint(q.tries))
			q.timer = time.AfterFunc(backoff, func() {
				c.enqueue(func() {
					q.timer = nil
					q.flush()
				})
			})
			return
		}

		q.tries = 0
		if len(q.buf) > 0 {
			q.flush() // recursively flush anything that arrived meanwhile
		}
	})
}
