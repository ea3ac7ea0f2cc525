package call

// ReplaceWith implements spec.md §4.6: the owner calls this on the losing
// call when it decides newCall supersedes it (typically because an inbound
// invite from the same counterparty arrived while this call was still
// placing an outbound invite, and our party id lost the tiebreak).
//
// It hands off in-flight local media to newCall so the replacement doesn't
// re-prompt the user, records the successor, emits Replaced, and hangs up
// silently (event-suppressed) so nothing cascades onto the wire.
func (c *Call) ReplaceWith(newCall *Call) {
	c.enqueue(func() {
		if c.state == StateEnded {
			return
		}
		switch c.state {
		case StateWaitLocalMedia:
			// newCall will adopt media once our acquisition completes; see
			// acquireLocalMedia's successor delegation below.
		case StateCreateOffer:
			if c.localStream != nil {
				newCall.enqueue(func() {
					if newCall.localStream == nil {
						newCall.localStream = c.localStream
						newCall.applyTrackGating()
					}
				})
				c.localStream = nil // ownership transferred; terminate must not stop it
			}
		}

		c.successor = newCall
		if !c.suppressEvents {
			c.listener.OnReplaced(newCall)
		}
		c.suppressEvents = true
		c.terminate(ErrReplaced, PartyRemote, nil)
	})
}

// delegateToSuccessor is consulted by acquireLocalMedia's continuation when
// a call was replaced mid-acquisition (spec.md §4.6: "any
// gotUserMediaForInvite or getUserMediaFailed delegates to the successor").
// Returns true if it handled delegation and the caller should stop.
func (c *Call) delegateToSuccessor(stream Stream, err error) bool {
	if c.successor == nil {
		return false
	}
	succ := c.successor
	succ.enqueue(func() {
		if err != nil || succ.localStream != nil {
			return
		}
		succ.localStream = stream
		succ.applyTrackGating()
	})
	return true
}
