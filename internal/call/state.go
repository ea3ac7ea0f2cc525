package call

// State is one of the canonical per-call states from spec.md §4.3. Ended is
// terminal and absorbing (invariant 1).
type State string

const (
	StateFledgling      State = "Fledgling"
	StateWaitLocalMedia State = "WaitLocalMedia"
	StateCreateOffer    State = "CreateOffer"
	StateInviteSent     State = "InviteSent"
	StateRinging        State = "Ringing"
	StateCreateAnswer   State = "CreateAnswer"
	StateConnecting     State = "Connecting"
	StateConnected      State = "Connected"
	StateEnded          State = "Ended"
)

// Direction is fixed once chosen for the life of the call.
type Direction string

const (
	DirectionInbound  Direction = "Inbound"
	DirectionOutbound Direction = "Outbound"
)

// CallType may be refined after inspecting remote tracks for inbound calls.
type CallType string

const (
	TypeVoice CallType = "Voice"
	TypeVideo CallType = "Video"
)

// Party disambiguates who caused a termination or other state-attributed
// event: the local user or the remote peer.
type Party string

const (
	PartyLocal  Party = "Local"
	PartyRemote Party = "Remote"
)

// transitions enumerates the forbidden-unless-listed transition table from
// spec.md §4.3. It is consulted only for assertion/logging purposes — most
// transitions in this implementation are driven by specific methods rather
// than a generic "apply(trigger)" dispatcher, but every setState call is
// checked against it so an unlisted transition is caught as a programmer
// error instead of silently corrupting the call.
var transitions = map[State]map[State]bool{
	StateFledgling:      {StateWaitLocalMedia: true, StateRinging: true, StateEnded: true},
	StateWaitLocalMedia: {StateCreateOffer: true, StateCreateAnswer: true, StateEnded: true},
	StateCreateOffer:    {StateInviteSent: true, StateEnded: true},
	StateInviteSent:     {StateConnecting: true, StateEnded: true},
	StateRinging:        {StateWaitLocalMedia: true, StateCreateAnswer: true, StateEnded: true},
	StateCreateAnswer:   {StateConnecting: true, StateConnected: true, StateEnded: true},
	StateConnecting:     {StateConnected: true, StateEnded: true},
	StateConnected:      {StateEnded: true},
	StateEnded:          {}, // absorbing
}

// allowedTransition reports whether moving from 'from' to 'to' is permitted.
func allowedTransition(from, to State) bool {
	if from == to {
		return false
	}
	next, ok := transitions[from]
	if !ok {
		return false
	}
	return next[to]
}
