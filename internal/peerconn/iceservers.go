package peerconn

import "github.com/pion/webrtc/v4"

// fallbackSTUNURL is the well-known STUN URL appended to the TURN/STUN
// server list when the caller supplied none and the transport permits
// fallback, per spec.md §6. Adapted from the teacher's stunServers slice in
// internal/webrtc/peer.go / internal/transport/peer.go, which hard-coded
// Google's public STUN servers for the same "zero infrastructure cost"
// reason this spec calls for a single well-known fallback.
const fallbackSTUNURL = "stun:turn.matrix.org"

// ICEServer names one ICE server's URLs plus optional TURN credentials.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// ResolveICEServers implements the lifecycle rule from spec.md §3: append
// the fallback STUN server to the caller-supplied list only when that list
// is empty and the transport permits fallback.
func ResolveICEServers(userServers []ICEServer, transportAllowsFallback bool) []ICEServer {
	if len(userServers) > 0 || !transportAllowsFallback {
		return userServers
	}
	return []ICEServer{{URLs: []string{fallbackSTUNURL}}}
}

// NewConnection creates a *webrtc.PeerConnection configured with the given
// ICE servers and wraps it as a PeerConnection. Grounded on the teacher's
// NewPeerConnection (internal/webrtc/peer.go), generalized from a fixed
// STUN-only slice to the caller-resolved server list.
func NewConnection(servers []ICEServer) (PeerConnection, error) {
	iceServers := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, err
	}
	return New(pc), nil
}
