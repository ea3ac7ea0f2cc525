package peerconn

import "testing"

func TestResolveICEServers_AppendsFallbackOnlyWhenEmptyAndAllowed(t *testing.T) {
	got := ResolveICEServers(nil, true)
	if len(got) != 1 || got[0].URLs[0] != fallbackSTUNURL {
		t.Fatalf("expected the fallback STUN server when none supplied, got %+v", got)
	}
}

func TestResolveICEServers_NoFallbackWhenTransportDisallows(t *testing.T) {
	got := ResolveICEServers(nil, false)
	if len(got) != 0 {
		t.Fatalf("expected no servers when fallback is disallowed and none supplied, got %+v", got)
	}
}

func TestResolveICEServers_UserServersTakePrecedence(t *testing.T) {
	user := []ICEServer{{URLs: []string{"turn:example.org"}, Username: "u", Credential: "p"}}
	got := ResolveICEServers(user, true)
	if len(got) != 1 || got[0].URLs[0] != "turn:example.org" {
		t.Fatalf("expected user-supplied servers to be returned unchanged, got %+v", got)
	}
}
