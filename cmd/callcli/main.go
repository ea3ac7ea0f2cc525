// Callcli — CLI entry point.
//
// This tool places or answers one voice/video call over a WebSocket
// signaling room, demonstrating the call engine end to end: state
// transitions, perfect-negotiation, and ICE trickling are all driven by
// internal/call; callcli only supplies the WebSocket room, the pion
// PeerConnection, and a console Listener.
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (-role, -wsPort, -wsUrl, -wsListen, -video).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"

	"github.com/khacquyetdang/matrix-call-engine/internal/call"
	"github.com/khacquyetdang/matrix-call-engine/internal/callstats"
	"github.com/khacquyetdang/matrix-call-engine/internal/peerconn"
	"github.com/khacquyetdang/matrix-call-engine/internal/transport/wsroom"
	"github.com/khacquyetdang/matrix-call-engine/internal/util"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	role := flag.String("role", "", "Role: host or client")
	wsPortFlag := flag.Int("wsPort", 0, "WebSocket signaling server port (host only)")
	wsURLFlag := flag.String("wsUrl", "", "WebSocket URL to connect to (client only)")
	wsListenFlag := flag.Bool("wsListen", false, "Listen on all network interfaces (host only)")
	video := flag.Bool("video", false, "Place a video call instead of voice (client only)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Callcli — v%s", version))
	pterm.Println()

	switch *role {
	case "":
		runInteractive(ctx, *video)
	case "host":
		wsAddr := ":0"
		switch {
		case *wsListenFlag:
			wsAddr = fmt.Sprintf(":%d", *wsPortFlag)
		case *wsPortFlag > 0:
			wsAddr = fmt.Sprintf("127.0.0.1:%d", *wsPortFlag)
		}
		runHost(ctx, wsAddr)
	case "client":
		if *wsURLFlag == "" {
			util.LogError("missing -wsUrl for client role")
			os.Exit(1)
		}
		wsURL, err := normalizeWSURL(*wsURLFlag)
		if err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		runClient(ctx, wsURL, *video)
	default:
		util.LogError("invalid -role: must be 'host' or 'client'")
		os.Exit(1)
	}

	util.LogInfo("callcli exiting")
}

func runInteractive(ctx context.Context, defaultVideo bool) {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Host  — wait for an incoming call", "Client — place a call"}).
		WithDefaultText("Select your role").
		Show()
	pterm.Println()

	if strings.HasPrefix(role, "Host") {
		runHost(ctx, ":0")
		return
	}
	wsURL := askURL()
	runClient(ctx, wsURL, defaultVideo)
}

// runHost starts a WebSocket signaling listener and waits for one inbound
// invite, answering it once it arrives.
func runHost(ctx context.Context, wsAddr string) {
	listener := wsroom.NewListener("")
	srv := &http.Server{Addr: wsAddr}

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		var room *wsroom.Room
		newRoom, err := listener.HandleUpgrade(w, r, func(env call.Envelope) *call.Call {
			c := newCall("", room)
			go func() {
				// The room runs InitWithInvite right after this returns.
				for c.State() == call.StateFledgling {
					time.Sleep(10 * time.Millisecond)
				}
				if err := c.Answer(); err != nil {
					util.LogError("failed to answer call: %v", err)
				}
			}()
			return c
		})
		if err != nil {
			util.LogWarning("upgrade failed: %v", err)
			return
		}
		room = newRoom
	})

	callstats.StartReporter(ctx)
	util.LogInfo("listening for signaling connections on %s", wsAddr)

	go func() { _ = srv.ListenAndServe() }()
	defer srv.Close()

	<-ctx.Done()
}

// runClient dials a signaling room and places one outbound call.
func runClient(ctx context.Context, wsURL string, video bool) {
	var roomRef *wsroom.Room
	room, err := wsroom.DialRoom(ctx, wsURL, func(env call.Envelope) *call.Call {
		return newCall("", roomRef)
	})
	if err != nil {
		util.LogError("failed to connect signaling room: %v", err)
		os.Exit(1)
	}
	roomRef = room
	defer room.Close()

	callstats.StartReporter(ctx)

	c := newCall("", room)
	room.Register(c)
	placeErr := func() error {
		if video {
			return c.PlaceVideoCall()
		}
		return c.PlaceVoiceCall()
	}()
	if placeErr != nil {
		util.LogError("failed to place call: %v", placeErr)
		os.Exit(1)
	}

	<-ctx.Done()
}

// newCall builds a Call wired to a pion PeerConnection and a console
// Listener wrapped in the stats reporter. Inbound calls are driven by the
// room's own InitWithInvite once constructed; outbound calls additionally
// register themselves and call Place*Call.
func newCall(roomID string, room *wsroom.Room) *call.Call {
	pc, err := peerconn.NewConnection(peerconn.ResolveICEServers(nil, true))
	if err != nil {
		util.LogError("failed to create peer connection: %v", err)
		os.Exit(1)
	}

	return call.New(call.Options{
		RoomID:     roomID,
		OurPartyID: uuid.NewString(),
		Transport:  room,
		PeerConn:   pc,
		Listener:   callstats.Reporter{Inner: consoleListener{}},
		Acquire:    stubAcquirer,
	})
}

// stubAcquirer stands in for real camera/microphone acquisition, which is an
// external collaborator outside this engine's scope; it returns an empty
// stream so the negotiation path can be exercised without hardware.
func stubAcquirer(ctx context.Context, constraints call.MediaConstraints) (call.Stream, error) {
	return emptyStream{}, nil
}

type emptyStream struct{}

func (emptyStream) Tracks() []call.Track { return nil }

// consoleListener prints call events to the terminal via the shared pterm
// logger, following the teacher's util.Log* conventions.
type consoleListener struct{}

func (consoleListener) OnState(newState, oldState call.State) {
	util.LogInfo("call: %s -> %s", oldState, newState)
}

func (consoleListener) OnHoldUnhold(nowOnHold bool) {
	util.LogInfo("call: hold=%v", nowOnHold)
}

func (consoleListener) OnError(err *call.CallError) {
	util.LogError("call error: %v", err)
}

func (consoleListener) OnHangup(c *call.Call) {
	util.LogSuccess("call %s ended", c.CallID)
}

func (consoleListener) OnReplaced(newCall *call.Call) {
	util.LogInfo("call replaced by %s", newCall.CallID)
}

var _ call.Listener = consoleListener{}

// normalizeWSURL validates and normalizes a raw WebSocket URL string.
func normalizeWSURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}
	scheme := "wss"
	if u.Scheme == "ws" || u.Scheme == "wss" {
		scheme = u.Scheme
	}
	return fmt.Sprintf("%s://%s/ws", scheme, u.Host), nil
}

// askURL prompts the user for a valid WebSocket URL until one is entered.
func askURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("WebSocket URL (e.g. wss://***.asse.devtunnels.ms/ws)").
			Show()

		wsURL, err := normalizeWSURL(raw)
		if err == nil {
			pterm.Println()
			return wsURL
		}
		pterm.Println()
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}
