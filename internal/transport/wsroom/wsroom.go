// Package wsroom implements a SignalingTransport over a single persistent
// WebSocket connection shared by every call in one signaling room. It is
// the direct generalization of the teacher's internal/signaling package:
// the same gorilla/websocket server/dial split (internal/signaling/server.go,
// internal/signaling/ws.go) and the same single-writer-goroutine shape as
// internal/transport/sender.go, but carrying JSON call.Envelope values
// instead of binary tunnel packets, and routing by call_id to many
// concurrently live calls instead of exchanging exactly one SDP pair.
package wsroom

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/khacquyetdang/matrix-call-engine/internal/call"
	"github.com/khacquyetdang/matrix-call-engine/internal/util"
)

const outboxSize = 64

type outboundJob struct {
	callID  string
	msgType call.MessageType
	env     call.Envelope
	result  chan error
}

// NewCallFunc constructs the Call an unrecognized inbound invite should be
// routed to. Returning nil drops the invite.
type NewCallFunc func(env call.Envelope) *call.Call

// Room is one WebSocket connection serving as a SignalingTransport for every
// call placed or received over it.
type Room struct {
	conn    *websocket.Conn
	newCall NewCallFunc

	mu    sync.Mutex
	calls map[string]*call.Call

	outbox chan outboundJob
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRoom wraps an already-established WebSocket connection (server- or
// client-side — gorilla/websocket makes no distinction once upgraded or
// dialed) as a signaling room and starts its read/write goroutines.
func NewRoom(ctx context.Context, conn *websocket.Conn, newCall NewCallFunc) *Room {
	rCtx, cancel := context.WithCancel(ctx)
	r := &Room{
		conn:    conn,
		newCall: newCall,
		calls:   make(map[string]*call.Call),
		outbox:  make(chan outboundJob, outboxSize),
		ctx:     rCtx,
		cancel:  cancel,
	}
	go r.writeLoop()
	go r.readLoop()
	return r
}

// DialRoom connects to a room's WebSocket endpoint as a client, grounded on
// the teacher's signaling.Connect.
func DialRoom(ctx context.Context, url string, newCall NewCallFunc) (*Room, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("wsroom: dial failed: %w", err)
	}
	return NewRoom(ctx, conn, newCall), nil
}

// Listener accepts inbound WebSocket connections and turns each into a Room,
// grounded on the teacher's internal/signaling.Server (PIN-gated upgrade).
type Listener struct {
	pin      string
	upgrader websocket.Upgrader
}

// NewListener builds a Listener. An empty pin disables the check.
func NewListener(pin string) *Listener {
	return &Listener{
		pin:      pin,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// HandleUpgrade upgrades one HTTP request into a Room. Use as (or from) an
// http.HandlerFunc registered on the signaling endpoint.
func (l *Listener) HandleUpgrade(w http.ResponseWriter, r *http.Request, newCall NewCallFunc) (*Room, error) {
	if l.pin != "" && r.URL.Query().Get("pin") != l.pin {
		http.Error(w, "invalid pin", http.StatusUnauthorized)
		return nil, fmt.Errorf("wsroom: invalid pin")
	}
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("wsroom: upgrade failed: %w", err)
	}
	// The request context is cancelled as soon as the HTTP handler returns,
	// so the room keeps its values but not its cancellation.
	return NewRoom(context.WithoutCancel(r.Context()), conn, newCall), nil
}

// Register associates an already-constructed outbound call with this room so
// inbound replies addressed to its call_id route back to it.
func (r *Room) Register(c *call.Call) {
	r.mu.Lock()
	r.calls[c.CallID] = c
	r.mu.Unlock()
}

// Send implements transport.SignalingTransport.
func (r *Room) Send(ctx context.Context, roomID, callID string, env call.Envelope) error {
	result := make(chan error, 1)
	job := outboundJob{callID: callID, msgType: env.Type, env: env, result: result}
	select {
	case r.outbox <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.ctx.Done():
		return fmt.Errorf("wsroom: room closed")
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelPending implements transport.SignalingTransport: it drains any
// not-yet-written jobs of msgType for callID out of the outbox, so a
// terminated call's late failure doesn't race a send it already gave up on.
func (r *Room) CancelPending(callID string, msgType call.MessageType) {
	var kept []outboundJob
	for {
		select {
		case job := <-r.outbox:
			if job.callID == callID && job.msgType == msgType {
				job.result <- fmt.Errorf("wsroom: cancelled")
				continue
			}
			kept = append(kept, job)
		default:
			for _, job := range kept {
				r.outbox <- job
			}
			return
		}
	}
}

// IsUnknownDevicesError implements transport.SignalingTransport. A bare
// WebSocket room has no device-targeting concept, so this is always false.
func (r *Room) IsUnknownDevicesError(error) bool { return false }

// Close shuts down the room's connection and background goroutines.
func (r *Room) Close() error {
	r.cancel()
	return r.conn.Close()
}

func (r *Room) writeLoop() {
	for {
		select {
		case job := <-r.outbox:
			err := r.conn.WriteJSON(job.env)
			if err != nil {
				util.LogWarning("wsroom: write failed for call %s (%s): %v", job.callID, job.msgType, err)
			}
			job.result <- err
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Room) readLoop() {
	for {
		var env call.Envelope
		if err := r.conn.ReadJSON(&env); err != nil {
			util.LogWarning("wsroom: read failed, closing room: %v", err)
			r.cancel()
			return
		}
		r.route(env)
	}
}

func (r *Room) route(env call.Envelope) {
	r.mu.Lock()
	c, ok := r.calls[env.CallID]
	r.mu.Unlock()

	if !ok {
		if env.Type != call.MsgInvite || r.newCall == nil {
			util.LogDebug("wsroom: dropping %s for unknown call %s", env.Type, env.CallID)
			return
		}
		c = r.newCall(env)
		if c == nil {
			return
		}
		r.mu.Lock()
		r.calls[env.CallID] = c
		r.mu.Unlock()
		c.InitWithInvite(env, time.Duration(env.LocalAge)*time.Millisecond)
		return
	}
	c.HandleInbound(env)
}
