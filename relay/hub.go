// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/chorusfm/chorus/logger"
	"github.com/chorusfm/chorus/remote"
)

const outboundQueue = 32

var hubUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Devices connect from anywhere on the household network.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub is the relay server: one room per session name, dumb fan-out
// within the room. It keeps no playback state and grants no authority
// beyond handing the active role to the first device in an empty
// room, so a lone device can play without a manual claim.
type Hub struct {
	log logger.LoggerInterface

	mu    sync.Mutex
	rooms map[string]*room

	server *http.Server
}

type room struct {
	name  string
	peers map[string]*peerConn
}

type peerConn struct {
	id   string
	name string
	ws   *websocket.Conn
	out  chan []byte
	done chan struct{}
}

func NewHub(log logger.LoggerInterface) *Hub {
	return &Hub{
		log:   log,
		rooms: make(map[string]*room),
	}
}

// Router returns the hub's HTTP surface: /ws/{session} plus a health
// probe, wrapped in recovery and access-log middleware.
func (h *Hub) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws/{session}", h.serveWS)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	wrapped := handlers.RecoveryHandler()(r)
	return handlers.LoggingHandler(logWriter{h.log}, wrapped)
}

// ListenAndServe runs the hub until ctx ends.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	h.server = &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- h.server.ListenAndServe() }()
	h.log.Printf("relay: hub listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return h.server.Shutdown(shutCtx)
	}
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["session"]
	deviceID := r.URL.Query().Get("device")
	deviceName := r.URL.Query().Get("name")
	if session == "" || deviceID == "" {
		http.Error(w, "missing session or device", http.StatusBadRequest)
		return
	}

	ws, err := hubUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Printf("relay: upgrade failed for %s: %v", deviceID, err)
		return
	}

	peer := &peerConn{
		id:   deviceID,
		name: deviceName,
		ws:   ws,
		out:  make(chan []byte, outboundQueue),
		done: make(chan struct{}),
	}
	first := h.join(session, peer)
	h.log.Printf("relay: %s (%s) joined session %q", deviceName, deviceID, session)

	go peer.writePump()

	if first {
		// Empty room: this device may as well be the player.
		h.deliver(peer, Envelope{Kind: KindGrantActive, To: deviceID, SentAt: remote.NowMillis()})
	}

	h.readPump(session, peer)

	h.leave(session, peer)
	close(peer.done)
	h.log.Printf("relay: %s left session %q", deviceID, session)
}

func (h *Hub) readPump(session string, peer *peerConn) {
	ws := peer.ws
	defer ws.Close()

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.log.Printf("relay: dropping undecodable frame from %s", peer.id)
			continue
		}
		if env.From == "" {
			env.From = peer.id
			if fixed, err := json.Marshal(env); err == nil {
				data = fixed
			}
		}
		h.route(session, peer, env, data)
	}
}

// route fans one envelope out: targeted envelopes reach exactly their
// addressee, everything else reaches every other room member.
func (h *Hub) route(session string, sender *peerConn, env Envelope, raw []byte) {
	h.mu.Lock()
	rm, ok := h.rooms[session]
	if !ok {
		h.mu.Unlock()
		return
	}
	var targets []*peerConn
	for id, p := range rm.peers {
		if p == sender {
			continue
		}
		if env.To != "" && env.To != id {
			continue
		}
		targets = append(targets, p)
	}
	h.mu.Unlock()

	for _, p := range targets {
		select {
		case p.out <- raw:
		default:
			// Slow consumer: drop rather than stall the room. State
			// frames are snapshots, the next one heals the gap.
			h.log.Printf("relay: dropping frame for slow device %s", p.id)
		}
	}
}

func (h *Hub) deliver(peer *peerConn, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case peer.out <- data:
	default:
	}
}

// join registers peer and reports whether it is alone in the room.
func (h *Hub) join(session string, peer *peerConn) (first bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[session]
	if !ok {
		rm = &room{name: session, peers: make(map[string]*peerConn)}
		h.rooms[session] = rm
	}
	first = len(rm.peers) == 0
	if old, ok := rm.peers[peer.id]; ok {
		// Same device reconnected before the old socket died.
		old.ws.Close()
	}
	rm.peers[peer.id] = peer
	return first
}

func (h *Hub) leave(session string, peer *peerConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[session]
	if !ok {
		return
	}
	if rm.peers[peer.id] == peer {
		delete(rm.peers, peer.id)
	}
	if len(rm.peers) == 0 {
		delete(h.rooms, session)
	}
}

func (p *peerConn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case data := <-p.out:
			_ = p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// logWriter adapts the app logger to the io.Writer the gorilla
// access-log middleware wants.
type logWriter struct {
	log logger.LoggerInterface
}

func (w logWriter) Write(p []byte) (int, error) {
	s := string(p)
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}
	w.log.Print(s)
	return len(p), nil
}
