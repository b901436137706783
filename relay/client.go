// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

// Package relay carries session signaling over websockets: a Client
// that implements remote.Channel against a relay server, and an
// embeddable Hub that is that server. The relay stores nothing and
// decides nothing; it fans envelopes out within a session.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chorusfm/chorus/logger"
	"github.com/chorusfm/chorus/remote"
)

// Envelope is the relay wire frame. Payload is kind-specific:
// remote.Command for command, remote.State for state, empty
// otherwise.
type Envelope struct {
	Kind    string          `json:"kind"`
	From    string          `json:"from"`
	To      string          `json:"to,omitempty"`
	SentAt  int64           `json:"sentAt"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	KindCommand      = "command"
	KindState        = "state"
	KindStop         = "stop"
	KindGrantActive  = "grantActive"
	KindStateRequest = "stateRequest"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 25 * time.Second
	minReconnect   = time.Second
	maxReconnect   = 30 * time.Second
	handshakeLimit = 10 * time.Second
)

// Client connects one device to a relay session. Reconnecting is the
// client's job: on every (re)connect it asks the session's active
// player for a fresh snapshot, so a rejoining device renders current
// state without waiting for a tick.
//
// Register handlers before Run; they are invoked on the client's
// receive goroutine.
type Client struct {
	serverURL  string
	session    string
	deviceID   string
	deviceName string
	log        logger.LoggerInterface

	writeMu sync.Mutex
	conn    *websocket.Conn

	stateMu   sync.Mutex
	connected bool
	closed    bool

	onCommand func(remote.Command)
	onState   func(remote.State)
	onStop    func(string)
	onGrant   func()
	onReq     func(string)
}

var _ remote.Channel = (*Client)(nil)

// NewClient prepares a client for ws(s)://server/ws/{session}.
// serverURL carries the scheme and host, e.g. "ws://hi.fi:8484".
func NewClient(serverURL, session, deviceID, deviceName string, log logger.LoggerInterface) *Client {
	return &Client{
		serverURL:  serverURL,
		session:    session,
		deviceID:   deviceID,
		deviceName: deviceName,
		log:        log,
	}
}

// Run dials and keeps the connection alive until ctx ends or Close is
// called. It returns when the client is done for good.
func (c *Client) Run(ctx context.Context) {
	backoff := minReconnect
	for {
		if c.isClosed() || ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.log.Printf("relay: connect failed: %v (retrying in %v)", err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxReconnect {
				backoff = maxReconnect
			}
			continue
		}
		backoff = minReconnect

		c.setConn(conn)
		c.log.Printf("relay: connected to session %q", c.session)

		// A fresh connection knows nothing; ask whoever is active.
		if err := c.SendStateRequest(); err != nil {
			c.log.PrintError("relay state request", err)
		}

		c.readPump(ctx, conn)

		c.setConn(nil)
		if !c.isClosed() && ctx.Err() == nil {
			c.log.Printf("relay: connection lost, reconnecting")
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return nil, fmt.Errorf("[relay] bad server url: %v", err)
	}
	u.Path = "/ws/" + c.session
	q := u.Query()
	q.Set("device", c.deviceID)
	q.Set("name", c.deviceName)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeLimit}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) readPump(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go c.pingLoop(conn, pingDone)

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Printf("relay: dropping undecodable envelope: %v", err)
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) dispatch(env Envelope) {
	switch env.Kind {
	case KindCommand:
		var cmd remote.Command
		if err := json.Unmarshal(env.Payload, &cmd); err != nil {
			c.log.Printf("relay: bad command payload: %v", err)
			return
		}
		if c.onCommand != nil {
			c.onCommand(cmd)
		}
	case KindState:
		var st remote.State
		if err := json.Unmarshal(env.Payload, &st); err != nil {
			c.log.Printf("relay: bad state payload: %v", err)
			return
		}
		if c.onState != nil {
			c.onState(st)
		}
	case KindStop:
		if c.onStop != nil {
			c.onStop(env.From)
		}
	case KindGrantActive:
		if env.To != "" && env.To != c.deviceID {
			return
		}
		if c.onGrant != nil {
			c.onGrant()
		}
	case KindStateRequest:
		if c.onReq != nil {
			c.onReq(env.From)
		}
	default:
		c.log.Printf("relay: unknown envelope kind %q", env.Kind)
	}
}

func (c *Client) send(kind, to string, payload any) error {
	env := Envelope{
		Kind:   kind,
		From:   c.deviceID,
		To:     to,
		SentAt: remote.NowMillis(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("[relay] marshal %s: %v", kind, err)
		}
		env.Payload = data
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("[relay] not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(env)
}

func (c *Client) SendCommand(cmd remote.Command) error {
	return c.send(KindCommand, cmd.To, cmd)
}

func (c *Client) SendState(st remote.State) error {
	return c.send(KindState, "", st)
}

func (c *Client) SendStop() error {
	return c.send(KindStop, "", nil)
}

func (c *Client) SendStateRequest() error {
	return c.send(KindStateRequest, "", nil)
}

func (c *Client) SendGrantActive(to string) error {
	return c.send(KindGrantActive, to, nil)
}

func (c *Client) OnCommand(fn func(remote.Command)) { c.onCommand = fn }

func (c *Client) OnStateBroadcast(fn func(remote.State)) { c.onState = fn }

func (c *Client) OnStopPlayback(fn func(string)) { c.onStop = fn }

func (c *Client) OnBecomeActivePlayer(fn func()) { c.onGrant = fn }

func (c *Client) OnStateRequest(fn func(string)) { c.onReq = fn }

func (c *Client) IsConnected() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.connected
}

// Close tears the connection down for good; Run returns.
func (c *Client) Close() error {
	c.stateMu.Lock()
	c.closed = true
	c.stateMu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()

	c.stateMu.Lock()
	c.connected = conn != nil
	c.stateMu.Unlock()
}

func (c *Client) isClosed() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.closed
}
