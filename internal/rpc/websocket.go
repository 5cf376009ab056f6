// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSChannel carries envelopes over one websocket connection. The same type
// serves both ends: the client dials, the service upgrades.
type WSChannel struct {
	conn    *websocket.Conn
	router  *Router
	writeMu sync.Mutex

	done    chan struct{}
	started atomic.Bool
	closing atomic.Bool
	err     error
}

// DialWS connects to a websocket endpoint and starts the read loop.
func DialWS(ctx context.Context, url string) (*WSChannel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", url, err)
	}
	log.Printf("rpc: websocket connected to %s", url)
	c := NewWSChannel(conn)
	c.Start()
	return c, nil
}

// UpgradeWS upgrades an HTTP request. The caller registers its handlers and
// then calls Start, so no early frame is dispatched to an empty router.
func UpgradeWS(w http.ResponseWriter, r *http.Request) (*WSChannel, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("rpc: websocket upgrade: %w", err)
	}
	return NewWSChannel(conn), nil
}

// NewWSChannel wraps an established connection. Start begins reading.
func NewWSChannel(conn *websocket.Conn) *WSChannel {
	return &WSChannel{
		conn:   conn,
		router: NewRouter(),
		done:   make(chan struct{}),
	}
}

// Start launches the read loop. Calls after the first are no-ops.
func (c *WSChannel) Start() {
	if c.started.CompareAndSwap(false, true) {
		go c.readLoop()
	}
}

func (c *WSChannel) Subscribe(msgType MessageType, h Handler) func() {
	return c.router.Subscribe(msgType, h)
}

func (c *WSChannel) Send(ctx context.Context, msgType MessageType, payload any) error {
	data, err := Encode(msgType, payload)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("rpc: send %s: %w", msgType, err)
	}
	return nil
}

// Done is closed when the read loop stops.
func (c *WSChannel) Done() <-chan struct{} { return c.done }

// Err returns the error that stopped the read loop, nil on a clean close.
func (c *WSChannel) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close sends a close frame and tears down the connection.
func (c *WSChannel) Close() error {
	if !c.closing.CompareAndSwap(false, true) {
		<-c.done
		return nil
	}
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := c.conn.Close()
	if c.started.CompareAndSwap(false, true) {
		close(c.done)
	}
	<-c.done
	return err
}

func (c *WSChannel) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closing.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.err = err
				log.Printf("rpc: websocket read error: %v", err)
			}
			return
		}
		c.router.Dispatch(data)
	}
}

// ErrClosed is returned by Send once the connection is gone.
var ErrClosed = errors.New("rpc: channel closed")
