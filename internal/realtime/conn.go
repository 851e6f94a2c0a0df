// Package realtime wraps long-lived websocket connections with the
// per-connection message throttle and the connect-time connection gate.
package realtime

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var (
	// ErrThrottled indicates the connection's message budget is exhausted.
	// The message was not sent; the caller may retry after backing off.
	ErrThrottled = errors.New("message rate exceeded")

	// ErrTooManyConnections indicates the concurrent connection ceiling is
	// reached. The connect attempt is rejected, not queued.
	ErrTooManyConnections = errors.New("connection ceiling reached")

	// ErrConnClosed indicates a send on a closed connection.
	ErrConnClosed = errors.New("connection is closed")
)

// Conn is a throttled websocket connection owned by a Hub. Sends from
// multiple goroutines are serialized; gorilla/websocket permits at most one
// concurrent writer.
type Conn struct {
	id  string
	ws  *websocket.Conn
	hub *Hub

	writeMu   sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// ID returns the connection identifier assigned by the hub.
func (c *Conn) ID() string {
	return c.id
}

// Send writes one message, consuming one throttle token. Returns
// ErrThrottled without sending when the bucket is empty.
func (c *Conn) Send(messageType int, data []byte) error {
	if !c.hub.throttle.Allow(c.id) {
		return ErrThrottled
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	return c.ws.WriteMessage(messageType, data)
}

// Close tears the connection down, releasing its throttle state and gate
// slot. Safe to call multiple times.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.closed = true
		c.writeMu.Unlock()

		c.hub.remove(c.id)
		err = c.ws.Close()
	})
	return err
}
