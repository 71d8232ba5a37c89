// Package ws is the WebSocket transport: one Client per upgraded
// connection, with the usual two-pump layout — a read pump feeding
// inbound frames to the relay and a write pump draining a buffered send
// channel, which is also what gives each connection its FIFO delivery
// order.
package ws

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"campus-relay/domain"
	"campus-relay/errors"
)

type Client struct {
	id         string
	identityID domain.IdentityID
	role       domain.Role

	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	log *slog.Logger
}

func NewClient(log *slog.Logger, conn *websocket.Conn,
	identityID domain.IdentityID, role domain.Role, sendBuffer int) *Client {
	return &Client{
		id:         uuid.NewString(),
		identityID: identityID,
		role:       role,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
		log:        log,
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) IdentityID() domain.IdentityID { return c.identityID }

func (c *Client) Role() domain.Role { return c.role }

// Push enqueues one frame without ever blocking the router. A closed
// client or a full buffer both count as a failed delivery; the caller
// unregisters the connection in response.
func (c *Client) Push(frame []byte) error {
	select {
	case <-c.done:
		return errors.ErrDeliveryFailed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return fmt.Errorf("%w: send buffer full", errors.ErrDeliveryFailed)
	}
}

// Close makes the write pump send its close frame and release the
// transport; frames still queued at that point are dropped, like any
// other undeliverable frame. Safe to call any number of times from any
// goroutine.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// writePump owns all writes on the underlying connection: queued
// frames, keepalive pings and the final close frame.
func (c *Client) writePump(writeTimeout, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("write failed", "connection_id", c.id, "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

// readPump delivers every inbound frame to handle until the connection
// drops or the client is closed.
func (c *Client) readPump(maxFrameBytes int64, pongTimeout time.Duration, handle func(raw []byte)) {
	defer c.Close()

	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read failed", "connection_id", c.id, "error", err)
			}
			return
		}
		handle(raw)
	}
}
