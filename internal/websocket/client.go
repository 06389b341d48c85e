package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one WebSocket connection subscribed to a single household.
type Client struct {
	hub         *Hub
	conn        *ws.Conn
	householdID string
	userID      string
	send        chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn, householdID, userID string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		householdID: householdID,
		userID:      userID,
		send:        make(chan []byte, sendBufferSize),
	}
}

// Run registers the client and writes household messages until the peer
// goes away or the hub evicts it. Frames sent by the peer are discarded.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	c.writePump(c.conn.CloseRead(ctx))
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(ws.StatusPolicyViolation, "subscription ended")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, ws.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
