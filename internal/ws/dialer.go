// Package ws adapts the websocket library behind small interfaces so
// the session can run against an in-memory transport in tests.
package ws

import (
	"context"

	"github.com/coder/websocket"
)

// Conn is one open frame transport.
type Conn interface {
	// Read blocks for the next frame.
	Read(ctx context.Context) ([]byte, error)
	// Write sends one text frame.
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// NewDialer returns the production websocket dialer.
func NewDialer() Dialer { return dialer{} }

type dialer struct{}

func (dialer) Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &conn{c: c}, nil
}

type conn struct {
	c *websocket.Conn
}

func (c *conn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.c.Read(ctx)
	return data, err
}

func (c *conn) Write(ctx context.Context, data []byte) error {
	return c.c.Write(ctx, websocket.MessageText, data)
}

func (c *conn) Close() error {
	return c.c.Close(websocket.StatusNormalClosure, "bye")
}
