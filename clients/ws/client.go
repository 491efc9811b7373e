// Package ws provides a WebSocket client for the nudge gateway event stream.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"

	wsprotocol "github.com/dohr-michael/nudge/internal/gateway/ws"
)

// Client is a WebSocket client for the nudge gateway.
type Client struct {
	conn   *websocket.Conn
	reqSeq uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Dial connects to the gateway WebSocket endpoint with a bearer token.
func Dial(ctx context.Context, url, token string) (*Client, error) {
	opts := &websocket.DialOptions{}
	if token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + token}}
	}
	conn, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		conn:   conn,
		ctx:    clientCtx,
		cancel: cancel,
	}, nil
}

// Subscribe narrows the stream to groupID. An empty group follows every group.
func (c *Client) Subscribe(groupID string) error {
	return c.request(wsprotocol.MethodSubscribe, wsprotocol.SubscribeParams{GroupID: groupID})
}

// Ping asks the gateway for a pong response frame.
func (c *Client) Ping() error {
	return c.request(wsprotocol.MethodPing, nil)
}

func (c *Client) request(method wsprotocol.Method, params any) error {
	seq := atomic.AddUint64(&c.reqSeq, 1)

	frame, err := wsprotocol.NewRequestFrame(fmt.Sprintf("req-%d", seq), method, params)
	if err != nil {
		return err
	}
	data, err := wsprotocol.MarshalFrame(frame)
	if err != nil {
		return err
	}
	return c.conn.Write(c.ctx, websocket.MessageText, data)
}

// ReadFrame reads the next frame from the connection.
func (c *Client) ReadFrame() (wsprotocol.Frame, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		return wsprotocol.Frame{}, err
	}
	return wsprotocol.UnmarshalFrame(data)
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	c.cancel()
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
