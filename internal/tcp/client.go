package tcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Client is a minimal peer for the message-pattern surface, used by sibling
// services and by tests. One connection, sequential request/reply.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects to a message server.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial message server: %w", err)
	}
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send issues one command and waits for its reply. The payload may be nil
// for commands without data. The returned raw message is the reply's
// response field; a non-nil ErrorPayload reports a remote failure.
func (c *Client) Send(ctx context.Context, cmd string, data any) (json.RawMessage, *ErrorPayload, error) {
	id := uuid.NewString()

	req := struct {
		ID      string  `json:"id"`
		Pattern Pattern `json:"pattern"`
		Data    any     `json:"data,omitempty"`
	}{
		ID:      id,
		Pattern: Pattern{Cmd: cmd},
		Data:    data,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	} else {
		_ = c.conn.SetDeadline(time.Time{})
	}

	if err := WriteFrame(c.conn, payload); err != nil {
		return nil, nil, fmt.Errorf("failed to write request: %w", err)
	}

	frame, err := ReadFrame(c.reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read reply: %w", err)
	}

	var reply struct {
		ID         string          `json:"id"`
		Response   json.RawMessage `json:"response"`
		Err        *ErrorPayload   `json:"err"`
		IsDisposed bool            `json:"isDisposed"`
	}
	if err := json.Unmarshal(frame, &reply); err != nil {
		return nil, nil, fmt.Errorf("failed to decode reply: %w", err)
	}
	if reply.ID != id {
		return nil, nil, fmt.Errorf("reply correlation id %q does not match request %q", reply.ID, id)
	}

	return reply.Response, reply.Err, nil
}
