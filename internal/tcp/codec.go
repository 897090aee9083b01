// Package tcp implements the message-pattern TCP transport of the Hermes
// user service. Peers exchange JSON documents framed as
// "<decimal byte length>#<json>"; each request names a command in its
// pattern and carries an opaque correlation id the reply echoes.
package tcp

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// MaxFrameSize bounds a single message. Requests are tiny; anything larger
// is a broken or hostile peer.
const MaxFrameSize = 1 << 20

// ErrFrameTooLarge indicates a frame length above MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// Pattern identifies the command a request targets.
type Pattern struct {
	Cmd string `json:"cmd"`
}

// Request is an incoming message.
type Request struct {
	ID      string          `json:"id"`
	Pattern Pattern         `json:"pattern"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ErrorPayload mirrors the HTTP error envelope's statusCode/error/message
// triple.
type ErrorPayload struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    any    `json:"message"`
}

// Response is an outgoing reply. Response is null for void operations and
// for by-email/by-username lookups that found nothing.
type Response struct {
	ID         string        `json:"id"`
	Response   any           `json:"response"`
	Err        *ErrorPayload `json:"err,omitempty"`
	IsDisposed bool          `json:"isDisposed"`
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	header, err := r.ReadString('#')
	if err != nil {
		return nil, err
	}

	length, err := strconv.Atoi(header[:len(header)-1])
	if err != nil || length < 0 {
		return nil, fmt.Errorf("malformed frame header %q", header)
	}
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	header := strconv.Itoa(len(payload)) + "#"
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
