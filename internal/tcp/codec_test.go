package tcp

import (
	"bufio"
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"
)

func TestReadFrame(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "simple frame",
			input: `12#{"id":"abc"}`,
			want:  `{"id":"abc"}`,
		},
		{
			name:  "empty payload",
			input: "0#",
			want:  "",
		},
		{
			name:  "payload containing hash",
			input: `9#a#b#c#d#e`,
			want:  "a#b#c#d#e",
		},
		{
			name:    "non-numeric length",
			input:   "abc#{}",
			wantErr: true,
		},
		{
			name:    "negative length",
			input:   "-1#",
			wantErr: true,
		},
		{
			name:    "truncated payload",
			input:   "10#short",
			wantErr: true,
		},
		{
			name:    "missing delimiter",
			input:   "12345",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(tt.input))
			payload, err := ReadFrame(r)

			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got payload %q", payload)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(payload) != tt.want {
				t.Errorf("expected payload %q, got %q", tt.want, payload)
			}
		})
	}
}

func TestReadFrame_TooLarge(t *testing.T) {
	header := strconv.Itoa(MaxFrameSize+1) + "#"
	r := bufio.NewReader(strings.NewReader(header))

	_, err := ReadFrame(r)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestWriteFrame_RoundTrip(t *testing.T) {
	payloads := []string{
		"",
		`{"id":"1","pattern":{"cmd":"get_users"}}`,
		strings.Repeat("x", 4096),
	}

	var buf bytes.Buffer
	for _, p := range payloads {
		if err := WriteFrame(&buf, []byte(p)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	r := bufio.NewReader(&buf)
	for i, p := range payloads {
		got, err := ReadFrame(r)
		if err != nil {
			t.Fatalf("read %d failed: %v", i, err)
		}
		if string(got) != p {
			t.Errorf("frame %d: expected %q, got %q", i, p, got)
		}
	}
}
