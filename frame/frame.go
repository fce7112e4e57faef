// Package frame implements the length-prefixed framing used on the daemon
// connection. Each frame is a 4-byte header holding the body length as a
// big-endian uint32 (network byte order), followed by exactly that many
// bytes of body. The header does not count itself.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// HeaderSize is the fixed size of a frame header.
const HeaderSize = 4

// MaxBodySize is the largest body a header can describe.
const MaxBodySize = math.MaxUint32

var (
	// ErrMalformedFrame is returned when fewer than HeaderSize bytes are
	// available to decode a header.
	ErrMalformedFrame = errors.New("malformed frame: short header")
	// ErrFrameTooLarge is returned when a body exceeds the allowed size.
	ErrFrameTooLarge = errors.New("frame too large")
)

// Encode returns the header for payload followed by payload.
func Encode(payload []byte) ([]byte, error) {
	if uint64(len(payload)) > MaxBodySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	out := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(out[:HeaderSize], uint32(len(payload)))
	copy(out[HeaderSize:], payload)
	return out, nil
}

// DecodeHeader returns the body length announced by the first HeaderSize
// bytes of p.
func DecodeHeader(p []byte) (uint32, error) {
	if len(p) < HeaderSize {
		return 0, fmt.Errorf("%w: have %d of %d bytes", ErrMalformedFrame, len(p), HeaderSize)
	}
	return binary.BigEndian.Uint32(p[:HeaderSize]), nil
}

// WriteFrame writes payload to w as a single frame.
func WriteFrame(w io.Writer, payload []byte) error {
	data, err := Encode(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame from r and returns its body. Bodies larger than
// maxSize are rejected without being read; maxSize 0 means MaxBodySize.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	length, _ := DecodeHeader(header[:])
	if maxSize > 0 && length > maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrFrameTooLarge, length, maxSize)
	}
	body := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("read frame body: %w", err)
		}
	}
	return body, nil
}
