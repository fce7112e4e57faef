package frame

import (
	"errors"
	"fmt"
)

// Buffer reassembles frames from chunks of a byte stream. A single transport
// read may hold part of a frame, exactly one frame, or several; Buffer keeps
// whatever has not yet formed a complete frame until more data arrives.
type Buffer struct {
	buf     []byte
	maxSize uint32
}

// NewBuffer returns a Buffer that rejects bodies larger than maxSize.
// maxSize 0 means MaxBodySize.
func NewBuffer(maxSize uint32) *Buffer {
	return &Buffer{maxSize: maxSize}
}

// Write appends a received chunk. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Next removes and returns the next complete frame body. ok is false when
// more data is needed. An oversized header is reported as ErrFrameTooLarge;
// the stream cannot be resynchronised after that.
func (b *Buffer) Next() (body []byte, ok bool, err error) {
	length, err := DecodeHeader(b.buf)
	if errors.Is(err, ErrMalformedFrame) {
		return nil, false, nil
	}
	if b.maxSize > 0 && length > b.maxSize {
		return nil, false, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrFrameTooLarge, length, b.maxSize)
	}
	end := uint64(HeaderSize) + uint64(length)
	if uint64(len(b.buf)) < end {
		return nil, false, nil
	}

	body = make([]byte, length)
	copy(body, b.buf[HeaderSize:end])
	rest := copy(b.buf, b.buf[end:])
	b.buf = b.buf[:rest]
	return body, true, nil
}

// Buffered returns the number of bytes held for an incomplete frame.
func (b *Buffer) Buffered() int {
	return len(b.buf)
}
