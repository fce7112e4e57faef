// Package transcript appends every exchanged frame to a TOML log so a
// manual test session can be reviewed or attached to a bug report.
package transcript

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// Redacted replaces secrets in recorded bodies.
const Redacted = "***"

type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// Entry is one frame body crossing the wire.
type Entry struct {
	Time      time.Time `toml:"time"`
	Direction Direction `toml:"direction"`
	Method    string    `toml:"method,omitempty"`
	ID        string    `toml:"id,omitempty"`
	Body      string    `toml:"body"`
}

type document struct {
	Exchange []Entry `toml:"exchange"`
}

// Writer appends entries as [[exchange]] tables.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	closer  io.Closer
	secrets []string
}

// Open appends to the transcript at path, creating it if needed.
func Open(path string, secrets ...string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	t := NewWriter(f, secrets...)
	t.closer = f
	return t, nil
}

// NewWriter writes entries to w. JSON string values equal to any non-empty
// secret are replaced with Redacted, as are the values of members such as
// license_key. Other text in a body is recorded as sent.
func NewWriter(w io.Writer, secrets ...string) *Writer {
	t := &Writer{w: w}
	for _, s := range secrets {
		if s != "" {
			t.secrets = append(t.secrets, s)
		}
	}
	return t
}

// Record appends one entry.
func (t *Writer) Record(e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.Body = t.redact(e.Body)

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(document{Exchange: []Entry{e}}); err != nil {
		return fmt.Errorf("encode transcript entry: %w", err)
	}
	buf.WriteByte('\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

func (t *Writer) redact(body string) string {
	return redactFields(redactValues(body, t.secrets))
}

// Close closes the underlying file when the writer was opened by Open.
func (t *Writer) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

// Read decodes a transcript back into its entries.
func Read(r io.Reader) ([]Entry, error) {
	var doc document
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return doc.Exchange, nil
}
