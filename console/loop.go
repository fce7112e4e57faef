// Package console runs the interactive manual-test loop: it reads menu
// choices from the operator, sends the matching catalog requests and shows
// every frame the daemon pushes back, in whatever order the two arrive.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	streamctl "github.com/Paranoid-AF/streamctl"
	"github.com/Paranoid-AF/streamctl/catalog"
	"github.com/Paranoid-AF/streamctl/connection"
	"github.com/Paranoid-AF/streamctl/frame"
	"github.com/Paranoid-AF/streamctl/transcript"
)

const (
	defaultChunkSize    = 4096
	defaultDrainTimeout = 2 * time.Second
)

// Outcome says why Run returned.
type Outcome int

const (
	running Outcome = iota
	// Quit means the operator typed "quit".
	Quit
	// PeerClosed means the daemon closed the connection.
	PeerClosed
	// InputClosed means operator input ended.
	InputClosed
	// Interrupted means the context was cancelled.
	Interrupted
	// Failed means Run returned a non-nil error.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case running:
		return "running"
	case Quit:
		return "quit"
	case PeerClosed:
		return "peer closed"
	case InputClosed:
		return "input closed"
	case Interrupted:
		return "interrupted"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Conn is the socket the loop talks over. *connection.Connection
// implements it.
type Conn interface {
	Send(data []byte) error
	Receive(max int) ([]byte, error)
	Close() error
}

// Options configures a Loop. Zero values select the defaults.
type Options struct {
	Session streamctl.Session
	// ChunkSize bounds a single socket read.
	ChunkSize int
	// MaxFrameSize rejects frames whose declared length is larger. Zero
	// allows any length the header can express.
	MaxFrameSize uint32
	// ResponseTTL is how long a sent request waits for its response
	// before it is forgotten.
	ResponseTTL time.Duration
	// DrainTimeout is how long to keep reading after input ends while
	// responses are still outstanding.
	DrainTimeout time.Duration
	Color        bool
	// Transcript receives every frame body when set.
	Transcript *transcript.Writer
}

// Loop owns the connection, the frame buffer and the pending requests.
// Only the goroutine running Run touches them.
type Loop struct {
	conn    Conn
	input   io.Reader
	display *display
	opts    Options
	frames  *frame.Buffer
	pending *pending
	closed  bool
}

func New(conn Conn, input io.Reader, output io.Writer, opts Options) *Loop {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.MaxFrameSize == 0 {
		opts.MaxFrameSize = frame.MaxBodySize
	}
	if opts.DrainTimeout < 0 {
		opts.DrainTimeout = 0
	} else if opts.DrainTimeout == 0 {
		opts.DrainTimeout = defaultDrainTimeout
	}
	return &Loop{
		conn:    conn,
		input:   input,
		display: &display{out: output, color: opts.Color},
		opts:    opts,
		frames:  frame.NewBuffer(opts.MaxFrameSize),
	}
}

type socketEvent struct {
	data []byte
	err  error
}

type inputEvent struct {
	line string
	err  error
}

// Run prints the menu and serves operator input and daemon frames until
// the operator quits, the daemon disconnects, input ends or ctx is done.
// The connection is closed when Run returns.
func (l *Loop) Run(ctx context.Context) (Outcome, error) {
	l.pending = newPending(l.opts.ResponseTTL)
	defer l.pending.close()
	defer l.close()

	done := make(chan struct{})
	defer close(done)

	socket := make(chan socketEvent)
	input := make(chan inputEvent)
	go l.readSocket(done, socket)
	go readInput(done, l.input, input)

	l.display.menu()

	var drain <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			l.close()
			l.display.line("Interrupted")
			return Interrupted, nil

		case ev := <-socket:
			if outcome, err := l.handleSocket(ev); outcome != running {
				return outcome, err
			}
			if input == nil && l.pending.len() == 0 {
				l.close()
				l.display.line("Bye")
				return InputClosed, nil
			}

		case ev := <-input:
			if ev.err != nil {
				if !errors.Is(ev.err, io.EOF) {
					slog.Warn("reading input failed", "error", ev.err)
				}
				input = nil
				if n := l.pending.len(); n > 0 && l.opts.DrainTimeout > 0 {
					slog.Debug("input closed, waiting for responses", "pending", n, "timeout", l.opts.DrainTimeout)
					drain = time.After(l.opts.DrainTimeout)
					continue
				}
				l.close()
				l.display.line("Bye")
				return InputClosed, nil
			}
			if outcome, err := l.handleLine(ev.line); outcome != running {
				return outcome, err
			}

		case <-drain:
			slog.Debug("gave up waiting for responses", "pending", l.pending.len())
			l.close()
			l.display.line("Bye")
			return InputClosed, nil
		}
	}
}

// handleLine acts on one line of operator input.
func (l *Loop) handleLine(line string) (Outcome, error) {
	text := strings.TrimRight(line, "\r\n")
	if text == "quit" {
		l.close()
		l.display.line("Bye")
		return Quit, nil
	}
	text = strings.TrimSpace(text)
	if text == "help" {
		l.display.menu()
		return running, nil
	}
	index, err := strconv.Atoi(text)
	if err != nil {
		return running, nil
	}
	t, err := catalog.Lookup(index)
	if err != nil {
		l.display.errorf("%v", err)
		return running, nil
	}
	if err := l.send(t); err != nil {
		if connection.IsClosed(err) {
			l.close()
			l.display.line("Connection closed")
			return PeerClosed, nil
		}
		l.close()
		return Failed, err
	}
	return running, nil
}

func (l *Loop) send(t catalog.Template) error {
	body, err := t.Render(l.opts.Session)
	if err != nil {
		return err
	}
	data, err := frame.Encode(body)
	if err != nil {
		return err
	}
	if err := l.conn.Send(data); err != nil {
		return fmt.Errorf("send %s: %w", t.Method, err)
	}
	now := time.Now()
	l.pending.track(t, now)
	l.record(transcript.Entry{
		Time:      now,
		Direction: transcript.Sent,
		Method:    t.Method,
		ID:        streamctl.RequestKey(t.ID),
		Body:      string(body),
	})
	l.display.sent(t)
	slog.Debug("sent request", "method", t.Method, "id", t.ID, "bytes", len(data))
	return nil
}

func (l *Loop) handleSocket(ev socketEvent) (Outcome, error) {
	if ev.err != nil {
		if connection.IsClosed(ev.err) {
			if n := l.frames.Buffered(); n > 0 {
				slog.Warn("connection closed inside a frame", "buffered", n)
			}
			l.close()
			l.display.line("Connection closed")
			return PeerClosed, nil
		}
		l.close()
		return Failed, fmt.Errorf("receive: %w", ev.err)
	}

	l.frames.Write(ev.data)
	for {
		body, ok, err := l.frames.Next()
		if err != nil {
			l.close()
			return Failed, err
		}
		if !ok {
			return running, nil
		}
		l.showFrame(body)
	}
}

func (l *Loop) showFrame(body []byte) {
	now := time.Now()
	entry := transcript.Entry{Time: now, Direction: transcript.Received, Body: string(body)}

	msg, err := streamctl.ParseMessage(body)
	switch {
	case err != nil:
		slog.Debug("frame is not a JSON-RPC message", "error", err)
	case msg.IsResponse():
		entry.ID = msg.Key()
		req, ok := l.pending.resolve(msg.Key())
		if ok {
			entry.Method = req.Method
		}
		l.display.response(msg, req, ok, now)
	case msg.Method != "":
		entry.Method = msg.Method
		if msg.HasID() {
			entry.ID = msg.Key()
		}
		l.display.broadcast(msg)
	}

	l.display.body(body)
	l.record(entry)
}

func (l *Loop) record(e transcript.Entry) {
	if l.opts.Transcript == nil {
		return
	}
	if err := l.opts.Transcript.Record(e); err != nil {
		slog.Warn("transcript write failed", "error", err)
	}
}

// close closes the connection once; later calls are no-ops.
func (l *Loop) close() {
	if l.closed {
		return
	}
	l.closed = true
	if err := l.conn.Close(); err != nil && !connection.IsClosed(err) {
		slog.Debug("close connection", "error", err)
	}
}

func (l *Loop) readSocket(done <-chan struct{}, out chan<- socketEvent) {
	for {
		data, err := l.conn.Receive(l.opts.ChunkSize)
		select {
		case out <- socketEvent{data: data, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

// readInput forwards input lines until EOF. A final line without a newline
// is still delivered.
func readInput(done <-chan struct{}, r io.Reader, out chan<- inputEvent) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			select {
			case out <- inputEvent{line: line}:
			case <-done:
				return
			}
		}
		if err != nil {
			select {
			case out <- inputEvent{err: err}:
			case <-done:
			}
			return
		}
	}
}
