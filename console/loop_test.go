package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	streamctl "github.com/Paranoid-AF/streamctl"
	"github.com/Paranoid-AF/streamctl/connection"
	"github.com/Paranoid-AF/streamctl/frame"
)

var testSession = streamctl.Session{LicenseKey: "K1", InputURI: "rtmp://x"}

// fakeConn records sends and hands out scripted chunks on Receive.
type fakeConn struct {
	mu              sync.Mutex
	sent            [][]byte
	closed          bool
	sendsAfterClose int

	chunks chan []byte
	done   chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{chunks: make(chan []byte, 64), done: make(chan struct{})}
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.sendsAfterClose++
		return net.ErrClosed
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

// Receive returns the next scripted chunk. Closing chunks plays the role
// of the daemon hanging up.
func (c *fakeConn) Receive(max int) ([]byte, error) {
	select {
	case b, ok := <-c.chunks:
		if !ok {
			return nil, connection.ErrPeerClosed
		}
		return b, nil
	case <-c.done:
		return nil, net.ErrClosed
	}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) sentBodies(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, data := range c.sent {
		body, err := frame.ReadFrame(bytes.NewReader(data), 0)
		if err != nil {
			t.Fatalf("sent data is not one frame: %v", err)
		}
		out = append(out, string(body))
	}
	return out
}

func encodeFrame(t *testing.T, body string) []byte {
	t.Helper()
	data, err := frame.Encode([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func runLoop(t *testing.T, conn Conn, input io.Reader, opts Options) (Outcome, string) {
	t.Helper()
	if opts.Session == (streamctl.Session{}) {
		opts.Session = testSession
	}
	var out bytes.Buffer
	l := New(conn, input, &out, opts)

	type result struct {
		outcome Outcome
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		outcome, err := l.Run(context.Background())
		ch <- result{outcome, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("Run: %v\noutput:\n%s", r.err, out.String())
		}
		return r.outcome, out.String()
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return 0, ""
	}
}

func TestQuitClosesAndStops(t *testing.T) {
	conn := newFakeConn()
	outcome, out := runLoop(t, conn, strings.NewReader("0\nquit\n1\n"), Options{})

	if outcome != Quit {
		t.Fatalf("outcome = %v, want quit", outcome)
	}
	if !strings.HasSuffix(out, "Bye\n") {
		t.Errorf("output does not end with Bye:\n%s", out)
	}
	bodies := conn.sentBodies(t)
	if len(bodies) != 1 {
		t.Fatalf("sent %d frames, want 1", len(bodies))
	}
	if !strings.Contains(bodies[0], `"method":"activate_request"`) {
		t.Errorf("sent %s", bodies[0])
	}
	if !conn.closed {
		t.Error("connection not closed")
	}
	if conn.sendsAfterClose != 0 {
		t.Errorf("%d sends after quit", conn.sendsAfterClose)
	}
}

func TestQuitMustMatchExactly(t *testing.T) {
	conn := newFakeConn()
	outcome, _ := runLoop(t, conn, strings.NewReader("QUIT\nquit now\n quit\nquit\r\n"), Options{})
	if outcome != Quit {
		t.Fatalf("outcome = %v, want quit", outcome)
	}
	if n := len(conn.sentBodies(t)); n != 0 {
		t.Errorf("sent %d frames, want 0", n)
	}
}

func TestPeerClosed(t *testing.T) {
	conn := newFakeConn()
	close(conn.chunks)

	input, w := io.Pipe()
	defer w.Close()

	outcome, out := runLoop(t, conn, input, Options{})
	if outcome != PeerClosed {
		t.Fatalf("outcome = %v, want peer closed", outcome)
	}
	if !strings.HasSuffix(out, "Connection closed\n") {
		t.Errorf("output:\n%s", out)
	}
	if !conn.closed {
		t.Error("connection not closed")
	}
}

func TestUnknownCommandKeepsRunning(t *testing.T) {
	conn := newFakeConn()
	outcome, out := runLoop(t, conn, strings.NewReader("9\n-1\n6\nquit\n"), Options{})

	if outcome != Quit {
		t.Fatalf("outcome = %v, want quit", outcome)
	}
	if got := strings.Count(out, "unknown command"); got != 2 {
		t.Errorf("reported %d unknown commands, want 2:\n%s", got, out)
	}
	bodies := conn.sentBodies(t)
	if len(bodies) != 1 || !strings.Contains(bodies[0], `"method":"stop_stream"`) {
		t.Errorf("sent %q", bodies)
	}
}

func TestIgnoresNonNumericInput(t *testing.T) {
	conn := newFakeConn()
	outcome, out := runLoop(t, conn, strings.NewReader("hello\n\n   \n1.5\nquit\n"), Options{})

	if outcome != Quit {
		t.Fatalf("outcome = %v, want quit", outcome)
	}
	if len(conn.sentBodies(t)) != 0 {
		t.Error("non-numeric input sent a frame")
	}
	if strings.Contains(out, "error") {
		t.Errorf("non-numeric input reported an error:\n%s", out)
	}
}

func TestHelpReprintsMenu(t *testing.T) {
	conn := newFakeConn()
	_, out := runLoop(t, conn, strings.NewReader("help\nquit\n"), Options{})

	if got := strings.Count(out, "digit commands:"); got != 2 {
		t.Errorf("menu printed %d times, want 2", got)
	}
	for _, want := range []string{"0 - activate client", "7 - restart stream", "quit - exit from client"} {
		if !strings.Contains(out, want) {
			t.Errorf("menu missing %q", want)
		}
	}
}

func TestReassemblesSplitFrames(t *testing.T) {
	first := `{"jsonrpc":"2.0","method":"ping_client","params":{}}`
	second := `{"jsonrpc":"2.0","method":"statistic_service","params":{"cpu":3}}`
	third := `not json at all`

	a := encodeFrame(t, first)
	b := encodeFrame(t, second)
	c := encodeFrame(t, third)

	conn := newFakeConn()
	conn.chunks <- a[:2]
	conn.chunks <- a[2:7]
	conn.chunks <- append(append([]byte{}, a[7:]...), b...)
	conn.chunks <- c[:len(c)-1]
	conn.chunks <- c[len(c)-1:]
	close(conn.chunks)

	input, w := io.Pipe()
	defer w.Close()

	outcome, out := runLoop(t, conn, input, Options{})
	if outcome != PeerClosed {
		t.Fatalf("outcome = %v, want peer closed", outcome)
	}

	i1 := strings.Index(out, first+"\n")
	i2 := strings.Index(out, second+"\n")
	i3 := strings.Index(out, third+"\n")
	if i1 < 0 || i2 < 0 || i3 < 0 {
		t.Fatalf("missing frame bodies in output:\n%s", out)
	}
	if !(i1 < i2 && i2 < i3) {
		t.Errorf("frames out of order:\n%s", out)
	}
	if !strings.Contains(out, "← statistic_service") {
		t.Errorf("broadcast not annotated:\n%s", out)
	}
}

func TestOversizedFrameFails(t *testing.T) {
	conn := newFakeConn()
	conn.chunks <- []byte{0, 0, 1, 0}

	input, w := io.Pipe()
	defer w.Close()

	l := New(conn, input, io.Discard, Options{Session: testSession, MaxFrameSize: 16})
	outcome, err := l.Run(context.Background())
	if outcome != Failed || err == nil {
		t.Fatalf("Run = %v, %v; want failed with error", outcome, err)
	}
	if !conn.closed {
		t.Error("connection not closed")
	}
}

func TestInputEOFWithNothingPending(t *testing.T) {
	conn := newFakeConn()
	outcome, out := runLoop(t, conn, strings.NewReader(""), Options{})
	if outcome != InputClosed {
		t.Fatalf("outcome = %v, want input closed", outcome)
	}
	if !strings.HasSuffix(out, "Bye\n") {
		t.Errorf("output:\n%s", out)
	}
}

func TestDrainTimeout(t *testing.T) {
	conn := newFakeConn()
	start := time.Now()
	outcome, _ := runLoop(t, conn, strings.NewReader("6"), Options{DrainTimeout: 50 * time.Millisecond})

	if outcome != InputClosed {
		t.Fatalf("outcome = %v, want input closed", outcome)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("returned after %v, before the drain timeout", elapsed)
	}
	if n := len(conn.sentBodies(t)); n != 1 {
		t.Errorf("sent %d frames, want 1", n)
	}
}

func TestInterrupted(t *testing.T) {
	conn := newFakeConn()
	input, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	outcome, err := New(conn, input, &out, Options{Session: testSession}).Run(ctx)
	if err != nil || outcome != Interrupted {
		t.Fatalf("Run = %v, %v; want interrupted", outcome, err)
	}
	if !conn.closed {
		t.Error("connection not closed")
	}
}

// daemon reads request frames from conn and calls reply for each.
func daemon(t *testing.T, conn net.Conn, reply func(req map[string]any) []string) <-chan []string {
	methods := make(chan []string, 1)
	go func() {
		var seen []string
		defer func() { methods <- seen }()
		for {
			body, err := frame.ReadFrame(conn, 0)
			if err != nil {
				return
			}
			var req map[string]any
			if err := json.Unmarshal(body, &req); err != nil {
				t.Errorf("daemon got invalid JSON: %v", err)
				return
			}
			seen = append(seen, req["method"].(string))
			for _, r := range reply(req) {
				if err := frame.WriteFrame(conn, []byte(r)); err != nil {
					return
				}
			}
		}
	}()
	return methods
}

func TestResponseCorrelation(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	methods := daemon(t, server, func(req map[string]any) []string {
		id := req["id"].(float64)
		if req["method"] == "stop_stream" {
			return []string{fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"error":{"code":-32000,"message":"no stream"}}`, int(id))}
		}
		return []string{fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":"OK"}`, int(id))}
	})

	outcome, out := runLoop(t, connection.New(client), strings.NewReader("3\n6\n"), Options{DrainTimeout: 2 * time.Second})
	if outcome != InputClosed {
		t.Fatalf("outcome = %v, want input closed", outcome)
	}
	server.Close()
	if got := <-methods; strings.Join(got, ",") != "start_stream,stop_stream" {
		t.Errorf("daemon saw %v", got)
	}

	for _, want := range []string{
		"← start encode stream (id 14,",
		" OK\n",
		`{"jsonrpc":"2.0","id":14,"result":"OK"}`,
		"← stop stream (id 17,",
		"error -32000: no stream",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInputAndBroadcastsInterleave(t *testing.T) {
	const broadcasts = 50

	client, server := net.Pipe()
	defer server.Close()

	received := make(chan struct{})
	var count int
	methods := daemon(t, server, func(req map[string]any) []string {
		count++
		if count == 8 {
			close(received)
		}
		return nil
	})

	go func() {
		for i := 0; i < broadcasts; i++ {
			body := fmt.Sprintf(`{"jsonrpc":"2.0","method":"statistic_service","params":{"n":%d}}`, i)
			if err := frame.WriteFrame(server, []byte(body)); err != nil {
				t.Errorf("write broadcast: %v", err)
				return
			}
		}
		select {
		case <-received:
		case <-time.After(4 * time.Second):
			t.Error("daemon did not receive all commands")
		}
		server.Close()
	}()

	input, w := io.Pipe()
	defer w.Close()
	go func() {
		for i := 0; i < 8; i++ {
			fmt.Fprintf(w, "%d\n", i)
		}
	}()

	outcome, out := runLoop(t, connection.New(client), input, Options{})
	if outcome != PeerClosed {
		t.Fatalf("outcome = %v, want peer closed", outcome)
	}
	if got := <-methods; len(got) != 8 {
		t.Errorf("daemon saw %d requests, want 8", len(got))
	}
	if got := strings.Count(out, "← statistic_service"); got != broadcasts {
		t.Errorf("displayed %d broadcasts, want %d", got, broadcasts)
	}
	if got := strings.Count(out, "→ "); got != 8 {
		t.Errorf("displayed %d sends, want 8", got)
	}
}

func TestOutcomeString(t *testing.T) {
	tests := map[Outcome]string{
		Quit:        "quit",
		PeerClosed:  "peer closed",
		InputClosed: "input closed",
		Interrupted: "interrupted",
		Failed:      "failed",
		Outcome(42): "Outcome(42)",
	}
	for o, want := range tests {
		if got := o.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(o), got, want)
		}
	}
}
