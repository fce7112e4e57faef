package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	streamctl "github.com/Paranoid-AF/streamctl"
	"github.com/Paranoid-AF/streamctl/frame"
)

const defaultMaxStopDelay = 5 * time.Second

// Responder decides how the daemon answers one request.
type Responder interface {
	Respond(msg *streamctl.Message) Reply
}

// Reply is what the server does after reading a request.
type Reply struct {
	// Body is sent as one frame when non-empty.
	Body []byte
	// Close closes the connection CloseAfter after Body is written.
	Close      bool
	CloseAfter time.Duration
}

type Options struct {
	// SplitWrites sends every frame in two writes, cutting the body in
	// half, so clients must reassemble frames across reads.
	SplitWrites bool
	// PingInterval pushes a ping_client request to every client at this
	// interval. Zero disables it.
	PingInterval time.Duration
	// MaxFrameSize rejects larger request bodies. Zero means no limit.
	MaxFrameSize uint32
	// MaxStopDelay caps the delay a stop_service request may ask for.
	MaxStopDelay time.Duration
}

// Server accepts TCP connections and answers framed JSON-RPC requests.
type Server struct {
	listener  net.Listener
	responder Responder
	opts      Options
	done      chan struct{}

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

// NewServer listens on addr and answers with the scripted responses.
func NewServer(addr string, opts Options) (*Server, error) {
	return NewServerWithResponder(addr, newScriptedResponder(opts.MaxStopDelay), opts)
}

// NewServerWithResponder listens on addr and answers with responder.
func NewServerWithResponder(addr string, responder Responder, opts Options) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener:  listener,
		responder: responder,
		opts:      opts,
		done:      make(chan struct{}),
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting and drops every open connection.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.listener.Close()
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// peer serializes writes to one client; the request loop and the pinger
// both write.
type peer struct {
	mu    sync.Mutex
	conn  net.Conn
	split bool
}

func (p *peer) send(body []byte) error {
	data, err := frame.Encode(body)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.split && len(body) > 1 {
		cut := frame.HeaderSize + len(body)/2
		if _, err := p.conn.Write(data[:cut]); err != nil {
			return err
		}
		data = data[cut:]
	}
	_, err = p.conn.Write(data)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.untrack(conn)
	defer conn.Close()

	log := slog.With("remote", conn.RemoteAddr().String())
	log.Debug("client connected")
	p := &peer{conn: conn, split: s.opts.SplitWrites}

	stop := make(chan struct{})
	defer close(stop)
	if s.opts.PingInterval > 0 {
		go s.ping(p, stop)
	}

	for {
		body, err := frame.ReadFrame(conn, s.opts.MaxFrameSize)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				log.Debug("client disconnected")
			} else {
				log.Warn("read failed", "error", err)
			}
			return
		}
		log.Debug("request", "data", string(body))

		var reply Reply
		msg, err := streamctl.ParseMessage(body)
		if err != nil {
			reply.Body = marshalResponse(log, response{
				JSONRPC: streamctl.Version,
				ID:      json.RawMessage("null"),
				Error:   &streamctl.Error{Code: streamctl.CodeParseError, Message: "parse error"},
			})
		} else {
			reply = s.responder.Respond(msg)
		}

		if len(reply.Body) > 0 {
			log.Debug("response", "data", string(reply.Body))
			if err := p.send(reply.Body); err != nil {
				log.Warn("write failed", "error", err)
				return
			}
		}
		if reply.Close {
			log.Debug("closing connection", "after", reply.CloseAfter)
			select {
			case <-time.After(reply.CloseAfter):
			case <-s.done:
			}
			return
		}
	}
}

func (s *Server) ping(p *peer, stop <-chan struct{}) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for seq := 1; ; seq++ {
		select {
		case <-ticker.C:
		case <-stop:
			return
		case <-s.done:
			return
		}
		body, err := json.Marshal(notification{
			JSONRPC: streamctl.Version,
			Method:  streamctl.MethodPingClient,
			Params:  pingParams{Seq: seq, Time: time.Now().Unix()},
		})
		if err != nil {
			slog.Error("failed to marshal ping", "error", err)
			return
		}
		if err := p.send(body); err != nil {
			return
		}
	}
}
