// Package streamctl defines the JSON-RPC 2.0 envelope exchanged with the
// streaming control daemon. Every message travels inside a frame (see package
// frame): a 4-byte big-endian body length followed by the UTF-8 JSON body.
package streamctl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Version is the JSON-RPC protocol version carried by every message.
const Version = "2.0"

// Client-to-daemon request methods.
const (
	MethodActivate       = "activate_request"
	MethodStopService    = "stop_service"
	MethodPrepareService = "prepare_service"
	MethodPingService    = "ping_service"
	MethodStartStream    = "start_stream"
	MethodStopStream     = "stop_stream"
	MethodRestartStream  = "restart_stream"
)

// Daemon-to-client requests and broadcasts.
const (
	MethodPingClient          = "ping_client"
	MethodChangedSourceStream = "changed_source_stream"
	MethodStatisticStream     = "statistic_stream"
	MethodQuitStatusStream    = "quit_status_stream"
	MethodStatisticService    = "statistic_service"
)

// ResultOK is the result the daemon returns for a successful command.
const ResultOK = "OK"

// Standard JSON-RPC error codes, plus the generic server error the daemon
// uses for command failures.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

// Session holds the parameters supplied once at startup and substituted
// into every command.
type Session struct {
	// LicenseKey is opaque; it is forwarded as-is in every request.
	LicenseKey string
	// InputURI is the stream source used by the start_stream commands.
	InputURI string
}

// Request is a JSON-RPC request sent from the client to the daemon.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      int    `json:"id"`
	Params  any    `json:"params"`
}

// NewRequest builds a request with the protocol version filled in.
func NewRequest(method string, id int, params any) *Request {
	return &Request{JSONRPC: Version, Method: method, ID: id, Params: params}
}

// Marshal encodes the request as compact JSON. HTML characters are left
// unescaped so URIs containing '&' stay readable on the wire.
func (r *Request) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode %s request: %w", r.Method, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Message is any JSON-RPC message: a response to one of our requests, or a
// request/notification initiated by the daemon.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// ParseMessage decodes a frame body into a Message.
func ParseMessage(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	return &msg, nil
}

// HasID reports whether the message carries a non-null id.
func (m *Message) HasID() bool {
	id := bytes.TrimSpace(m.ID)
	return len(id) > 0 && !bytes.Equal(id, []byte("null"))
}

// IsResponse reports whether the message answers a request.
func (m *Message) IsResponse() bool {
	return m.Method == "" && m.HasID()
}

// Key returns the id in the form produced by RequestKey, so a response can
// be matched to its request whether the daemon echoes the id as a number
// or as a string.
func (m *Message) Key() string {
	if !m.HasID() {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.ID, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(m.ID))
}

// ResultText returns the result as display text: the bare string for a
// string result, otherwise the raw JSON.
func (m *Message) ResultText() string {
	var s string
	if err := json.Unmarshal(m.Result, &s); err == nil {
		return s
	}
	return string(m.Result)
}

// RequestKey is the correlation key for a request id.
func RequestKey(id int) string {
	return strconv.Itoa(id)
}
