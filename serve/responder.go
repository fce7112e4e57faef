package main

import (
	"encoding/json"
	"log/slog"
	"time"

	streamctl "github.com/Paranoid-AF/streamctl"
)

type response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id"`
	Result  any              `json:"result,omitempty"`
	Error   *streamctl.Error `json:"error,omitempty"`
}

type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type pingParams struct {
	Seq  int   `json:"seq"`
	Time int64 `json:"time"`
}

type stopServiceParams struct {
	Delay float64 `json:"delay"`
}

// scriptedResponder acknowledges every method the client knows with "OK".
type scriptedResponder struct {
	maxStopDelay time.Duration
}

func newScriptedResponder(maxStopDelay time.Duration) *scriptedResponder {
	if maxStopDelay <= 0 {
		maxStopDelay = defaultMaxStopDelay
	}
	return &scriptedResponder{maxStopDelay: maxStopDelay}
}

func knownMethod(method string) bool {
	switch method {
	case streamctl.MethodActivate,
		streamctl.MethodStopService,
		streamctl.MethodPrepareService,
		streamctl.MethodPingService,
		streamctl.MethodStartStream,
		streamctl.MethodStopStream,
		streamctl.MethodRestartStream:
		return true
	}
	return false
}

func (r *scriptedResponder) Respond(msg *streamctl.Message) Reply {
	resp := response{JSONRPC: streamctl.Version, ID: msg.ID}
	if !msg.HasID() {
		resp.ID = json.RawMessage("null")
	}

	switch {
	case msg.Method == "" && (len(msg.Result) > 0 || msg.Error != nil):
		// An answer to one of our pings.
		return Reply{}
	case msg.Method == "":
		resp.Error = &streamctl.Error{Code: streamctl.CodeInvalidRequest, Message: "invalid request"}
		return Reply{Body: marshalResponse(slog.Default(), resp)}
	case !msg.HasID():
		return Reply{}
	case !knownMethod(msg.Method):
		resp.Error = &streamctl.Error{Code: streamctl.CodeMethodNotFound, Message: "method not found"}
		return Reply{Body: marshalResponse(slog.Default(), resp)}
	}

	resp.Result = streamctl.ResultOK
	reply := Reply{Body: marshalResponse(slog.Default(), resp)}
	if msg.Method == streamctl.MethodStopService {
		reply.Close = true
		reply.CloseAfter = r.stopDelay(msg.Params)
	}
	return reply
}

func (r *scriptedResponder) stopDelay(params json.RawMessage) time.Duration {
	var p stopServiceParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			slog.Debug("ignoring stop_service params", "error", err)
		}
	}
	d := time.Duration(p.Delay * float64(time.Second))
	if d < 0 {
		return 0
	}
	return min(d, r.maxStopDelay)
}

func marshalResponse(log *slog.Logger, resp response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Error("failed to marshal response", "error", err)
		return nil
	}
	return data
}
