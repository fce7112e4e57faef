// Package catalog holds the fixed table of commands the operator can send
// to the daemon by typing their index.
package catalog

import (
	"errors"
	"fmt"

	streamctl "github.com/Paranoid-AF/streamctl"
)

// Command identifies a catalog entry. Values are dense and stable: the
// operator types the number to send the command.
type Command int

const (
	Activate Command = iota
	StopService
	PrepareService
	StartEncodeStream
	StartRelayStream
	StartTimeshiftStream
	StopStream
	RestartStream

	// Count is the number of catalog entries.
	Count = int(RestartStream) + 1
)

// ErrUnknownCommand is returned by Lookup for an index outside the catalog.
var ErrUnknownCommand = errors.New("unknown command")

// Template describes one request. Templates are created once and never
// modified; Render produces the request for a given session.
type Template struct {
	Command Command
	// Method is the JSON-RPC method name.
	Method string
	// ID is the request id. It is part of the wire contract: the daemon
	// echoes it back so responses can be matched to commands.
	ID int
	// Title is the one-line description shown in the operator menu.
	Title string
	// UsesURI is true when the session's input URI is substituted.
	UsesURI bool

	params func(s streamctl.Session) any
}

var templates = [Count]Template{
	{
		Command: Activate,
		Method:  streamctl.MethodActivate,
		ID:      11,
		Title:   "activate client",
		params: func(s streamctl.Session) any {
			return licenseParams{LicenseKey: s.LicenseKey}
		},
	},
	{
		Command: StopService,
		Method:  streamctl.MethodStopService,
		ID:      12,
		Title:   "stop daemon",
		params: func(s streamctl.Session) any {
			return stopServiceParams{LicenseKey: s.LicenseKey, Delay: stopServiceDelay}
		},
	},
	{
		Command: PrepareService,
		Method:  streamctl.MethodPrepareService,
		ID:      13,
		Title:   "prepare daemon",
		params: func(s streamctl.Session) any {
			return prepareServiceParams{
				LicenseKey:           s.LicenseKey,
				FeedbackDirectory:    prepareDirectories.Feedback,
				TimeshiftsDirectory:  prepareDirectories.Timeshifts,
				HLSDirectory:         prepareDirectories.HLS,
				PlaylistsDirectory:   prepareDirectories.Playlists,
				DVBDirectory:         prepareDirectories.DVB,
				CaptureCardDirectory: prepareDirectories.CaptureCard,
			}
		},
	},
	{
		Command: StartEncodeStream,
		Method:  streamctl.MethodStartStream,
		ID:      14,
		Title:   "start encode stream",
		UsesURI: true,
		params: func(s streamctl.Session) any {
			return startStreamParams{LicenseKey: s.LicenseKey, Config: encodeStreamConfig(s.InputURI)}
		},
	},
	{
		Command: StartRelayStream,
		Method:  streamctl.MethodStartStream,
		ID:      15,
		Title:   "start relay stream",
		UsesURI: true,
		params: func(s streamctl.Session) any {
			return startStreamParams{LicenseKey: s.LicenseKey, Config: relayStreamConfig(s.InputURI)}
		},
	},
	{
		Command: StartTimeshiftStream,
		Method:  streamctl.MethodStartStream,
		ID:      16,
		Title:   "start timerecord stream",
		UsesURI: true,
		params: func(s streamctl.Session) any {
			return startStreamParams{LicenseKey: s.LicenseKey, Config: timeshiftStreamConfig(s.InputURI)}
		},
	},
	{
		Command: StopStream,
		Method:  streamctl.MethodStopStream,
		ID:      17,
		Title:   "stop stream",
		params: func(s streamctl.Session) any {
			return streamParams{LicenseKey: s.LicenseKey, ID: testStreamID}
		},
	},
	{
		Command: RestartStream,
		Method:  streamctl.MethodRestartStream,
		ID:      18,
		Title:   "restart stream",
		params: func(s streamctl.Session) any {
			return streamParams{LicenseKey: s.LicenseKey, ID: testStreamID}
		},
	},
}

// Lookup returns the template at index, or ErrUnknownCommand when index is
// outside 0..Count-1.
func Lookup(index int) (Template, error) {
	if index < 0 || index >= Count {
		return Template{}, fmt.Errorf("%w: %d (valid: 0-%d)", ErrUnknownCommand, index, Count-1)
	}
	return templates[index], nil
}

// All returns every template in index order.
func All() []Template {
	out := make([]Template, Count)
	copy(out, templates[:])
	return out
}

// Request builds the JSON-RPC request for the session. The license key is
// substituted into every command; the input URI only into commands that
// declare it.
func (t Template) Request(s streamctl.Session) *streamctl.Request {
	if !t.UsesURI {
		s.InputURI = ""
	}
	return streamctl.NewRequest(t.Method, t.ID, t.params(s))
}

// Render returns the JSON text of the request. Key and URI are JSON-escaped,
// so quote characters in either cannot break the document.
func (t Template) Render(s streamctl.Session) ([]byte, error) {
	if t.params == nil {
		return nil, fmt.Errorf("%w: zero template", ErrUnknownCommand)
	}
	return t.Request(s).Marshal()
}

// Render renders t with the given license key and input URI.
func Render(t Template, key, uri string) ([]byte, error) {
	return t.Render(streamctl.Session{LicenseKey: key, InputURI: uri})
}

func (c Command) String() string {
	if int(c) < 0 || int(c) >= Count {
		return fmt.Sprintf("Command(%d)", int(c))
	}
	return templates[c].Title
}
