// Command streamctl is a manual test client for the streaming daemon.
// It connects over TCP, prints a menu of canned JSON-RPC commands and
// sends the one whose number the operator types, while printing every
// frame the daemon sends back.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	streamctl "github.com/Paranoid-AF/streamctl"
	"github.com/Paranoid-AF/streamctl/connection"
	"github.com/Paranoid-AF/streamctl/console"
	"github.com/Paranoid-AF/streamctl/frame"
	"github.com/Paranoid-AF/streamctl/transcript"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

const usageText = `usage: streamctl [flags] <key> <input_uri> [host] [port]

  key        license key sent with activate and stream commands
  input_uri  input URI used by the start stream commands
  host       daemon host (default from config, localhost)
  port       daemon port (default from config, 6317)

Flags go before the positional arguments. Put -- before a key that
starts with "-", for example: streamctl -- -abc rtmp://host/in

flags:
`

type options struct {
	key        string
	inputURI   string
	host       string
	port       int
	configPath string
	transcript string
	verbose    bool
	noColor    bool
	version    bool
}

type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func newFlagSet(opts *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("streamctl", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)
	fs.StringVar(&opts.configPath, "config", "", "TOML config file")
	fs.StringVar(&opts.transcript, "transcript", "", "append every exchanged frame to this TOML file")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log frame and request details to stderr")
	fs.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")
	return fs
}

func parseArgs(args []string) (options, error) {
	var opts options
	fs := newFlagSet(&opts)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return opts, err
		}
		return opts, &usageError{err.Error()}
	}
	if opts.version {
		return opts, nil
	}

	rest := fs.Args()
	if len(rest) < 2 {
		return opts, &usageError{"key and input_uri are required"}
	}
	if len(rest) > 4 {
		return opts, &usageError{fmt.Sprintf("unexpected argument %q", rest[4])}
	}
	opts.key, opts.inputURI = rest[0], rest[1]
	if len(rest) > 2 {
		opts.host = rest[2]
	}
	if len(rest) > 3 {
		port, err := strconv.Atoi(rest[3])
		if err != nil || port < 1 || port > 65535 {
			return opts, &usageError{fmt.Sprintf("invalid port %q", rest[3])}
		}
		opts.port = port
	}
	return opts, nil
}

func printUsage(w io.Writer) {
	var opts options
	fmt.Fprint(w, usageText)
	fmt.Fprint(w, newFlagSet(&opts).FlagUsages())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one session. Cancelling ctx interrupts it at any point,
// including while connecting.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(stdout)
			return exitOK
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		printUsage(stderr)
		return exitFailure
	}
	if opts.version {
		fmt.Fprintln(stdout, "streamctl", Version)
		return exitOK
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := streamctl.LoadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	for _, w := range streamctl.ValidateConfig(cfg) {
		slog.Warn("config", "warning", w)
	}
	if opts.host != "" {
		cfg.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Port = opts.port
	}

	slog.Debug("connecting", "address", cfg.Address(), "timeout", cfg.ConnectTimeout)
	conn, err := connection.Dial(ctx, cfg.Host, cfg.Port, cfg.ConnectTimeout)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(stdout, "Interrupted")
			return exitInterrupted
		}
		fmt.Fprintln(stdout, "Unable to connect to remote host")
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	fmt.Fprintln(stdout, "Connected to remote host")

	var record *transcript.Writer
	if opts.transcript != "" {
		path, err := streamctl.ExpandPath(opts.transcript)
		if err == nil {
			record, err = transcript.Open(path, opts.key)
		}
		if err != nil {
			conn.Close()
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitFailure
		}
		defer record.Close()
	}

	loop := console.New(conn, stdin, stdout, console.Options{
		Session:      streamctl.Session{LicenseKey: opts.key, InputURI: opts.inputURI},
		ChunkSize:    cfg.ChunkSize,
		MaxFrameSize: frameLimit(cfg.MaxFrameSize),
		ResponseTTL:  cfg.ResponseTTL,
		DrainTimeout: cfg.DrainTimeout,
		Color:        !opts.noColor && isTerminal(stdout),
		Transcript:   record,
	})
	outcome, err := loop.Run(ctx)
	slog.Debug("session ended", "outcome", outcome)
	return exitCode(outcome, err, stderr)
}

func exitCode(outcome console.Outcome, err error, stderr io.Writer) int {
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	switch outcome {
	case console.Quit, console.PeerClosed, console.InputClosed:
		return exitOK
	case console.Interrupted:
		return exitInterrupted
	}
	return exitFailure
}

// frameLimit converts the configured limit, falling back to the largest
// length a header can carry when the value is out of range.
func frameLimit(n int) uint32 {
	if n <= 0 || uint64(n) > frame.MaxBodySize {
		return frame.MaxBodySize
	}
	return uint32(n)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
