// Command streamctl-serve is a stand-in for the streaming daemon.
// It listens on TCP, reads length-prefixed JSON-RPC requests and answers
// each known command with "OK", so the client can be exercised without a
// real daemon.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	streamctl "github.com/Paranoid-AF/streamctl"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	fs := pflag.NewFlagSet("streamctl-serve", pflag.ExitOnError)
	listen := fs.String("listen", "", "address to listen on (default $STREAMCTL_LISTEN or the client's default host:port)")
	split := fs.Bool("split-writes", false, "send every frame in two writes")
	pingInterval := fs.Duration("ping-interval", 0, "push ping_client to clients at this interval (0 disables)")
	maxStopDelay := fs.Duration("max-stop-delay", defaultMaxStopDelay, "upper bound for the stop_service delay")
	showVersion := fs.Bool("version", false, "print version and exit")
	verbose := fs.BoolP("verbose", "v", false, "log every request and response to stderr")
	fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println("streamctl-serve", Version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	addr := resolveListenAddr(*listen)
	srv, err := NewServer(addr, Options{
		SplitWrites:  *split,
		PingInterval: *pingInterval,
		MaxStopDelay: *maxStopDelay,
	})
	if err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}
	defer srv.Close()
	slog.Info("listening", "address", srv.Addr().String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("shutting down")
		srv.Close()
	}()

	start := time.Now()
	if err := srv.Serve(); err != nil {
		slog.Error("server error", "error", err)
		srv.Close()
		os.Exit(1)
	}
	slog.Info("stopped", "uptime", time.Since(start).Round(time.Second))
}

// resolveListenAddr picks the listen address: the flag, then
// $STREAMCTL_LISTEN, then the address the client dials by default.
func resolveListenAddr(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if addr := os.Getenv("STREAMCTL_LISTEN"); addr != "" {
		return addr
	}
	return streamctl.DefaultConfig().Address()
}
