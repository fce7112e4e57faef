package streamctl

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"mvdan.cc/sh/v3/shell"

	defaults "github.com/Paranoid-AF/streamctl/default"
)

// Config holds the client's connection and loop settings.
type Config struct {
	Host           string        `toml:"host"`
	Port           int           `toml:"port"`
	ConnectTimeout time.Duration `toml:"connect_timeout"`
	ChunkSize      int           `toml:"chunk_size"`
	MaxFrameSize   int           `toml:"max_frame_size"`
	ResponseTTL    time.Duration `toml:"response_ttl"`
	DrainTimeout   time.Duration `toml:"drain_timeout"`

	// unknown holds keys present in the file but not understood.
	unknown []string
}

// DefaultConfig returns the configuration embedded in default_config.toml.
func DefaultConfig() *Config {
	var cfg Config
	if _, err := toml.NewDecoder(bytes.NewReader(defaults.DefaultConfigTOML)).Decode(&cfg); err != nil {
		panic("streamctl: invalid embedded default_config.toml: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from path, or returns defaults when path is empty
// or the file does not exist. Zero-valued fields fall back to defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	resolved, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for _, key := range md.Undecoded() {
		cfg.unknown = append(cfg.unknown, key.String())
	}

	// Apply defaults for missing fields
	defaults := DefaultConfig()
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		cfg.Host = defaults.Host
	}
	if cfg.Port == 0 {
		cfg.Port = defaults.Port
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = defaults.ChunkSize
	}
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = defaults.MaxFrameSize
	}
	if cfg.ResponseTTL == 0 {
		cfg.ResponseTTL = defaults.ResponseTTL
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = defaults.DrainTimeout
	}

	return &cfg, nil
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	for _, key := range cfg.unknown {
		warnings = append(warnings, fmt.Sprintf("unknown config key %q", key))
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		warnings = append(warnings, fmt.Sprintf("port %d is outside 1-65535", cfg.Port))
	}
	if cfg.ConnectTimeout < 0 {
		warnings = append(warnings, "connect_timeout is negative; connecting will fail immediately")
	}
	if cfg.ChunkSize < 0 {
		warnings = append(warnings, "chunk_size is negative")
	}
	if cfg.MaxFrameSize < 0 || uint64(cfg.MaxFrameSize) > 1<<32-1 {
		warnings = append(warnings, "max_frame_size must fit in a 4-byte length header")
	}
	return warnings
}

// Address returns host:port for dialing.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ExpandPath applies shell-style tilde and variable expansion to a path
// given on the command line. The result must be exactly one word.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	fields, err := shell.Fields(trimmed, nil)
	if err != nil {
		return "", fmt.Errorf("expand path %q: %w", path, err)
	}
	if len(fields) != 1 {
		return "", fmt.Errorf("expand path %q: expected one word, got %d", path, len(fields))
	}
	return fields[0], nil
}
