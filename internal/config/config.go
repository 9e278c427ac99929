// Package config loads the keybridge daemon configuration.
//
// Precedence, lowest first: DefaultConfig, the YAML file, KEYBRIDGE_*
// environment variables, then command-line flags. Validate runs last so the
// rest of the code can assume a well-formed config.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the keybridge daemon.
type Config struct {
	// Remote listener connection
	Channel ChannelConfig `yaml:"channel"`

	// Hardware key capture
	Input InputConfig `yaml:"input"`

	// Local control socket (keybridge-ctl)
	IPC IPCConfig `yaml:"ipc"`

	// System tray
	Tray TrayConfig `yaml:"tray"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type ChannelConfig struct {
	Host                string `yaml:"host"                  env:"KEYBRIDGE_HOST"`
	Path                string `yaml:"path"                  env:"KEYBRIDGE_PATH"`
	ReconnectDelayMS    int    `yaml:"reconnect_delay_ms"    env:"KEYBRIDGE_RECONNECT_DELAY_MS"`
	HeartbeatIntervalMS int    `yaml:"heartbeat_interval_ms" env:"KEYBRIDGE_HEARTBEAT_INTERVAL_MS"`
	HandshakeTimeoutMS  int    `yaml:"handshake_timeout_ms"  env:"KEYBRIDGE_HANDSHAKE_TIMEOUT_MS"`
	SendQueue           int    `yaml:"send_queue"            env:"KEYBRIDGE_SEND_QUEUE"`
}

type InputConfig struct {
	// Devices lists evdev nodes to watch. Empty disables key capture.
	Devices []string `yaml:"devices" env:"KEYBRIDGE_INPUT_DEVICES" envSeparator:","`
}

type IPCConfig struct {
	// SocketPath is the unix socket for keybridge-ctl. Empty disables it.
	SocketPath string `yaml:"socket_path" env:"KEYBRIDGE_IPC_SOCKET"`
}

type TrayConfig struct {
	Enabled bool `yaml:"enabled" env:"KEYBRIDGE_TRAY"`
}

type LoggingConfig struct {
	Level string `yaml:"level" env:"KEYBRIDGE_LOG_LEVEL"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Channel: ChannelConfig{
			Host:                "localhost:8000",
			Path:                "/ws",
			ReconnectDelayMS:    2000,
			HeartbeatIntervalMS: 5000,
			HandshakeTimeoutMS:  10000,
			SendQueue:           16,
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/keybridge.sock",
		},
		Tray: TrayConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// ApplyEnv overlays KEYBRIDGE_* environment variables onto cfg.
// Variables that are not set leave the existing value alone.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// FlagOverrides carries values from flags that were explicitly set.
// Each override is only applied if its pointer is non-nil.
type FlagOverrides struct {
	Host        *string
	InputDevice *string
	IPCSocket   *string
	Tray        *bool
	LogLevel    *string
}

// Apply merges the overrides into cfg. If the pointer is non-nil, the value is
// applied even if it is a zero value.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Host != nil {
		cfg.Channel.Host = *o.Host
	}
	if o.InputDevice != nil {
		if *o.InputDevice == "" {
			cfg.Input.Devices = nil
		} else {
			cfg.Input.Devices = []string{*o.InputDevice}
		}
	}
	if o.IPCSocket != nil {
		cfg.IPC.SocketPath = *o.IPCSocket
	}
	if o.Tray != nil {
		cfg.Tray.Enabled = *o.Tray
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
func (c *Config) Validate() error {
	// Channel
	if c.Channel.Host == "" {
		return errors.New("channel.host must not be empty")
	}
	if _, _, err := net.SplitHostPort(c.Channel.Host); err != nil {
		return fmt.Errorf("channel.host must be host:port: %w", err)
	}
	if !strings.HasPrefix(c.Channel.Path, "/") {
		return errors.New("channel.path must start with /")
	}
	if c.Channel.ReconnectDelayMS <= 0 {
		return errors.New("channel.reconnect_delay_ms must be > 0")
	}
	if c.Channel.HeartbeatIntervalMS <= 0 {
		return errors.New("channel.heartbeat_interval_ms must be > 0")
	}
	if c.Channel.HandshakeTimeoutMS <= 0 {
		return errors.New("channel.handshake_timeout_ms must be > 0")
	}
	if c.Channel.SendQueue <= 0 || c.Channel.SendQueue > 1024 {
		return errors.New("channel.send_queue must be between 1 and 1024")
	}

	// Input
	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	return nil
}

// URL is the websocket endpoint of the remote listener.
func (c ChannelConfig) URL() string {
	return "ws://" + c.Host + c.Path
}

// PageURL is the listener's web page, opened from the tray.
func (c ChannelConfig) PageURL() string {
	return "http://" + c.Host
}

func (c ChannelConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMS) * time.Millisecond
}

func (c ChannelConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

func (c ChannelConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutMS) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
