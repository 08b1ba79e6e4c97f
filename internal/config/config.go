package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that reads and writes as a Go duration string ("1s", "250ms").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config represents ~/.storechat/config.toml.
type Config struct {
	UserName           string `toml:"user_name"`
	DefaultCounterpart string `toml:"default_counterpart"`

	Server   ServerConfig   `toml:"server"`
	Sync     SyncConfig     `toml:"sync"`
	Receipts ReceiptsConfig `toml:"receipts"`
	Typing   TypingConfig   `toml:"typing"`
	Channel  ChannelConfig  `toml:"channel"`
}

// ServerConfig holds addresses shared by chatd and its clients.
type ServerConfig struct {
	BackendAddr string `toml:"backend_addr"`
	ChannelURL  string `toml:"channel_url"`
	ListenGRPC  string `toml:"listen_grpc"`
	ListenHTTP  string `toml:"listen_http"`
	DataDir     string `toml:"data_dir"`
}

// SyncConfig tunes the message synchronization engine.
type SyncConfig struct {
	EchoTolerance Duration `toml:"echo_tolerance"`
	HistoryLimit  int      `toml:"history_limit"`
}

// ReceiptsConfig tunes the read-receipt debouncer.
type ReceiptsConfig struct {
	QuietPeriod Duration `toml:"quiet_period"`
	MinInterval Duration `toml:"min_interval"`
}

// TypingConfig tunes the typing indicator.
type TypingConfig struct {
	IdleTimeout Duration `toml:"idle_timeout"`
}

// ChannelConfig tunes the live channel connection.
type ChannelConfig struct {
	ReconnectAttempts int      `toml:"reconnect_attempts"`
	ReconnectBackoff  Duration `toml:"reconnect_backoff"`
	DialTimeout       Duration `toml:"dial_timeout"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BackendAddr: "127.0.0.1:7410",
			ChannelURL:  "ws://127.0.0.1:7411/ws",
			ListenGRPC:  "127.0.0.1:7410",
			ListenHTTP:  "127.0.0.1:7411",
		},
		Sync: SyncConfig{
			EchoTolerance: Duration{10 * time.Second},
			HistoryLimit:  200,
		},
		Receipts: ReceiptsConfig{
			QuietPeriod: Duration{time.Second},
			MinInterval: Duration{2 * time.Second},
		},
		Typing: TypingConfig{
			IdleTimeout: Duration{3 * time.Second},
		},
		Channel: ChannelConfig{
			ReconnectAttempts: 5,
			ReconnectBackoff:  Duration{2 * time.Second},
			DialTimeout:       Duration{10 * time.Second},
		},
	}
}

// Load reads config from the given path on top of Default. Returns error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
