package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Identity      IdentityConfig      `toml:"identity"`
	Hub           HubConfig           `toml:"hub"`
	Database      DatabaseConfig      `toml:"database"`
	Notifications NotificationsConfig `toml:"notifications"`
	Log           LogConfig           `toml:"log"`
}

// ServerConfig contains the REST and push endpoints of the music service.
type ServerConfig struct {
	BaseURL string `toml:"base_url"`
	WSURL   string `toml:"ws_url"`
}

// IdentityConfig identifies the signed-in user. The token is attached to every REST call and channel handshake.
type IdentityConfig struct {
	UserID string `toml:"user_id"`
	Token  string `toml:"token"`
}

// HubConfig tunes the channel connections, resync cadence and optimistic mutations.
type HubConfig struct {
	ReconnectMin    Duration `toml:"reconnect_min"`
	ReconnectMax    Duration `toml:"reconnect_max"`
	PingInterval    Duration `toml:"ping_interval"`
	PongWait        Duration `toml:"pong_wait"`
	SendBuffer      int      `toml:"send_buffer"`
	MutationTimeout Duration `toml:"mutation_timeout"`
	ResyncInterval  Duration `toml:"resync_interval"`
	KeepWarm        bool     `toml:"keep_warm"`
	PageSize        int      `toml:"page_size"`
}

// DatabaseConfig contains database connection settings for the local snapshot cache.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// NotificationsConfig controls the desktop notification side-channel.
type NotificationsConfig struct {
	Desktop bool   `toml:"desktop"`
	Icon    string `toml:"icon"`
}

// LogConfig sets the minimum log level ("debug", "info", "warn", "error").
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration wraps [time.Duration] so TOML files can use strings like "1s" or "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveConfig encodes the config as TOML and writes it to path, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate reports configuration values the hub cannot run with.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("%w: server.base_url is empty", ErrInvalidConfig)
	}
	if c.Hub.ReconnectMin.Duration <= 0 || c.Hub.ReconnectMax.Duration < c.Hub.ReconnectMin.Duration {
		return fmt.Errorf("%w: hub.reconnect_min must be positive and not exceed hub.reconnect_max", ErrInvalidConfig)
	}
	if c.Hub.SendBuffer <= 0 {
		return fmt.Errorf("%w: hub.send_buffer must be positive", ErrInvalidConfig)
	}
	if c.Hub.MutationTimeout.Duration <= 0 {
		return fmt.Errorf("%w: hub.mutation_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}
