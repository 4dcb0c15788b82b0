package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Connection types accepted in [signal] connection_type.
const (
	ConnectionWebsocket = "websocket"
	ConnectionREST      = "rest"
)

const (
	MinScanInterval = 1
	MaxScanInterval = 3600
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration for the signal receiver.
type Config struct {
	Signal  SignalConfig `toml:"signal"`
	Options Options      `toml:"options"`
	Stream  StreamConfig `toml:"stream"`
	Poll    PollConfig   `toml:"poll"`
	HTTP    HTTPConfig   `toml:"http"`
	NATS    NATSConfig   `toml:"nats"`
	Log     LogConfig    `toml:"log"`
}

// SignalConfig is the connection entry. It is fixed for the life of a
// receiver; changing it requires a restart.
type SignalConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Number         string `toml:"number"`
	ConnectionType string `toml:"connection_type"`
}

// Options are the settings that can change while running.
type Options struct {
	ScanInterval int `toml:"scan_interval"`
}

// StreamConfig tunes the websocket receiver. Values are seconds.
type StreamConfig struct {
	SettleDelay int `toml:"settle_delay"`
	MinBackoff  int `toml:"min_backoff"`
	MaxBackoff  int `toml:"max_backoff"`
	Heartbeat   int `toml:"heartbeat"`
}

// PollConfig tunes the REST receiver. Values are seconds.
type PollConfig struct {
	Timeout int `toml:"timeout"`
}

type HTTPConfig struct {
	Addr string `toml:"addr"`
}

type NATSConfig struct {
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func defaults() Config {
	return Config{
		Signal: SignalConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			ConnectionType: ConnectionWebsocket,
		},
		Options: Options{
			ScanInterval: 10,
		},
		Stream: StreamConfig{
			SettleDelay: 5,
			MinBackoff:  5,
			MaxBackoff:  60,
			Heartbeat:   30,
		},
		Poll: PollConfig{
			Timeout: 15,
		},
		HTTP: HTTPConfig{
			Addr: ":8099",
		},
		NATS: NATSConfig{
			Subject: "signal.received",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the TOML config file (if it exists) and
// applies environment variable overrides. Env vars always win.
//
// Config file resolution: explicit path → SIGNAL_CONFIG env var →
// ~/.config/signal-receiver/config.toml → skip.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = Path()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	return &cfg, nil
}

// Path returns the config file location used when none is given.
func Path() string {
	if p := os.Getenv("SIGNAL_CONFIG"); p != "" {
		return expandHome(p)
	}
	home := os.Getenv("HOME")
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "signal-receiver", "config.toml")
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SIGNAL_HOST"); v != "" {
		cfg.Signal.Host = v
	}
	if v := os.Getenv("SIGNAL_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Signal.Port = n
		}
	}
	if v := os.Getenv("SIGNAL_NUMBER"); v != "" {
		cfg.Signal.Number = v
	}
	if v := os.Getenv("SIGNAL_CONNECTION_TYPE"); v != "" {
		cfg.Signal.ConnectionType = v
	}
	if v := os.Getenv("SIGNAL_SCAN_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Options.ScanInterval = n
		}
	}
	if v := os.Getenv("SIGNAL_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("SIGNAL_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("SIGNAL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate checks the configuration before anything is started. Every
// failure wraps ErrInvalid.
func (c *Config) Validate() error {
	c.Signal.ConnectionType = strings.ToLower(strings.TrimSpace(c.Signal.ConnectionType))

	var problems []string
	if strings.TrimSpace(c.Signal.Host) == "" {
		problems = append(problems, "signal.host is required")
	}
	if c.Signal.Port < 1 || c.Signal.Port > 65535 {
		problems = append(problems, fmt.Sprintf("signal.port %d out of range 1-65535", c.Signal.Port))
	}
	if strings.TrimSpace(c.Signal.Number) == "" {
		problems = append(problems, "signal.number is required")
	}
	switch c.Signal.ConnectionType {
	case ConnectionWebsocket, ConnectionREST:
	default:
		problems = append(problems, fmt.Sprintf("signal.connection_type %q must be websocket or rest", c.Signal.ConnectionType))
	}
	if c.Signal.ConnectionType == ConnectionREST {
		if p := c.Options.problem(); p != "" {
			problems = append(problems, p)
		}
	}
	if c.Stream.SettleDelay <= 0 || c.Stream.MinBackoff <= 0 || c.Stream.MaxBackoff <= 0 || c.Stream.Heartbeat <= 0 {
		problems = append(problems, "stream durations must be positive")
	} else if c.Stream.MinBackoff > c.Stream.MaxBackoff {
		problems = append(problems, "stream.min_backoff exceeds stream.max_backoff")
	}
	if c.Poll.Timeout <= 0 {
		problems = append(problems, "poll.timeout must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Validate checks the runtime options on their own, for reloads.
func (o Options) Validate() error {
	if p := o.problem(); p != "" {
		return fmt.Errorf("%w: %s", ErrInvalid, p)
	}
	return nil
}

func (o Options) problem() string {
	if o.ScanInterval < MinScanInterval || o.ScanInterval > MaxScanInterval {
		return fmt.Sprintf("options.scan_interval %d out of range %d-%d", o.ScanInterval, MinScanInterval, MaxScanInterval)
	}
	return ""
}

// Interval returns ScanInterval as a duration.
func (o Options) Interval() time.Duration {
	return time.Duration(o.ScanInterval) * time.Second
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
