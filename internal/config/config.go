package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/FastTravelAS/chippy/internal/handshake"
	"github.com/FastTravelAS/chippy/internal/protocol"
	"github.com/FastTravelAS/chippy/internal/status"
	"gopkg.in/yaml.v3"
)

const (
	appName    = "chippy"
	configFile = "config.yaml"

	DefaultHostname = "0.0.0.0"
	DefaultPort     = 44999
	DefaultRedisURL = "redis://localhost:6379"
	DefaultList     = "chippy:readings"
	DefaultSubject  = "chippy.readings"

	EnvTest = "test"
)

// Default returns the configuration used when nothing is set.
func Default() *Config {
	marks := make([]string, len(protocol.DefaultContextMarks))
	for i, m := range protocol.DefaultContextMarks {
		marks[i] = hex.EncodeToString(m[:])
	}
	return &Config{
		Env: "production",
		Server: ServerConfig{
			Hostname:        DefaultHostname,
			Port:            DefaultPort,
			Concurrency:     10,
			ShutdownTimeout: 10 * time.Second,
		},
		Handshake: HandshakeConfig{
			RetryInterval: handshake.DefaultRetryInterval,
			ModeAttempts:  handshake.DefaultModeAttempts,
			BufferSize:    handshake.DefaultBufferSize,
			Applications:  marks,
		},
		Redis: RedisConfig{URL: DefaultRedisURL, List: DefaultList},
		Sink: SinkConfig{
			Backend:     "redis",
			Codec:       "json",
			NATSURL:     "nats://localhost:4222",
			NATSSubject: DefaultSubject,
		},
		Status: StatusConfig{Backend: "redis"},
		Log:    LogConfig{Level: "info"},
	}
}

// GetConfigDir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/chippy or $HOME/.config/chippy
//   - macOS: $HOME/.config/chippy
//   - Windows: %LOCALAPPDATA%\chippy
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, appName), nil
		}
		profile := os.Getenv("USERPROFILE")
		if profile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(profile, "AppData", "Local", appName), nil
	case "darwin":
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// GetConfigPath returns the default configuration file path.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load builds the configuration from defaults, the YAML file at path and the
// environment. An empty path falls back to the default location, which may
// be absent.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if p, err := GetConfigPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies CHIPPY_* variables on top of cfg.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", key, v)
		}
		*dst = n
		return nil
	}

	// Unprefixed names are still honoured for existing deployments. HOSTNAME
	// is not, since most shells export it.
	str("REDIS_URL", &cfg.Redis.URL)
	str("REDIS_LIST", &cfg.Redis.List)
	if err := num("CONCURRENCY", &cfg.Server.Concurrency); err != nil {
		return err
	}

	str("CHIPPY_ENV", &cfg.Env)
	str("CHIPPY_HOSTNAME", &cfg.Server.Hostname)
	if err := num("CHIPPY_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if err := num("CHIPPY_CONCURRENCY", &cfg.Server.Concurrency); err != nil {
		return err
	}
	str("CHIPPY_INSTANCE", &cfg.Server.Instance)
	str("CHIPPY_REDIS_URL", &cfg.Redis.URL)
	str("CHIPPY_REDIS_LIST", &cfg.Redis.List)
	str("CHIPPY_SINK", &cfg.Sink.Backend)
	str("CHIPPY_SINK_CODEC", &cfg.Sink.Codec)
	str("CHIPPY_NATS_URL", &cfg.Sink.NATSURL)
	str("CHIPPY_NATS_SUBJECT", &cfg.Sink.NATSSubject)
	str("CHIPPY_STATUS_STORE", &cfg.Status.Backend)
	str("CHIPPY_POSTGRES_DSN", &cfg.Status.PostgresDSN)
	str("CHIPPY_ADMIN_ADDR", &cfg.Admin.Addr)
	str("CHIPPY_LOG_LEVEL", &cfg.Log.Level)
	str("SENTRY_DSN", &cfg.Sentry.DSN)
	str("CHIPPY_SENTRY_DSN", &cfg.Sentry.DSN)
	if v, ok := lookup("CHIPPY_MDNS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CHIPPY_MDNS: %q is not a boolean", v)
		}
		cfg.Discovery.Enabled = b
	}

	if cfg.Env == EnvTest {
		cfg.Handshake.RetryInterval = handshake.TestRetryInterval
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Server.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Server.Concurrency)
	}
	switch c.Sink.Backend {
	case "redis", "nats", "memory":
	default:
		return fmt.Errorf("unknown sink backend %q", c.Sink.Backend)
	}
	switch c.Sink.Codec {
	case "", "json", "cbor":
	default:
		return fmt.Errorf("unknown sink codec %q", c.Sink.Codec)
	}
	switch c.Status.Backend {
	case "redis", "memory":
	case "postgres":
		if c.Status.PostgresDSN == "" {
			return errors.New("postgres status store requires a dsn")
		}
	default:
		return fmt.Errorf("unknown status backend %q", c.Status.Backend)
	}
	if _, err := c.ContextMarks(); err != nil {
		return err
	}
	return nil
}

// ContextMarks parses the configured application profiles.
func (c *Config) ContextMarks() ([]protocol.ContextMark, error) {
	marks := make([]protocol.ContextMark, 0, len(c.Handshake.Applications))
	for _, s := range c.Handshake.Applications {
		b, err := hex.DecodeString(s)
		if err != nil || len(b) != len(protocol.ContextMark{}) {
			return nil, fmt.Errorf("invalid application context mark %q: want 6 hex bytes", s)
		}
		var m protocol.ContextMark
		copy(m[:], b)
		marks = append(marks, m)
	}
	return marks, nil
}

// HandshakeOptions converts the handshake settings.
func (c *Config) HandshakeOptions() (handshake.Options, error) {
	marks, err := c.ContextMarks()
	if err != nil {
		return handshake.Options{}, err
	}
	return handshake.Options{
		RetryInterval: c.Handshake.RetryInterval,
		ModeAttempts:  c.Handshake.ModeAttempts,
		BufferSize:    c.Handshake.BufferSize,
		Applications:  marks,
	}, nil
}

// Instance returns the status store namespace for this server.
func (c *Config) Instance() string {
	if c.Server.Instance != "" {
		return c.Server.Instance
	}
	return status.DefaultInstance()
}
