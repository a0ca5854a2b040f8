package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FastTravelAS/chippy/internal/handshake"
	"github.com/FastTravelAS/chippy/internal/protocol"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 44999 {
		t.Errorf("Port = %d, want 44999", cfg.Server.Port)
	}
	if cfg.Server.Hostname != "0.0.0.0" {
		t.Errorf("Hostname = %q", cfg.Server.Hostname)
	}
	if cfg.Server.Concurrency != 10 {
		t.Errorf("Concurrency = %d, want 10", cfg.Server.Concurrency)
	}
	if cfg.Redis.URL != "redis://localhost:6379" || cfg.Redis.List != "chippy:readings" {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	marks, err := cfg.ContextMarks()
	if err != nil {
		t.Fatal(err)
	}
	if len(marks) != len(protocol.DefaultContextMarks) || marks[0] != protocol.DefaultContextMarks[0] {
		t.Errorf("ContextMarks = %x", marks)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		verify  func(*testing.T, *Config)
	}{
		{
			name: "listener and redis",
			env: map[string]string{
				"CHIPPY_PORT":        "5000",
				"CHIPPY_HOSTNAME":    "127.0.0.1",
				"CHIPPY_CONCURRENCY": "3",
				"CHIPPY_REDIS_URL":   "redis://cache:6379/2",
				"CHIPPY_REDIS_LIST":  "tags",
			},
			verify: func(t *testing.T, c *Config) {
				if c.Server.Port != 5000 || c.Server.Hostname != "127.0.0.1" || c.Server.Concurrency != 3 {
					t.Errorf("Server = %+v", c.Server)
				}
				if c.Redis.URL != "redis://cache:6379/2" || c.Redis.List != "tags" {
					t.Errorf("Redis = %+v", c.Redis)
				}
			},
		},
		{
			name: "unprefixed names",
			env:  map[string]string{"REDIS_URL": "redis://other:6379", "CONCURRENCY": "4", "HOSTNAME": "box-1"},
			verify: func(t *testing.T, c *Config) {
				if c.Redis.URL != "redis://other:6379" || c.Server.Concurrency != 4 {
					t.Errorf("got %+v %+v", c.Redis, c.Server)
				}
				if c.Server.Hostname != DefaultHostname {
					t.Errorf("HOSTNAME leaked into bind address: %q", c.Server.Hostname)
				}
			},
		},
		{
			name: "prefixed wins over unprefixed",
			env:  map[string]string{"REDIS_LIST": "a", "CHIPPY_REDIS_LIST": "b"},
			verify: func(t *testing.T, c *Config) {
				if c.Redis.List != "b" {
					t.Errorf("List = %q, want b", c.Redis.List)
				}
			},
		},
		{
			name: "test env shortens retry",
			env:  map[string]string{"CHIPPY_ENV": "test"},
			verify: func(t *testing.T, c *Config) {
				if c.Handshake.RetryInterval != handshake.TestRetryInterval {
					t.Errorf("RetryInterval = %v", c.Handshake.RetryInterval)
				}
			},
		},
		{
			name: "backends",
			env: map[string]string{
				"CHIPPY_SINK":         "nats",
				"CHIPPY_STATUS_STORE": "postgres",
				"CHIPPY_POSTGRES_DSN": "postgres://localhost/chippy",
				"CHIPPY_MDNS":         "true",
				"SENTRY_DSN":          "https://key@sentry.example/1",
			},
			verify: func(t *testing.T, c *Config) {
				if c.Sink.Backend != "nats" || c.Status.Backend != "postgres" {
					t.Errorf("backends = %s/%s", c.Sink.Backend, c.Status.Backend)
				}
				if !c.Discovery.Enabled {
					t.Error("discovery not enabled")
				}
				if c.Sentry.DSN == "" {
					t.Error("sentry dsn not set")
				}
			},
		},
		{name: "bad port", env: map[string]string{"CHIPPY_PORT": "http"}, wantErr: true},
		{name: "bad bool", env: map[string]string{"CHIPPY_MDNS": "maybe"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := applyEnvOverrides(cfg, env(tt.env))
			if (err != nil) != tt.wantErr {
				t.Fatalf("applyEnvOverrides() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.verify != nil {
				tt.verify(t, cfg)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{"CHIPPY_PORT", "CHIPPY_ENV", "REDIS_URL", "CONCURRENCY"} {
		t.Setenv(k, "")
	}

	t.Run("missing default file", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Server.Port != DefaultPort {
			t.Errorf("Port = %d", cfg.Server.Port)
		}
	})

	t.Run("missing explicit file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		data := `
server:
  port: 4000
  read_timeout: 30s
handshake:
  retry_interval: 2s
  applications: ["a40002000501"]
sink:
  backend: memory
  codec: cbor
`
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Server.Port != 4000 || cfg.Server.ReadTimeout != 30*time.Second {
			t.Errorf("Server = %+v", cfg.Server)
		}
		if cfg.Server.Concurrency != 10 {
			t.Errorf("unset field lost its default: %d", cfg.Server.Concurrency)
		}
		if cfg.Handshake.RetryInterval != 2*time.Second || len(cfg.Handshake.Applications) != 1 {
			t.Errorf("Handshake = %+v", cfg.Handshake)
		}
		if cfg.Sink.Backend != "memory" || cfg.Sink.Codec != "cbor" {
			t.Errorf("Sink = %+v", cfg.Sink)
		}
	})

	t.Run("env beats file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("server:\n  port: 4000\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Setenv("CHIPPY_PORT", "4001")
		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Server.Port != 4001 {
			t.Errorf("Port = %d, want 4001", cfg.Server.Port)
		}
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("server: [\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Fatal("expected parse error")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "zero concurrency", mutate: func(c *Config) { c.Server.Concurrency = 0 }, wantErr: "concurrency"},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "port"},
		{name: "unknown sink", mutate: func(c *Config) { c.Sink.Backend = "kafka" }, wantErr: "sink backend"},
		{name: "unknown codec", mutate: func(c *Config) { c.Sink.Codec = "xml" }, wantErr: "codec"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Status.Backend = "postgres" }, wantErr: "dsn"},
		{name: "short context mark", mutate: func(c *Config) { c.Handshake.Applications = []string{"a400"} }, wantErr: "context mark"},
		{name: "non-hex context mark", mutate: func(c *Config) { c.Handshake.Applications = []string{"zz0002000501"} }, wantErr: "context mark"},
		{name: "port zero picks ephemeral", mutate: func(c *Config) { c.Server.Port = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestHandshakeOptions(t *testing.T) {
	cfg := Default()
	cfg.Handshake.ModeAttempts = 5
	opts, err := cfg.HandshakeOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.ModeAttempts != 5 || len(opts.Applications) != 2 {
		t.Errorf("opts = %+v", opts)
	}
}

func TestGetConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	path, err := GetConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, filepath.Join("chippy", "config.yaml")) {
		t.Errorf("path = %q", path)
	}
}
