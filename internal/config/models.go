package config

import "time"

// Config is the full server configuration. Values come from defaults, then
// the YAML file, then CHIPPY_* environment variables, then CLI flags.
type Config struct {
	Env       string          `yaml:"env"`
	Server    ServerConfig    `yaml:"server"`
	Handshake HandshakeConfig `yaml:"handshake"`
	Redis     RedisConfig     `yaml:"redis"`
	Sink      SinkConfig      `yaml:"sink"`
	Status    StatusConfig    `yaml:"status"`
	Admin     AdminConfig     `yaml:"admin"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Sentry    SentryConfig    `yaml:"sentry"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Hostname        string        `yaml:"hostname"`
	Port            int           `yaml:"port"`
	Concurrency     int           `yaml:"concurrency"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Instance        string        `yaml:"instance"` // status store namespace, defaults to the hostname
}

type HandshakeConfig struct {
	RetryInterval time.Duration `yaml:"retry_interval"`
	ModeAttempts  int           `yaml:"mode_attempts"`
	BufferSize    int           `yaml:"buffer_size"`
	Applications  []string      `yaml:"applications"` // context marks as hex, e.g. "a40002000501"
}

type RedisConfig struct {
	URL  string `yaml:"url"`
	List string `yaml:"list"`
}

type SinkConfig struct {
	Backend     string `yaml:"backend"` // redis, nats or memory
	Codec       string `yaml:"codec"`   // json or cbor
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`
}

type StatusConfig struct {
	Backend     string `yaml:"backend"` // redis, postgres or memory
	PostgresDSN string `yaml:"postgres_dsn"`
}

// AdminConfig controls the HTTP admin endpoint. Empty Addr disables it.
type AdminConfig struct {
	Addr string `yaml:"addr"`
}

type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

type SentryConfig struct {
	DSN string `yaml:"dsn"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}
