// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for sockmesh-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Storage StorageSection `koanf:"storage"`
	Session SessionSection `koanf:"session"`
	Metrics MetricsSection `koanf:"metrics"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	Socket SocketConfig `koanf:"socket"`
	Local  LocalConfig  `koanf:"local"`
}

// SocketConfig configures the TCP socket server.
type SocketConfig struct {
	Addr string `koanf:"addr"`

	// RateLimit is the per-client token issue budget in requests
	// per second. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`

	// RateBurst is the per-client burst allowance.
	RateBurst int `koanf:"rate_burst"`

	// MaxLineBytes caps the size of a single wire frame.
	MaxLineBytes int `koanf:"max_line_bytes"`

	// IdleTimeout disconnects clients with no traffic for this long.
	IdleTimeout time.Duration `koanf:"idle_timeout"`
}

// LocalConfig configures the local management socket.
type LocalConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// StorageSection configures session persistence.
type StorageSection struct {
	// Driver selects the backing store: mysql, badger, or memory.
	Driver string `koanf:"driver"`

	// DSN is the MySQL data source name (mysql driver only).
	DSN string `koanf:"dsn"`

	// DataDir is the Badger database directory (badger driver only).
	DataDir string `koanf:"data_dir"`

	// MaxOpenConns bounds the MySQL connection pool.
	MaxOpenConns int `koanf:"max_open_conns"`

	// MaxIdleConns bounds idle MySQL connections.
	MaxIdleConns int `koanf:"max_idle_conns"`

	// ConnMaxIdleTime retires idle MySQL connections.
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

// SessionSection configures session engine behavior.
type SessionSection struct {
	// TTL is the sliding session lifetime. Every save pushes the
	// expiry out to now+TTL.
	TTL time.Duration `koanf:"ttl"`

	// SaveBufferSize is the per-connection write-behind queue depth.
	SaveBufferSize int `koanf:"save_buffer_size"`

	// LockShards is the shard count of the per-token lock map.
	// Must be a power of 2.
	LockShards int `koanf:"lock_shards"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
