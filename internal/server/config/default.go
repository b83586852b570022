// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultSocketAddr   = "127.0.0.1:5260"
	DefaultLocalSocket  = "/var/run/sockmesh-server/sockmesh-server.sock"
	DefaultMetricsAddr  = "127.0.0.1:5261"
	DefaultRateLimit    = 10.0
	DefaultRateBurst    = 20
	DefaultMaxLineBytes = 64 * 1024
	DefaultIdleTimeout  = 5 * time.Minute

	DefaultStorageDriver = "memory"
	DefaultDataDir       = "/var/lib/sockmesh-server/data"

	DefaultSessionTTL     = 24 * time.Hour
	DefaultSaveBufferSize = 64
	DefaultLockShards     = 16

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Socket: SocketConfig{
				Addr:         DefaultSocketAddr,
				RateLimit:    DefaultRateLimit,
				RateBurst:    DefaultRateBurst,
				MaxLineBytes: DefaultMaxLineBytes,
				IdleTimeout:  DefaultIdleTimeout,
			},
			Local: LocalConfig{
				Enabled: false,
				Path:    DefaultLocalSocket,
			},
		},
		Storage: StorageSection{
			Driver:  DefaultStorageDriver,
			DataDir: DefaultDataDir,
		},
		Session: SessionSection{
			TTL:            DefaultSessionTTL,
			SaveBufferSize: DefaultSaveBufferSize,
			LockShards:     DefaultLockShards,
		},
		Metrics: MetricsSection{
			Enabled: false,
			Addr:    DefaultMetricsAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
