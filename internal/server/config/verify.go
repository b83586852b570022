// Package config defines the server configuration structure.
package config

import (
	"errors"
	"os"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifySession(&cfg.Session); err != nil {
		return err
	}
	return nil
}

func verifyServer(cfg *ServerSection) error {
	if cfg.Socket.Addr == "" {
		return errors.New("server.socket.addr is required")
	}
	if cfg.Socket.RateLimit < 0 {
		return errors.New("server.socket.rate_limit must not be negative")
	}
	if cfg.Socket.RateLimit > 0 && cfg.Socket.RateBurst < 1 {
		return errors.New("server.socket.rate_burst must be at least 1 when rate limiting is on")
	}
	if cfg.Socket.MaxLineBytes < 1024 {
		return errors.New("server.socket.max_line_bytes must be at least 1024")
	}
	if cfg.Local.Enabled && cfg.Local.Path == "" {
		return errors.New("server.local.path is required when the local socket is enabled")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Driver {
	case "mysql":
		if cfg.DSN == "" {
			return errors.New("storage.dsn is required for the mysql driver")
		}
	case "badger":
		if cfg.DataDir == "" {
			return errors.New("storage.data_dir is required for the badger driver")
		}
		// Check if data directory exists or can be created
		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return errors.New("cannot create data directory: " + err.Error())
		}
	case "memory":
		// No settings to check.
	default:
		return errors.New("storage.driver must be mysql, badger, or memory")
	}
	return nil
}

func verifySession(cfg *SessionSection) error {
	if cfg.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}
	if cfg.SaveBufferSize < 1 {
		return errors.New("session.save_buffer_size must be at least 1")
	}
	if cfg.LockShards < 1 || cfg.LockShards&(cfg.LockShards-1) != 0 {
		return errors.New("session.lock_shards must be a power of 2")
	}
	return nil
}
