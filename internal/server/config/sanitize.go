// Package config defines the server configuration structure.
package config

import "github.com/yndnr/sockmesh-go/internal/telemetry/logger"

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	// Create a shallow copy
	sanitized := *cfg

	if sanitized.Storage.DSN != "" {
		sanitized.Storage.DSN = logger.MaskDSN(sanitized.Storage.DSN)
	}

	return &sanitized
}
