// Package logger provides structured logging for SockMesh.
package logger

import (
	"log/slog"
	"strings"
)

// Key patterns whose values are fully redacted.
var secretKeyPatterns = []string{
	"password",
	"secret",
	"credential",
	"dsn",
	"auth",
}

// Key patterns whose values are partially masked. Session tokens are
// opaque random strings with no recognizable prefix, so detection is
// key-driven; partial masking keeps enough of the value to correlate
// log lines without disclosing a usable token.
var maskedKeyPatterns = []string{
	"token",
	"session_id",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive checks if an attribute contains sensitive data
// and redacts it if necessary.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		keyLower := strings.ToLower(a.Key)

		for _, pattern := range secretKeyPatterns {
			if strings.Contains(keyLower, pattern) {
				if strVal != "" {
					return slog.String(a.Key, redactedValue)
				}
				return a
			}
		}

		for _, pattern := range maskedKeyPatterns {
			if strings.Contains(keyLower, pattern) {
				if strVal != "" {
					return slog.String(a.Key, MaskToken(strVal))
				}
				return a
			}
		}
	}

	// Handle nested groups recursively
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// MaskToken partially masks a session token, keeping the first and
// last 4 characters. Values too short to mask meaningfully are fully
// replaced.
func MaskToken(value string) string {
	if len(value) <= 10 {
		return "****"
	}
	return value[:4] + "..." + value[len(value)-4:]
}

// MaskDSN masks the credential portion of a data source name such as
// "user:password@tcp(host:3306)/db". Everything before the last '@'
// is replaced so neither user nor password leaks.
func MaskDSN(dsn string) string {
	idx := strings.LastIndex(dsn, "@")
	if idx < 0 {
		return dsn
	}
	return redactedValue + dsn[idx:]
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range secretKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	for _, pattern := range maskedKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
