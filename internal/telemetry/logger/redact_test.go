// Package logger provides structured logging for SockMesh.
package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func captureLog(t *testing.T, fn func(l Logger)) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	l, err := New(Config{Level: "debug", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	fn(l)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v\n%s", err, buf.String())
	}
	return entry
}

func TestSecretsFullyRedacted(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"password", "db_password"},
		{"secret", "api_secret"},
		{"dsn", "storage_dsn"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			entry := captureLog(t, func(l Logger) {
				l.Info("test", tc.key, "super-sensitive-value")
			})
			if got := entry[tc.key]; got != redactedValue {
				t.Errorf("%s = %v, want %q", tc.key, got, redactedValue)
			}
		})
	}
}

func TestTokenPartiallyMasked(t *testing.T) {
	tok := "AAAABBBBCCCCDDDDEEEEFFFFGGGGHHHH"
	entry := captureLog(t, func(l Logger) {
		l.Info("test", "token", tok)
	})

	got, _ := entry["token"].(string)
	if got == tok {
		t.Fatal("token was not masked")
	}
	if !strings.HasPrefix(got, "AAAA") || !strings.HasSuffix(got, "HHHH") {
		t.Errorf("mask should keep edges for correlation, got %q", got)
	}
	if strings.Contains(got, "BBBBCCCC") {
		t.Errorf("mask leaked token body: %q", got)
	}
}

func TestNonSensitiveKeysUntouched(t *testing.T) {
	entry := captureLog(t, func(l Logger) {
		l.Info("test", "driver", "mysql")
	})
	if got := entry["driver"]; got != "mysql" {
		t.Errorf("driver = %v, want mysql", got)
	}
}

func TestMaskDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{
			"mysql dsn",
			"app:hunter2@tcp(db.internal:3306)/sessions",
			redactedValue + "@tcp(db.internal:3306)/sessions",
		},
		{"no credentials", "/tmp/sockmesh.db", "/tmp/sockmesh.db"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MaskDSN(tc.dsn); got != tc.want {
				t.Errorf("MaskDSN(%q) = %q, want %q", tc.dsn, got, tc.want)
			}
		})
	}
}

func TestMaskTokenShortValues(t *testing.T) {
	if got := MaskToken("short"); got != "****" {
		t.Errorf("MaskToken(short) = %q, want ****", got)
	}
}

func TestContextPropagation(t *testing.T) {
	ctx := WithConnID(context.Background(), "conn-01")

	if got := ConnIDFromContext(ctx); got != "conn-01" {
		t.Errorf("ConnIDFromContext = %q", got)
	}
	if got := ConnIDFromContext(context.Background()); got != "" {
		t.Errorf("ConnIDFromContext on empty ctx = %q, want empty", got)
	}

	// L must not panic without a logger in context.
	L(ctx).Debug("no-op")
}
