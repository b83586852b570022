// Package domain defines the core domain models for SockMesh.
package domain

import (
	"reflect"
	"testing"
	"time"

	"github.com/yndnr/sockmesh-go/pkg/token"
)

func TestNewSession(t *testing.T) {
	session, err := NewSession()
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if len(session.Token) != token.EncodedLength {
		t.Errorf("Token length = %d, want %d", len(session.Token), token.EncodedLength)
	}
	if !token.Valid(session.Token) {
		t.Errorf("Token is not valid: %q", session.Token)
	}
	if session.Values == nil {
		t.Error("Values map should be initialized")
	}
	if session.ExpiresAt != 0 {
		t.Errorf("ExpiresAt = %d, want 0 before first save", session.ExpiresAt)
	}
}

func TestSessionExpiration(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	session := &Session{Token: "t", Values: map[string]any{}}
	session.SetExpiration(now, time.Hour)

	if want := now.Add(time.Hour).Unix(); session.ExpiresAt != want {
		t.Errorf("ExpiresAt = %d, want %d", session.ExpiresAt, want)
	}

	tests := []struct {
		name    string
		at      time.Time
		expired bool
	}{
		{"before expiry", now.Add(30 * time.Minute), false},
		{"exactly at expiry", now.Add(time.Hour), false},
		{"one second past", now.Add(time.Hour + time.Second), true},
		{"long past", now.Add(48 * time.Hour), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := session.IsExpired(tc.at); got != tc.expired {
				t.Errorf("IsExpired(%v) = %v, want %v", tc.at, got, tc.expired)
			}
		})
	}
}

func TestSessionExpirationSlides(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	session := &Session{Token: "t", Values: map[string]any{}}

	session.SetExpiration(now, time.Hour)
	first := session.ExpiresAt

	// A later save must slide the window forward, not keep the origin.
	session.SetExpiration(now.Add(10*time.Minute), time.Hour)
	if session.ExpiresAt <= first {
		t.Errorf("expiration did not slide: first=%d second=%d", first, session.ExpiresAt)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
	}{
		{"empty", map[string]any{}},
		{"flat strings", map[string]any{"userId": "42", "name": "ada"}},
		{"empty string value", map[string]any{"k": ""}},
		{"nested", map[string]any{
			"profile": map[string]any{
				"tags":  []any{"a", "b", "c"},
				"score": 12.5,
				"flags": map[string]any{"admin": true, "beta": false},
			},
			"count": float64(3),
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			session := &Session{Token: "t", Values: tc.values}
			data, err := session.EncodeData()
			if err != nil {
				t.Fatalf("EncodeData() error = %v", err)
			}

			restored := &Session{Token: "t"}
			if err := restored.DecodeData(data); err != nil {
				t.Fatalf("DecodeData() error = %v", err)
			}

			if !reflect.DeepEqual(restored.Values, tc.values) {
				t.Errorf("round trip mismatch:\n got  %#v\n want %#v", restored.Values, tc.values)
			}
		})
	}
}

func TestDecodeDataReplacesWholesale(t *testing.T) {
	session := &Session{Token: "t", Values: map[string]any{"stale": "x"}}
	if err := session.DecodeData(`{"fresh":"y"}`); err != nil {
		t.Fatalf("DecodeData() error = %v", err)
	}

	if _, ok := session.Values["stale"]; ok {
		t.Error("decode must replace the map, not merge into it")
	}
	if session.Values["fresh"] != "y" {
		t.Errorf("Values[fresh] = %v, want %q", session.Values["fresh"], "y")
	}
}

func TestDecodeDataInvalid(t *testing.T) {
	session := &Session{Token: "t"}
	err := session.DecodeData("{not json")
	if err == nil {
		t.Fatal("DecodeData() should fail on malformed data")
	}
	if !IsDomainError(err, ErrSessionDecoding.Code) {
		t.Errorf("error = %v, want code %s", err, ErrSessionDecoding.Code)
	}
}

func TestClear(t *testing.T) {
	session := &Session{
		Token:     "t",
		ExpiresAt: 100,
		Values:    map[string]any{"a": 1, "b": 2},
	}
	session.Clear()

	if len(session.Values) != 0 {
		t.Errorf("Values should be empty after Clear, got %v", session.Values)
	}
	if session.Token != "t" {
		t.Error("Clear must not change the token")
	}
}

func TestClone(t *testing.T) {
	session := &Session{
		Token:     "t",
		ExpiresAt: 100,
		Values:    map[string]any{"a": "1"},
	}
	clone := session.Clone()

	clone.Values["a"] = "changed"
	if session.Values["a"] != "1" {
		t.Error("mutating the clone must not affect the original")
	}
}
