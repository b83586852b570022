// Package domain defines the core domain models for SockMesh.
package domain

import (
	"encoding/json"
	"time"

	"github.com/yndnr/sockmesh-go/pkg/token"
)

// Session is the ephemeral, token-addressed state owned by a single
// socket connection. It corresponds to at most one row in the session
// table, keyed by Token.
type Session struct {
	// Token is the opaque identifier handed to the remote peer for
	// reuse across reconnects. Empty until the session is loaded or
	// created.
	Token string `json:"token"`

	// ExpiresAt is the absolute expiration timestamp (Unix seconds).
	// It is recomputed as now+TTL on every save, never supplied by
	// callers (sliding expiration).
	ExpiresAt int64 `json:"expires_at"`

	// Values is the authoritative in-memory key/value state. The
	// persisted data blob is always a full snapshot of this map.
	Values map[string]any `json:"values"`
}

// NewSession creates an empty Session with a freshly generated token.
func NewSession() (*Session, error) {
	tok, err := token.Generate()
	if err != nil {
		return nil, ErrTokenGeneration.WithCause(err)
	}
	return &Session{
		Token:  tok,
		Values: make(map[string]any),
	}, nil
}

// IsExpired reports whether the session is past its expiration
// timestamp at the given instant.
func (s *Session) IsExpired(now time.Time) bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return now.Unix() > s.ExpiresAt
}

// SetExpiration slides the expiration window to now+ttl.
func (s *Session) SetExpiration(now time.Time, ttl time.Duration) {
	s.ExpiresAt = now.Add(ttl).Unix()
}

// EncodeData serializes Values into the data blob persisted in the
// session table. The snapshot is always re-derived from the full map.
func (s *Session) EncodeData() (string, error) {
	if s.Values == nil {
		return "{}", nil
	}
	b, err := json.Marshal(s.Values)
	if err != nil {
		return "", ErrSessionEncoding.WithCause(err)
	}
	return string(b), nil
}

// DecodeData rehydrates Values from a persisted data blob, replacing
// the current map wholesale. Partial merges are never performed.
func (s *Session) DecodeData(data string) error {
	values := make(map[string]any)
	if data != "" {
		if err := json.Unmarshal([]byte(data), &values); err != nil {
			return ErrSessionDecoding.WithCause(err)
		}
	}
	s.Values = values
	return nil
}

// Clear wipes the in-memory values. The stored row is not deleted;
// the caller is expected to persist the empty snapshot.
func (s *Session) Clear() {
	s.Values = make(map[string]any)
}

// Clone creates a deep copy of the session's scalar fields and a
// shallow copy of the value map entries.
func (s *Session) Clone() *Session {
	clone := *s
	if s.Values != nil {
		clone.Values = make(map[string]any, len(s.Values))
		for k, v := range s.Values {
			clone.Values[k] = v
		}
	}
	return &clone
}

// ExpiresAtTime returns ExpiresAt as time.Time.
func (s *Session) ExpiresAtTime() time.Time {
	if s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}
