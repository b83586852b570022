// Package storage defines the persistence gateway for SockMesh.
//
// The gateway is deliberately minimal: sessions need exactly one
// keyed write primitive (upsert) and one keyed read primitive
// (lookup) against the shared session table. Schema management is
// the operator's responsibility, not the gateway's.
package storage

import (
	"context"
	"errors"
)

// ErrRowNotFound is returned by Lookup when no row exists for the
// presented token. Callers treat it as a repairable condition, not a
// storage failure.
var ErrRowNotFound = errors.New("session row not found")

// Row is one persisted session record.
type Row struct {
	// Token is the primary key (sessionId column).
	Token string

	// Expires is the absolute expiration timestamp in Unix seconds.
	Expires int64

	// Data is the JSON-serialized key/value snapshot.
	Data string
}

// Store is the persistence gateway consumed by the session engine.
//
// Upsert is insert-or-update keyed by token: insert if absent, and
// overwrite expires and data if present. Lookup returns the row for
// a token or ErrRowNotFound.
type Store interface {
	Upsert(ctx context.Context, token string, expires int64, data string) error
	Lookup(ctx context.Context, token string) (*Row, error)
	Close() error
}
