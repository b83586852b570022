// Package sqlstore implements the persistence gateway on a relational
// session table via database/sql and the MySQL driver.
//
// The table layout is fixed for compatibility with other consumers of
// the same table and must not be altered:
//
//	session(
//	  sessionId VARCHAR(32) PRIMARY KEY  -- byte-comparison collation
//	  expires   INTEGER UNSIGNED         -- seconds since epoch
//	  data      TEXT                     -- JSON key/value snapshot
//	)
//
// The store never creates the table itself; SchemaDDL is surfaced in
// save-failure logs as an operator hint.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/yndnr/sockmesh-go/internal/storage"
)

// SchemaDDL is the authoritative definition of the session table.
const SchemaDDL = "CREATE TABLE `session` (" +
	"`sessionId` VARCHAR(32) BINARY NOT NULL PRIMARY KEY, " +
	"`expires` INTEGER UNSIGNED, " +
	"`data` TEXT)"

const (
	upsertQuery = "INSERT INTO `session` (`sessionId`, `expires`, `data`) VALUES (?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE `expires` = VALUES(`expires`), `data` = VALUES(`data`)"
	lookupQuery = "SELECT `sessionId`, `expires`, `data` FROM `session` WHERE `sessionId` = ?"
)

// Default connection pool settings.
const (
	DefaultMaxOpenConns    = 32
	DefaultMaxIdleConns    = 8
	DefaultConnMaxIdleTime = 5 * time.Minute
)

// Config configures the SQL store.
type Config struct {
	// DSN is the MySQL data source name.
	DSN string

	// MaxOpenConns caps the connection pool (0 means DefaultMaxOpenConns).
	MaxOpenConns int

	// MaxIdleConns caps idle pooled connections (0 means DefaultMaxIdleConns).
	MaxIdleConns int

	// ConnMaxIdleTime recycles connections idle longer than this
	// (0 means DefaultConnMaxIdleTime).
	ConnMaxIdleTime time.Duration
}

// Store is the MySQL-backed persistence gateway.
type Store struct {
	db *sql.DB
}

// Open opens a connection pool against cfg.DSN and verifies it with a
// ping. The session table must already exist.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = DefaultMaxOpenConns
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = DefaultMaxIdleConns
	}
	idleTime := cfg.ConnMaxIdleTime
	if idleTime == 0 {
		idleTime = DefaultConnMaxIdleTime
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxIdleTime(idleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing database handle. Used by tests and by
// callers that manage the pool themselves.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Upsert inserts or overwrites the row keyed by token.
func (s *Store) Upsert(ctx context.Context, token string, expires int64, data string) error {
	if _, err := s.db.ExecContext(ctx, upsertQuery, token, expires, data); err != nil {
		return fmt.Errorf("sqlstore: upsert: %w", err)
	}
	return nil
}

// Lookup returns the row for a token or storage.ErrRowNotFound.
//
// The schema leaves expires and data nullable, and other consumers of
// the shared table do write NULLs. Those scan as zero values so the
// caller sees a repairable row, not a lookup failure.
func (s *Store) Lookup(ctx context.Context, token string) (*storage.Row, error) {
	var (
		expires sql.NullInt64
		data    sql.NullString
	)
	row := &storage.Row{}
	err := s.db.QueryRowContext(ctx, lookupQuery, token).Scan(&row.Token, &expires, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrRowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: lookup: %w", err)
	}
	row.Expires = expires.Int64
	row.Data = data.String
	return row, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
