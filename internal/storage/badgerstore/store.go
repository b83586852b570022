// Package badgerstore implements the persistence gateway on an
// embedded Badger database.
//
// It exists for single-node dev deployments that want durable
// sessions without running a relational database. Each row is stored
// under the token key as a small JSON document mirroring the session
// table columns.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/sockmesh-go/internal/storage"
)

// Default configuration values.
const (
	DefaultGCInterval  = 10 * time.Minute
	DefaultGCThreshold = 0.5
)

// keyPrefix namespaces session rows inside the database.
var keyPrefix = []byte("sess/")

// Config configures the Badger store.
type Config struct {
	// Dir is the database directory.
	Dir string

	// SyncWrites forces fsync on every write. Off by default; the
	// engine's save path is fire-and-forget anyway.
	SyncWrites bool

	// GCInterval is the value-log GC period (0 means DefaultGCInterval).
	GCInterval time.Duration

	// GCThreshold is the value-log GC rewrite threshold
	// (0 means DefaultGCThreshold).
	GCThreshold float64

	// Logger is the structured logger.
	Logger *slog.Logger
}

// record is the on-disk shape of one session row.
type record struct {
	Expires int64  `json:"expires"`
	Data    string `json:"data"`
}

// Store is the Badger-backed persistence gateway.
type Store struct {
	db     *badger.DB
	cfg    Config
	logger *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}

	metricsTotalSize prometheus.Gauge
}

// Open opens the database directory and starts the background GC loop.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("badgerstore: dir is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.GCInterval == 0 {
		cfg.GCInterval = DefaultGCInterval
	}
	if cfg.GCThreshold == 0 {
		cfg.GCThreshold = DefaultGCThreshold
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: cfg.Logger}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open db: %w", err)
	}

	s := &Store{
		db:     db,
		cfg:    cfg,
		logger: cfg.Logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	go s.gcLoop()

	cfg.Logger.Info("badger store started",
		"dir", cfg.Dir,
		"gc_interval", cfg.GCInterval)

	return s, nil
}

// Upsert inserts or overwrites the row keyed by token. The entry TTL
// is the row's remaining lifetime, so expired rows vanish on their own
// even though lookups also check the expires column.
func (s *Store) Upsert(_ context.Context, token string, expires int64, data string) error {
	value, err := json.Marshal(record{Expires: expires, Data: data})
	if err != nil {
		return fmt.Errorf("badgerstore: encode row: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(rowKey(token), value)
		if ttl := time.Until(time.Unix(expires, 0)); ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Lookup returns the row for a token or storage.ErrRowNotFound.
func (s *Store) Lookup(_ context.Context, token string) (*storage.Row, error) {
	var value []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(rowKey(token))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrRowNotFound
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, storage.ErrRowNotFound) {
			return nil, storage.ErrRowNotFound
		}
		return nil, fmt.Errorf("badgerstore: lookup: %w", err)
	}

	var rec record
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, fmt.Errorf("badgerstore: decode row: %w", err)
	}

	return &storage.Row{Token: token, Expires: rec.Expires, Data: rec.Data}, nil
}

// Close stops the GC loop and closes the database.
func (s *Store) Close() error {
	close(s.stopCh)
	<-s.doneCh

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("badgerstore: close db: %w", err)
	}
	return nil
}

// RegisterMetrics registers storage size metrics with the registry.
func (s *Store) RegisterMetrics(registry *prometheus.Registry) *Store {
	s.metricsTotalSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sockmesh",
		Subsystem: "badger",
		Name:      "total_size_bytes",
		Help:      "Badger total storage size in bytes (LSM + value log)",
	})
	registry.MustRegister(s.metricsTotalSize)
	return s
}

// gcLoop periodically reclaims value-log space and refreshes metrics.
func (s *Store) gcLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runGC()
			if s.metricsTotalSize != nil {
				lsm, vlog := s.db.Size()
				s.metricsTotalSize.Set(float64(lsm + vlog))
			}
		case <-s.stopCh:
			return
		}
	}
}

// runGC runs value-log GC until no more space can be reclaimed.
func (s *Store) runGC() {
	for {
		err := s.db.RunValueLogGC(s.cfg.GCThreshold)
		if err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("badger gc failed", "error", err)
			}
			return
		}
	}
}

func rowKey(token string) []byte {
	return append(append([]byte{}, keyPrefix...), token...)
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
