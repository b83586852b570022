// Package engine implements the session lifecycle engine.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yndnr/sockmesh-go/internal/core/domain"
	"github.com/yndnr/sockmesh-go/internal/storage"
	"github.com/yndnr/sockmesh-go/internal/telemetry/logger"
	"github.com/yndnr/sockmesh-go/internal/telemetry/metric"
	"github.com/yndnr/sockmesh-go/pkg/lockmap"
)

// State is the engine lifecycle state.
type State int

// Engine states.
const (
	// StateUninitialized means no token is assigned yet.
	StateUninitialized State = iota
	// StateLoading means a lookup is in flight.
	StateLoading
	// StateActive means token and values are resolved and current.
	StateActive
	// StateErrored means the last load failed; the token was cleared
	// and the engine behaves as uninitialized.
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Default configuration values.
const (
	// DefaultTTL is the sliding expiration window applied when the
	// caller does not configure one.
	DefaultTTL = 24 * time.Hour

	// DefaultSaveBufferSize is the write-behind queue capacity.
	DefaultSaveBufferSize = 64
)

// Config configures an Engine. The struct is merged over defaults at
// construction and never mutated afterwards; distinct engines never
// share or mutate a common defaults object.
type Config struct {
	// TTL is the sliding expiration window. Expiry is recomputed as
	// now+TTL on every save.
	TTL time.Duration

	// SaveBufferSize is the capacity of the write-behind save queue.
	SaveBufferSize int

	// Logger receives save failures and lifecycle noise. Defaults to
	// the package default logger.
	Logger logger.Logger

	// Metrics, when set, receives load/save observations.
	Metrics *metric.Registry

	// Locks, when set, serializes the load-repair path per token
	// across engines that share the map. Without it, two connections
	// racing on the same expired token may both issue replacements
	// and the last writer wins at the store.
	Locks *lockmap.Map

	// SaveFailureHint is appended to save-failure logs as an operator
	// hint (typically the session table DDL).
	SaveFailureHint string

	// Clock overrides the time source. Tests only.
	Clock func() time.Time
}

// withDefaults returns a copy of cfg with zero fields replaced by
// defaults. The receiver is not modified.
func (c Config) withDefaults() Config {
	out := c
	if out.TTL <= 0 {
		out.TTL = DefaultTTL
	}
	if out.SaveBufferSize <= 0 {
		out.SaveBufferSize = DefaultSaveBufferSize
	}
	if out.Logger == nil {
		out.Logger = logger.Default()
	}
	if out.Clock == nil {
		out.Clock = time.Now
	}
	return out
}

// LoadCallback receives the outcome of a Load: the resulting token
// (freshly issued or confirmed) and an error message, empty on a
// clean resume or create. Informational messages such as
// "Session Not Found" also arrive here.
type LoadCallback func(token string, errMsg string)

// Engine owns one connection's session state.
type Engine struct {
	store storage.Store
	cfg   Config

	mu      sync.Mutex
	state   State
	session *domain.Session

	saver *saver
}

// New creates an Engine bound to the given persistence gateway.
// Returns domain.ErrMissingStore if store is nil.
func New(store storage.Store, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, domain.ErrMissingStore
	}

	cfg = cfg.withDefaults()
	e := &Engine{
		store: store,
		cfg:   cfg,
		state: StateUninitialized,
	}
	e.saver = newSaver(e)
	return e, nil
}

// Close drains the write-behind queue and stops the saver. Pending
// saves are flushed best-effort before Close returns.
func (e *Engine) Close() {
	e.saver.close()
}

// Token returns the current session token, empty when uninitialized
// or after a failed load.
func (e *Engine) Token() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return ""
	}
	return e.session.Token
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Load resolves the session for the presented token and invokes
// callback exactly once when the lookup and any repair write have
// completed. It never returns a Go error to the caller: every failure
// is reported through the callback's error message.
//
// An empty token requests a brand-new session. A token whose row is
// missing or expired is transparently replaced by a fresh token and
// an empty persisted session; the informational message still reaches
// the callback. Only a storage failure leaves the engine without a
// token.
func (e *Engine) Load(ctx context.Context, token string, callback LoadCallback) {
	if callback == nil {
		callback = func(string, string) {}
	}

	e.mu.Lock()
	e.state = StateLoading
	e.mu.Unlock()

	if token == "" {
		tok, errMsg := e.createSession(ctx)
		callback(tok, errMsg)
		return
	}

	// Serialize the lookup-and-repair path for this token when a
	// shared lock map is configured.
	if e.cfg.Locks != nil {
		unlock := e.cfg.Locks.Lock(token)
		defer unlock()
	}

	row, err := e.store.Lookup(ctx, token)
	switch {
	case err == nil:
		session := &domain.Session{Token: row.Token, ExpiresAt: row.Expires}
		if session.IsExpired(e.cfg.Clock()) {
			e.observeLoad(metric.LoadResultReplaced)
			tok, errMsg := e.replaceSession(ctx, domain.ErrSessionExpired.Message)
			callback(tok, errMsg)
			return
		}
		if decErr := session.DecodeData(row.Data); decErr != nil {
			// A row that cannot be rehydrated is as unusable as a
			// missing one; replace it rather than blocking the peer.
			e.cfg.Logger.Warn("session data corrupt, replacing session",
				"token", token,
				"error", decErr)
			e.observeLoad(metric.LoadResultReplaced)
			tok, errMsg := e.replaceSession(ctx, domain.ErrSessionDecoding.Message)
			callback(tok, errMsg)
			return
		}

		e.mu.Lock()
		e.session = session
		e.state = StateActive
		e.mu.Unlock()

		e.observeLoad(metric.LoadResultResumed)
		callback(session.Token, "")

	case errors.Is(err, storage.ErrRowNotFound):
		e.observeLoad(metric.LoadResultReplaced)
		tok, errMsg := e.replaceSession(ctx, domain.ErrSessionNotFound.Message)
		callback(tok, errMsg)

	default:
		// Storage unreachable or query failed: clear the token and
		// report. The engine drops back to an uninitialized state.
		e.mu.Lock()
		e.session = nil
		e.state = StateErrored
		e.mu.Unlock()

		e.cfg.Logger.Error("session lookup failed",
			"token", token,
			"error", err)
		e.observeLoad(metric.LoadResultError)
		callback("", domain.ErrLookupFailed.WithCause(err).Error())
	}
}

// Set stores a value under key, slides the expiration window, and
// enqueues a full-snapshot save. The write is fire-and-forget: the
// caller is never told about persistence failures.
func (e *Engine) Set(key string, value any) {
	if key == "" {
		e.cfg.Logger.Warn("ignoring set with empty key")
		return
	}

	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		e.cfg.Logger.Error("set before session load", "key", key)
		return
	}
	e.session.Values[key] = value
	e.session.SetExpiration(e.cfg.Clock(), e.cfg.TTL)
	job, ok := e.snapshotLocked()
	e.mu.Unlock()

	if ok {
		e.saver.enqueue(job)
	}
}

// Get returns the value stored under key, or the empty-string
// sentinel when the key is absent. The sentinel is indistinguishable
// from a legitimately stored empty string; use GetOK when that
// matters.
func (e *Engine) Get(key string) any {
	v, ok := e.GetOK(key)
	if !ok {
		return ""
	}
	return v
}

// GetOK returns the value stored under key and whether it was present.
func (e *Engine) GetOK(key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, false
	}
	v, ok := e.session.Values[key]
	return v, ok
}

// Clear wipes all values and immediately enqueues a save of the empty
// snapshot. The token is kept and the stored row is overwritten, not
// deleted.
func (e *Engine) Clear() {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		e.cfg.Logger.Error("clear before session load")
		return
	}
	e.session.Clear()
	e.session.SetExpiration(e.cfg.Clock(), e.cfg.TTL)
	job, ok := e.snapshotLocked()
	e.mu.Unlock()

	if ok {
		e.saver.enqueue(job)
	}
}

// createSession issues a fresh token and persists an empty session.
func (e *Engine) createSession(ctx context.Context) (token, errMsg string) {
	return e.newSession(ctx, "", metric.LoadResultCreated)
}

// replaceSession self-heals an expired, missing, or unusable session:
// new token, reset expiry, empty persisted values. The informational
// message flows back to the caller but never blocks the exchange.
func (e *Engine) replaceSession(ctx context.Context, msg string) (token, errMsg string) {
	return e.newSession(ctx, msg, "")
}

func (e *Engine) newSession(ctx context.Context, msg, loadResult string) (string, string) {
	session, err := domain.NewSession()
	if err != nil {
		e.mu.Lock()
		e.session = nil
		e.state = StateErrored
		e.mu.Unlock()

		e.cfg.Logger.Error("token generation failed", "error", err)
		e.observeLoad(metric.LoadResultError)
		return "", err.Error()
	}
	session.SetExpiration(e.cfg.Clock(), e.cfg.TTL)

	e.mu.Lock()
	e.session = session
	e.state = StateActive
	job, ok := e.snapshotLocked()
	e.mu.Unlock()

	// The initial row is written before the callback fires so that an
	// immediate reconnect with this token finds it. Failure here is a
	// save failure: logged, never surfaced, the peer still gets a
	// usable token.
	if ok {
		e.saver.write(ctx, job)
	}

	if loadResult != "" {
		e.observeLoad(loadResult)
	}
	return session.Token, msg
}

// snapshotLocked derives a save job from the current session. Callers
// must hold e.mu. A session without a token is never written; the
// skip is logged as an error condition.
func (e *Engine) snapshotLocked() (saveJob, bool) {
	if e.session == nil || e.session.Token == "" {
		e.cfg.Logger.Error("skipping save: no session token assigned",
			"error", domain.ErrEmptyToken)
		e.observeSave(metric.SaveResultSkipped)
		return saveJob{}, false
	}

	data, err := e.session.EncodeData()
	if err != nil {
		e.cfg.Logger.Error("skipping save: snapshot encoding failed",
			"token", e.session.Token,
			"error", err)
		e.observeSave(metric.SaveResultError)
		return saveJob{}, false
	}

	return saveJob{
		token:   e.session.Token,
		expires: e.session.ExpiresAt,
		data:    data,
	}, true
}

func (e *Engine) observeLoad(result string) {
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.SessionLoads.WithLabelValues(result).Inc()
	}
}

func (e *Engine) observeSave(result string) {
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.SessionSaves.WithLabelValues(result).Inc()
	}
}
