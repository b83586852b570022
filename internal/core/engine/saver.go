// Package engine implements the session lifecycle engine.
package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/yndnr/sockmesh-go/internal/telemetry/metric"
)

// saveJob is one full-snapshot upsert. Jobs are immutable copies of
// the session state at enqueue time, so the saver goroutine never
// touches live engine state.
type saveJob struct {
	token   string
	expires int64
	data    string
}

// saver is the write-behind worker behind Set and Clear. Jobs are
// dispatched to a buffered channel and written by a single background
// goroutine; the mutating caller never waits for storage. Failures
// are logged and counted, never retried, never surfaced.
type saver struct {
	engine *Engine
	ch     chan saveJob
	done   chan struct{}

	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
	dropped   atomic.Uint64
}

func newSaver(e *Engine) *saver {
	s := &saver{
		engine: e,
		ch:     make(chan saveJob, e.cfg.SaveBufferSize),
		done:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

func (s *saver) run() {
	defer s.wg.Done()

	for {
		select {
		case job := <-s.ch:
			s.addDepth(-1)
			s.write(context.Background(), job)
		case <-s.done:
			// Drain whatever is still queued before exiting.
			for {
				select {
				case job := <-s.ch:
					s.addDepth(-1)
					s.write(context.Background(), job)
				default:
					return
				}
			}
		}
	}
}

// enqueue hands a job to the background worker without blocking. A
// full queue drops the job; the next successful save persists a
// newer snapshot anyway.
func (s *saver) enqueue(job saveJob) {
	if s.closed.Load() {
		return
	}

	select {
	case s.ch <- job:
		s.addDepth(1)
	case <-s.done:
	default:
		s.dropped.Add(1)
		s.engine.cfg.Logger.Warn("save queue full, dropping snapshot",
			"token", job.token)
		s.engine.observeSave(metric.SaveResultDropped)
	}
}

// write performs one upsert synchronously and records the outcome.
func (s *saver) write(ctx context.Context, job saveJob) {
	e := s.engine
	start := e.cfg.Clock()

	err := e.store.Upsert(ctx, job.token, job.expires, job.data)

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.SaveDuration.Observe(e.cfg.Clock().Sub(start).Seconds())
	}

	if err != nil {
		args := []any{
			"token", job.token,
			"error", err,
		}
		if e.cfg.SaveFailureHint != "" {
			args = append(args, "hint", e.cfg.SaveFailureHint)
		}
		e.cfg.Logger.Error("session save failed", args...)
		e.observeSave(metric.SaveResultError)
		return
	}

	e.observeSave(metric.SaveResultOK)
}

// addDepth adjusts the shared queue-depth gauge by delta. The gauge is
// server-wide, so each saver contributes deltas rather than setting
// its own queue length.
func (s *saver) addDepth(delta float64) {
	if s.engine.cfg.Metrics != nil {
		s.engine.cfg.Metrics.SaveQueueDepth.Add(delta)
	}
}

// close stops accepting jobs, flushes the queue, and waits for the
// worker to exit.
func (s *saver) close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		s.wg.Wait()
	})
}
