// Package sockserver provides the socket-facing session server.
package sockserver

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/sockmesh-go/internal/core/engine"
	"github.com/yndnr/sockmesh-go/internal/telemetry/logger"
)

// conn wraps a client connection with buffered framing and a write
// lock so replies never interleave.
type conn struct {
	netConn net.Conn
	scanner *bufio.Scanner
	bw      *bufio.Writer
	writeMu sync.Mutex

	readTimeout time.Duration
	midFrame    bool
}

func newServerConn(c net.Conn, maxLineBytes int, readTimeout time.Duration) *conn {
	sc := &conn{
		netConn:     c,
		bw:          bufio.NewWriter(c),
		readTimeout: readTimeout,
	}
	sc.scanner = bufio.NewScanner(sc)
	sc.scanner.Buffer(make([]byte, 4096), maxLineBytes)
	return sc
}

// Read tightens the read deadline once a frame has started, so a
// client cannot trickle a half-written frame under the idle timeout.
func (c *conn) Read(p []byte) (int, error) {
	n, err := c.netConn.Read(p)
	if n > 0 && !c.midFrame && c.readTimeout > 0 {
		c.midFrame = true
		_ = c.netConn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	return n, err
}

// writeFrame marshals v and writes it as one newline-terminated line.
func (c *conn) writeFrame(v any, timeout time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.netConn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	if _, err := c.bw.Write(data); err != nil {
		return err
	}
	if err := c.bw.WriteByte('\n'); err != nil {
		return err
	}
	return c.bw.Flush()
}

func (s *Server) serveConn(ctx context.Context, netConn net.Conn) {
	defer netConn.Close()

	connID := newConnID()
	ctx = logger.WithConnID(ctx, connID)
	log := s.logger.With("conn_id", connID, "remote", netConn.RemoteAddr().String())

	if s.metrics != nil {
		s.metrics.ConnectionsTotal.Inc()
		s.metrics.ConnectionsActive.Inc()
		defer s.metrics.ConnectionsActive.Dec()
	}

	log.Debug("connection opened")
	defer log.Debug("connection closed")

	c := newServerConn(netConn, s.cfg.MaxLineBytes, s.cfg.ReadTimeout)

	// One engine per connection, created on the first request-token.
	var eng *engine.Engine
	defer func() {
		if eng != nil {
			eng.Close()
		}
	}()

	handlerFired := false

	for {
		// Idle timeout between frames.
		c.midFrame = false
		if err := netConn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
			return
		}
		if !c.scanner.Scan() {
			err := c.scanner.Err()
			switch {
			case err == nil, errors.Is(err, io.EOF):
			case errors.Is(err, bufio.ErrTooLong):
				log.Warn("frame exceeds line limit")
				_ = c.writeFrame(newErrorFrame("frame too large"), s.cfg.WriteTimeout)
			default:
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					log.Debug("connection idle timeout")
				} else {
					log.Debug("connection read error", "error", err)
				}
			}
			return
		}

		line := c.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if !s.limiters.allow(netConn.RemoteAddr()) {
			log.Warn("rate limit exceeded")
			_ = c.writeFrame(newErrorFrame("rate limit exceeded"), s.cfg.WriteTimeout)
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			log.Debug("malformed frame", "error", err)
			_ = c.writeFrame(newErrorFrame("malformed frame"), s.cfg.WriteTimeout)
			return
		}

		switch req.Event {
		case EventRequestToken:
			if eng == nil {
				var err error
				eng, err = engine.New(s.store, s.engineConfig(log))
				if err != nil {
					log.Error("engine construction failed", "error", err)
					_ = c.writeFrame(newErrorFrame("internal error"), s.cfg.WriteTimeout)
					return
				}
			}

			eng.Load(ctx, req.Token, func(token, errMsg string) {
				if err := c.writeFrame(tokenIssued{
					Event:  EventTokenIssued,
					Token:  token,
					Errors: errMsg,
				}, s.cfg.WriteTimeout); err != nil {
					log.Debug("reply write failed", "error", err)
				}
			})

			if !handlerFired && s.handler != nil && eng.State() == engine.StateActive {
				handlerFired = true
				s.handler(ctx, eng)
			}

		case EventSessionSet:
			if !requireSession(c, eng, s.cfg.WriteTimeout) {
				continue
			}
			eng.Set(req.Key, req.Value)

		case EventSessionGet:
			if !requireSession(c, eng, s.cfg.WriteTimeout) {
				continue
			}
			if err := c.writeFrame(sessionValue{
				Event: EventSessionValue,
				Key:   req.Key,
				Value: eng.Get(req.Key),
			}, s.cfg.WriteTimeout); err != nil {
				log.Debug("reply write failed", "error", err)
				return
			}

		case EventSessionClear:
			if !requireSession(c, eng, s.cfg.WriteTimeout) {
				continue
			}
			eng.Clear()

		default:
			_ = c.writeFrame(newErrorFrame("unknown event: "+req.Event), s.cfg.WriteTimeout)
		}
	}
}

// engineConfig derives the per-connection engine configuration from
// the server-wide template.
func (s *Server) engineConfig(log logger.Logger) engine.Config {
	cfg := s.cfg.Engine
	cfg.Logger = log
	if cfg.Metrics == nil {
		cfg.Metrics = s.metrics
	}
	return cfg
}

// newConnID returns a ULID string identifying one connection in logs.
func newConnID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		// rand.Reader failures are not survivable anyway.
		return "unknown"
	}
	return id.String()
}

// requireSession rejects session operations sent before a successful
// token exchange.
func requireSession(c *conn, eng *engine.Engine, timeout time.Duration) bool {
	if eng == nil || eng.State() != engine.StateActive {
		_ = c.writeFrame(newErrorFrame("no session: send request-token first"), timeout)
		return false
	}
	return true
}
