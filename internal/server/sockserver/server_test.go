package sockserver

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/sockmesh-go/internal/core/engine"
	"github.com/yndnr/sockmesh-go/internal/storage/memory"
	"github.com/yndnr/sockmesh-go/internal/telemetry/logger"
	"github.com/yndnr/sockmesh-go/pkg/token"
)

// frame is the loose decoding of any server reply.
type frame struct {
	Event  string `json:"event"`
	Token  string `json:"token"`
	Key    string `json:"key"`
	Value  any    `json:"value"`
	Errors string `json:"errors"`
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	sc   *bufio.Scanner
}

func dialTCP(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	return newTestClient(t, conn)
}

func newTestClient(t *testing.T, conn net.Conn) *testClient {
	t.Helper()
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, sc: bufio.NewScanner(conn)}
}

func (c *testClient) send(v any) {
	c.t.Helper()
	data, err := json.Marshal(v)
	require.NoError(c.t, err)
	_, err = c.conn.Write(append(data, '\n'))
	require.NoError(c.t, err)
}

func (c *testClient) sendRaw(line string) {
	c.t.Helper()
	_, err := io.WriteString(c.conn, line+"\n")
	require.NoError(c.t, err)
}

func (c *testClient) recv() frame {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.True(c.t, c.sc.Scan(), "expected a reply frame, got: %v", c.sc.Err())
	var f frame
	require.NoError(c.t, json.Unmarshal(c.sc.Bytes(), &f))
	return f
}

// requestToken performs the opening exchange and returns the reply.
func (c *testClient) requestToken(prev string) frame {
	c.t.Helper()
	c.send(map[string]string{"event": EventRequestToken, "token": prev})
	f := c.recv()
	require.Equal(c.t, EventTokenIssued, f.Event)
	return f
}

func startServer(t *testing.T, cfg *Config) (*Server, *memory.Store) {
	t.Helper()

	store := memory.New()
	log, err := logger.New(logger.Config{Level: "error", Output: io.Discard})
	require.NoError(t, err)

	if cfg == nil {
		cfg = DefaultConfig()
		cfg.Addr = "127.0.0.1:0"
		cfg.RateLimit = 0
	}

	srv := New(cfg, store, log, nil)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return srv, store
}

func TestTokenExchange_NewSession(t *testing.T) {
	srv, _ := startServer(t, nil)

	c := dialTCP(t, srv.Addr())
	f := c.requestToken("")

	assert.Empty(t, f.Errors)
	assert.Len(t, f.Token, token.EncodedLength)
	assert.True(t, token.Valid(f.Token))
}

func TestTokenExchange_UnknownToken(t *testing.T) {
	srv, _ := startServer(t, nil)

	c := dialTCP(t, srv.Addr())
	f := c.requestToken("no-such-token")

	assert.NotEqual(t, "no-such-token", f.Token)
	assert.True(t, token.Valid(f.Token))
	assert.Contains(t, f.Errors, "Session Not Found")
}

func TestSessionRoundTrip(t *testing.T) {
	srv, _ := startServer(t, nil)

	c := dialTCP(t, srv.Addr())
	c.requestToken("")

	c.send(map[string]any{"event": EventSessionSet, "key": "userId", "value": "42"})
	c.send(map[string]string{"event": EventSessionGet, "key": "userId"})

	f := c.recv()
	assert.Equal(t, EventSessionValue, f.Event)
	assert.Equal(t, "userId", f.Key)
	assert.Equal(t, "42", f.Value)

	// Absent key reads back as the empty string.
	c.send(map[string]string{"event": EventSessionGet, "key": "missing"})
	f = c.recv()
	assert.Equal(t, "", f.Value)

	// Clear wipes everything on this connection.
	c.send(map[string]string{"event": EventSessionClear})
	c.send(map[string]string{"event": EventSessionGet, "key": "userId"})
	f = c.recv()
	assert.Equal(t, "", f.Value)
}

func TestSessionResumeAcrossConnections(t *testing.T) {
	srv, _ := startServer(t, nil)

	first := dialTCP(t, srv.Addr())
	issued := first.requestToken("")
	first.send(map[string]any{"event": EventSessionSet, "key": "userId", "value": "42"})
	first.conn.Close()

	// The save is write-behind and the engine drains when the server
	// notices the disconnect, so poll with fresh connections.
	require.Eventually(t, func() bool {
		c := dialTCP(t, srv.Addr())
		defer c.conn.Close()
		f := c.requestToken(issued.Token)
		if f.Token != issued.Token || f.Errors != "" {
			return false
		}
		c.send(map[string]string{"event": EventSessionGet, "key": "userId"})
		return c.recv().Value == "42"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSessionOpsRequireToken(t *testing.T) {
	srv, _ := startServer(t, nil)

	c := dialTCP(t, srv.Addr())
	c.send(map[string]string{"event": EventSessionGet, "key": "userId"})

	f := c.recv()
	assert.Equal(t, EventError, f.Event)
	assert.Contains(t, f.Errors, "no session")
}

func TestUnknownEvent(t *testing.T) {
	srv, _ := startServer(t, nil)

	c := dialTCP(t, srv.Addr())
	c.send(map[string]string{"event": "subscribe"})

	f := c.recv()
	assert.Equal(t, EventError, f.Event)
	assert.Contains(t, f.Errors, "unknown event")
}

func TestMalformedFrameClosesConnection(t *testing.T) {
	srv, _ := startServer(t, nil)

	c := dialTCP(t, srv.Addr())
	c.sendRaw("this is not json")

	f := c.recv()
	assert.Equal(t, EventError, f.Event)
	assert.Contains(t, f.Errors, "malformed")

	// Server hangs up after a protocol violation.
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(time.Second)))
	assert.False(t, c.sc.Scan())
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.RateLimit = 1
	cfg.RateBurst = 1
	srv, _ := startServer(t, cfg)

	c := dialTCP(t, srv.Addr())
	c.requestToken("")

	// Burst is spent; the next frame must be rejected.
	c.send(map[string]string{"event": EventSessionGet, "key": "k"})
	f := c.recv()
	assert.Equal(t, EventError, f.Event)
	assert.Contains(t, f.Errors, "rate limit")
}

func TestUnixSocket(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = ""
	cfg.SocketPath = filepath.Join(t.TempDir(), "sockmesh.sock")
	cfg.RateLimit = 0
	srv, _ := startServer(t, cfg)
	assert.Empty(t, srv.Addr())

	conn, err := net.Dial("unix", cfg.SocketPath)
	require.NoError(t, err)
	c := newTestClient(t, conn)

	f := c.requestToken("")
	assert.True(t, token.Valid(f.Token))
}

func TestOnSessionHook(t *testing.T) {
	store := memory.New()
	log, err := logger.New(logger.Config{Level: "error", Output: io.Discard})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.RateLimit = 0

	srv := New(cfg, store, log, nil)
	srv.OnSession(func(ctx context.Context, eng *engine.Engine) {
		eng.Set("greeted", true)
	})
	require.NoError(t, srv.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	c := dialTCP(t, srv.Addr())
	c.requestToken("")

	c.send(map[string]string{"event": EventSessionGet, "key": "greeted"})
	f := c.recv()
	assert.Equal(t, true, f.Value)
}

func TestSlowFrameReadTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.RateLimit = 0
	cfg.ReadTimeout = 100 * time.Millisecond
	cfg.IdleTimeout = time.Minute
	srv, _ := startServer(t, cfg)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	// Start a frame but never send the terminating newline. The server
	// must not wait out the full idle timeout before disconnecting.
	_, err = conn.Write([]byte(`{"event":"request-`))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestShutdownStopsAccepting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.RateLimit = 0

	store := memory.New()
	log, err := logger.New(logger.Config{Level: "error", Output: io.Discard})
	require.NoError(t, err)

	srv := New(cfg, store, log, nil)
	require.NoError(t, srv.Start(context.Background()))
	addr := srv.Addr()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	_, err = net.DialTimeout("tcp", addr, 500*time.Millisecond)
	assert.Error(t, err)
}

func TestStart_NoListeners(t *testing.T) {
	cfg := &Config{}
	store := memory.New()

	srv := New(cfg, store, nil, nil)
	assert.Error(t, srv.Start(context.Background()))
}
