// Package client implements the SockMesh wire protocol for the CLI.
//
// It speaks the same newline-delimited JSON frames the server accepts,
// over TCP or a unix domain socket.
package client

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/yndnr/sockmesh-go/internal/server/sockserver"
)

// DefaultTimeout bounds each request/reply exchange.
const DefaultTimeout = 5 * time.Second

// frame covers every reply shape the server sends.
type frame struct {
	Event  string `json:"event"`
	Token  string `json:"token"`
	Key    string `json:"key"`
	Value  any    `json:"value"`
	Errors string `json:"errors"`
}

// outbound is the request shape.
type outbound struct {
	Event string `json:"event"`
	Token string `json:"token,omitempty"`
	Key   string `json:"key,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Client is one connection to a SockMesh server.
type Client struct {
	conn    net.Conn
	sc      *bufio.Scanner
	timeout time.Duration
}

// Dial connects to addr. Addresses starting with "unix://" use a unix
// domain socket; anything else is treated as host:port TCP.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	network, target := "tcp", addr
	if strings.HasPrefix(addr, "unix://") {
		network, target = "unix", strings.TrimPrefix(addr, "unix://")
	}

	conn, err := net.DialTimeout(network, target, timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		conn:    conn,
		sc:      bufio.NewScanner(conn),
		timeout: timeout,
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) send(v outbound) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	_, err = c.conn.Write(append(data, '\n'))
	return err
}

func (c *Client) recv() (*frame, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	if !c.sc.Scan() {
		if err := c.sc.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("connection closed by server")
	}

	var f frame
	if err := json.Unmarshal(c.sc.Bytes(), &f); err != nil {
		return nil, err
	}
	if f.Event == sockserver.EventError {
		return nil, errors.New(f.Errors)
	}
	return &f, nil
}

// RequestToken performs the opening exchange. prev is the previously
// issued token, empty on first contact. It returns the token to keep
// and the server's diagnostic (empty on a clean resume).
func (c *Client) RequestToken(prev string) (token, diag string, err error) {
	if err := c.send(outbound{Event: sockserver.EventRequestToken, Token: prev}); err != nil {
		return "", "", err
	}

	f, err := c.recv()
	if err != nil {
		return "", "", err
	}
	if f.Event != sockserver.EventTokenIssued {
		return "", "", errors.New("unexpected reply event: " + f.Event)
	}
	return f.Token, f.Errors, nil
}

// Set stores value under key in the connection's session.
func (c *Client) Set(key string, value any) error {
	return c.send(outbound{Event: sockserver.EventSessionSet, Key: key, Value: value})
}

// Get reads the value under key. Absent keys come back as "".
func (c *Client) Get(key string) (any, error) {
	if err := c.send(outbound{Event: sockserver.EventSessionGet, Key: key}); err != nil {
		return nil, err
	}

	f, err := c.recv()
	if err != nil {
		return nil, err
	}
	if f.Event != sockserver.EventSessionValue {
		return nil, errors.New("unexpected reply event: " + f.Event)
	}
	return f.Value, nil
}

// Clear empties the session while keeping its token.
func (c *Client) Clear() error {
	return c.send(outbound{Event: sockserver.EventSessionClear})
}
