package testutil

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cory-johannsen/hyggen/internal/protocol"
)

// Client speaks the room protocol over either gateway.
type Client struct {
	t     testing.TB
	write func([]byte) error
	read  func(deadline time.Time) ([]byte, error)
	close func() error
}

// DialWS connects to a WebSocket gateway at url (ws://host/ws).
//
// Postcondition: Returns a connected Client or fails the test. The connection
// is closed on test cleanup.
func DialWS(t testing.TB, url string) *Client {
	t.Helper()
	start := time.Now()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v [%s]", url, err, time.Since(start))
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c := &Client{
		t: t,
		write: func(b []byte) error {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			return conn.WriteMessage(websocket.TextMessage, b)
		},
		read: func(deadline time.Time) ([]byte, error) {
			_ = conn.SetReadDeadline(deadline)
			_, b, err := conn.ReadMessage()
			return b, err
		},
		close: conn.Close,
	}
	t.Cleanup(func() { _ = c.close() })
	t.Logf("websocket client connected to %s [%s]", url, time.Since(start))
	return c
}

// DialLine connects to a line gateway at addr.
//
// Postcondition: Returns a connected Client or fails the test.
func DialLine(t testing.TB, addr string) *Client {
	t.Helper()
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}
	scanner := bufio.NewScanner(conn)

	c := &Client{
		t: t,
		write: func(b []byte) error {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			_, err := conn.Write(append(b, '\n'))
			return err
		},
		read: func(deadline time.Time) ([]byte, error) {
			_ = conn.SetReadDeadline(deadline)
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return nil, err
				}
				return nil, net.ErrClosed
			}
			return append([]byte(nil), scanner.Bytes()...), nil
		},
		close: conn.Close,
	}
	t.Cleanup(func() { _ = c.close() })
	t.Logf("line client connected to %s [%s]", addr, time.Since(start))
	return c
}

// Send encodes and writes msg.
func (c *Client) Send(msg protocol.Inbound) {
	c.t.Helper()
	b, err := protocol.Encode(msg)
	if err != nil {
		c.t.Fatalf("encoding %s: %v", msg.Kind(), err)
	}
	c.SendRaw(b)
}

// SendRaw writes b as one frame without validation.
func (c *Client) SendRaw(b []byte) {
	c.t.Helper()
	if err := c.write(b); err != nil {
		c.t.Fatalf("sending %q: %v", b, err)
	}
}

// Next reads and decodes one event, failing the test after timeout.
func (c *Client) Next(timeout time.Duration) protocol.Event {
	c.t.Helper()
	raw, err := c.read(time.Now().Add(timeout))
	if err != nil {
		c.t.Fatalf("reading event: %v", err)
	}
	ev, err := protocol.DecodeEvent(raw)
	if err != nil {
		c.t.Fatalf("decoding event %q: %v", raw, err)
	}
	return ev
}

// Close closes the underlying connection.
func (c *Client) Close() {
	_ = c.close()
}

// Expect reads the next event and fails the test unless it is a T.
func Expect[T protocol.Event](c *Client, timeout time.Duration) T {
	c.t.Helper()
	ev := c.Next(timeout)
	got, ok := ev.(T)
	if !ok {
		var want T
		c.t.Fatalf("expected %T, got %T: %+v", want, ev, ev)
	}
	return got
}
