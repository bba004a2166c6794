// Package line serves the room protocol over plain TCP, one JSON envelope
// per newline-terminated line. It exists for bots and scripted clients.
package line

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// Conn frames a TCP connection into lines.
type Conn struct {
	raw     net.Conn
	scanner *bufio.Scanner
	mu      sync.Mutex
	once    sync.Once

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps raw. Lines longer than maxLine bytes end the connection.
//
// Precondition: raw must be open; maxLine must be positive.
func NewConn(raw net.Conn, maxLine int, readTimeout, writeTimeout time.Duration) *Conn {
	scanner := bufio.NewScanner(raw)
	scanner.Buffer(make([]byte, 0, min(maxLine, 4096)), maxLine)
	return &Conn{
		raw:          raw,
		scanner:      scanner,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// ReadLine returns the next non-blank line without its terminator.
//
// Postcondition: Returns a line, or an error (io.EOF on clean close,
// bufio.ErrTooLong when the line exceeds the limit).
func (c *Conn) ReadLine() ([]byte, error) {
	for {
		if c.readTimeout > 0 {
			_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		if !c.scanner.Scan() {
			if err := c.scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading line: %w", err)
			}
			return nil, fmt.Errorf("reading line: %w", io.EOF)
		}
		line := bytes.TrimSpace(c.scanner.Bytes())
		if len(line) > 0 {
			return line, nil
		}
	}
}

// WriteLine writes b followed by a newline.
func (c *Conn) WriteLine(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	buf := make([]byte, 0, len(b)+1)
	buf = append(append(buf, b...), '\n')
	if _, err := c.raw.Write(buf); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}
	return nil
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.raw.RemoteAddr().String()
}

// Close closes the connection. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() { err = c.raw.Close() })
	return err
}
