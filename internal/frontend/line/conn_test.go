package line

import (
	"bufio"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func pipe(t *testing.T, maxLine int) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return NewConn(server, maxLine, time.Second, time.Second), client
}

func TestConn_ReadLineSkipsBlankLines(t *testing.T) {
	c, peer := pipe(t, 64)
	go func() { _, _ = peer.Write([]byte("\r\n  \n{\"type\":\"stand\"}\r\n")) }()

	line, err := c.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"stand"}`, string(line))
}

func TestConn_ReadLineEOF(t *testing.T) {
	c, peer := pipe(t, 64)
	peer.Close()

	_, err := c.ReadLine()
	assert.True(t, errors.Is(err, io.EOF), "got %v", err)
}

func TestConn_ReadLineTooLong(t *testing.T) {
	c, peer := pipe(t, 16)
	go func() { _, _ = peer.Write([]byte("0123456789abcdefghij\n")) }()

	_, err := c.ReadLine()
	assert.ErrorIs(t, err, bufio.ErrTooLong)
}

func TestConn_WriteLine(t *testing.T) {
	c, peer := pipe(t, 64)
	got := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(peer).ReadString('\n')
		got <- line
	}()

	require.NoError(t, c.WriteLine([]byte(`{"type":"chatBroadcast"}`)))
	assert.Equal(t, "{\"type\":\"chatBroadcast\"}\n", <-got)
}

func TestConn_CloseIdempotent(t *testing.T) {
	c, _ := pipe(t, 64)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

// Property: every line written by the peer is read back trimmed and in order.
func TestProperty_ReadLineRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lines := rapid.SliceOfN(rapid.StringMatching(`[a-z{}":]{1,32}`), 1, 10).Draw(rt, "lines")

		server, client := net.Pipe()
		defer server.Close()
		defer client.Close()
		c := NewConn(server, 64, time.Second, time.Second)

		go func() {
			for _, l := range lines {
				_, _ = client.Write([]byte(l + "\n"))
			}
		}()
		for i, want := range lines {
			got, err := c.ReadLine()
			if err != nil {
				rt.Fatalf("line %d: %v", i, err)
			}
			if string(got) != want {
				rt.Fatalf("line %d: got %q want %q", i, got, want)
			}
		}
	})
}
