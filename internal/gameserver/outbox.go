package gameserver

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrOutboxClosed is returned by Push after Close.
	ErrOutboxClosed = errors.New("outbox closed")
	// ErrOutboxFull is returned by Push when the buffer has no room.
	ErrOutboxFull = errors.New("outbox buffer full")
)

// DefaultOutboxSize is the frame buffer used when none is configured.
const DefaultOutboxSize = 64

// Outbox is a session's bounded queue of encoded frames. The room pushes into
// it; the transport's write loop drains Frames until the channel closes.
type Outbox struct {
	id     string
	frames chan []byte
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox for session id.
//
// Precondition: id must be non-empty.
// Postcondition: Returns an Outbox with an open frames channel.
func NewOutbox(id string, size int) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	return &Outbox{
		id:     id,
		frames: make(chan []byte, size),
	}
}

// ID returns the session id.
func (o *Outbox) ID() string {
	return o.id
}

// Push enqueues frame without blocking.
//
// Postcondition: The frame is enqueued, or an error wrapping ErrOutboxClosed or ErrOutboxFull.
func (o *Outbox) Push(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("session %s: %w", o.id, ErrOutboxClosed)
	}
	select {
	case o.frames <- frame:
		return nil
	default:
		return fmt.Errorf("session %s: %w", o.id, ErrOutboxFull)
	}
}

// Frames returns the read-only frame channel.
func (o *Outbox) Frames() <-chan []byte {
	return o.frames
}

// Close closes the frame channel. Frames already queued remain readable.
//
// Postcondition: Further Push calls fail. Safe to call more than once.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.frames)
	}
	return nil
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
