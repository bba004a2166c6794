package gameserver

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/hyggen/internal/protocol"
)

type audienceKind int

const (
	audienceAll audienceKind = iota
	audienceAllExcept
	audienceOnly
)

// Audience selects which sessions receive an event.
type Audience struct {
	kind    audienceKind
	session string
}

// All selects every subscribed session.
func All() Audience { return Audience{kind: audienceAll} }

// AllExcept selects every subscribed session other than id.
func AllExcept(id string) Audience { return Audience{kind: audienceAllExcept, session: id} }

// Only selects session id alone, subscribed or not.
func Only(id string) Audience { return Audience{kind: audienceOnly, session: id} }

// Includes reports whether session id is selected.
func (a Audience) Includes(id string) bool {
	switch a.kind {
	case audienceAllExcept:
		return id != a.session
	case audienceOnly:
		return id == a.session
	default:
		return true
	}
}

// Broadcaster fans encoded events out to session outboxes. Sessions are
// registered on accept and subscribed to room-wide events once they join.
// Like the rest of the room state it is guarded by the Room's lock.
type Broadcaster struct {
	logger     *zap.Logger
	outboxes   map[string]*Outbox
	subscribed map[string]bool
}

// NewBroadcaster creates a Broadcaster with no sessions.
//
// Precondition: logger must not be nil.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		logger:     logger,
		outboxes:   make(map[string]*Outbox),
		subscribed: make(map[string]bool),
	}
}

// Register adds an outbox for delivery.
func (b *Broadcaster) Register(o *Outbox) {
	b.outboxes[o.ID()] = o
}

// Unregister removes and returns the outbox for id, or nil if absent.
func (b *Broadcaster) Unregister(id string) *Outbox {
	o, ok := b.outboxes[id]
	if !ok {
		return nil
	}
	delete(b.outboxes, id)
	delete(b.subscribed, id)
	return o
}

// Subscribe adds a registered session to the All and AllExcept audiences.
func (b *Broadcaster) Subscribe(id string) {
	if _, ok := b.outboxes[id]; ok {
		b.subscribed[id] = true
	}
}

// Has reports whether id has a registered outbox.
func (b *Broadcaster) Has(id string) bool {
	_, ok := b.outboxes[id]
	return ok
}

// IDs returns the registered session ids in no particular order.
func (b *Broadcaster) IDs() []string {
	ids := make([]string, 0, len(b.outboxes))
	for id := range b.outboxes {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered outboxes.
func (b *Broadcaster) Len() int {
	return len(b.outboxes)
}

// Deliver encodes ev once and pushes it to every outbox in aud. A failed push
// is logged and does not affect other recipients.
//
// Postcondition: Returns the number of outboxes that accepted the frame.
func (b *Broadcaster) Deliver(ev protocol.Event, aud Audience) int {
	if aud.kind == audienceOnly && !b.Has(aud.session) {
		return 0
	}
	frame, err := protocol.Encode(ev)
	if err != nil {
		b.logger.Error("encoding event", zap.String("kind", string(ev.Kind())), zap.Error(err))
		return 0
	}

	if aud.kind == audienceOnly {
		return b.push(b.outboxes[aud.session], frame, ev)
	}
	delivered := 0
	for id := range b.subscribed {
		if !aud.Includes(id) {
			continue
		}
		delivered += b.push(b.outboxes[id], frame, ev)
	}
	return delivered
}

func (b *Broadcaster) push(o *Outbox, frame []byte, ev protocol.Event) int {
	if err := o.Push(frame); err != nil {
		b.logger.Warn("push to outbox failed",
			zap.String("session_id", o.ID()),
			zap.String("kind", string(ev.Kind())),
			zap.Error(err),
		)
		return 0
	}
	return 1
}
