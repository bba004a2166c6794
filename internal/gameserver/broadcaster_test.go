package gameserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/hyggen/internal/protocol"
)

func TestAudience_Includes(t *testing.T) {
	assert.True(t, All().Includes("a"))
	assert.False(t, AllExcept("a").Includes("a"))
	assert.True(t, AllExcept("a").Includes("b"))
	assert.True(t, Only("a").Includes("a"))
	assert.False(t, Only("a").Includes("b"))
}

func TestBroadcaster_Deliver(t *testing.T) {
	b := NewBroadcaster(zaptest.NewLogger(t))
	oa, ob, oc := NewOutbox("a", 4), NewOutbox("b", 4), NewOutbox("c", 4)
	b.Register(oa)
	b.Register(ob)
	b.Register(oc)
	b.Subscribe("a")
	b.Subscribe("b")

	ev := protocol.ParticipantDeparted{ID: "z"}
	assert.Equal(t, 2, b.Deliver(ev, All()), "unsubscribed sessions miss room-wide events")
	assert.Equal(t, 1, b.Deliver(ev, AllExcept("a")))
	assert.Equal(t, 1, b.Deliver(ev, Only("c")), "Only reaches sessions before they join")
	assert.Equal(t, 0, b.Deliver(ev, Only("missing")))

	assert.Len(t, oa.Frames(), 1)
	assert.Len(t, ob.Frames(), 2)
	assert.Len(t, oc.Frames(), 1)

	frame := <-oa.Frames()
	got, err := protocol.DecodeEvent(frame)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestBroadcaster_FailedPushDoesNotAffectOthers(t *testing.T) {
	b := NewBroadcaster(zaptest.NewLogger(t))
	full, closed, ok := NewOutbox("full", 1), NewOutbox("closed", 1), NewOutbox("ok", 4)
	for _, o := range []*Outbox{full, closed, ok} {
		b.Register(o)
		b.Subscribe(o.ID())
	}
	require.NoError(t, full.Push([]byte("x")))
	require.NoError(t, closed.Close())

	assert.Equal(t, 1, b.Deliver(protocol.ChatBroadcast{Name: "A", Text: "hi"}, All()))
	assert.Len(t, ok.Frames(), 1)
}

func TestBroadcaster_UnregisterDropsSubscription(t *testing.T) {
	b := NewBroadcaster(zaptest.NewLogger(t))
	o := NewOutbox("a", 4)
	b.Register(o)
	b.Subscribe("a")

	assert.Same(t, o, b.Unregister("a"))
	assert.Nil(t, b.Unregister("a"))
	assert.False(t, b.Has("a"))
	assert.Equal(t, 0, b.Deliver(protocol.ParticipantDeparted{ID: "a"}, All()))

	b.Subscribe("ghost")
	assert.Equal(t, 0, b.Len())
}
