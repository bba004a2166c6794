package gameserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/hyggen/internal/game/layout"
	"github.com/cory-johannsen/hyggen/internal/game/session"
)

func TestChatHandler_Say(t *testing.T) {
	sessMgr := session.NewManager(layout.Point{}, session.RandomColors())
	h := NewChatHandler(sessMgr)

	_, err := sessMgr.Join("u1", "Alice")
	require.NoError(t, err)

	evt, err := h.Say("u1", "hello world")
	require.NoError(t, err)
	assert.Equal(t, "Alice", evt.Name)
	assert.Equal(t, "hello world", evt.Text)
}

func TestChatHandler_Say_NotJoined(t *testing.T) {
	sessMgr := session.NewManager(layout.Point{}, session.RandomColors())
	h := NewChatHandler(sessMgr)

	_, err := h.Say("unknown", "hello")
	assert.ErrorIs(t, err, session.ErrNotJoined)
}

func TestChatHandler_Say_PassesTextThrough(t *testing.T) {
	sessMgr := session.NewManager(layout.Point{}, session.RandomColors())
	h := NewChatHandler(sessMgr)
	_, err := sessMgr.Join("u1", "Alice")
	require.NoError(t, err)

	for _, text := range []string{"", "  padded  ", "<b>markup</b>"} {
		evt, err := h.Say("u1", text)
		require.NoError(t, err)
		assert.Equal(t, text, evt.Text)
	}
}
