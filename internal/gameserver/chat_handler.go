package gameserver

import (
	"fmt"

	"github.com/cory-johannsen/hyggen/internal/game/session"
	"github.com/cory-johannsen/hyggen/internal/protocol"
)

// ChatHandler relays chat lines stamped with the sender's display name.
type ChatHandler struct {
	sessions *session.Manager
}

// NewChatHandler creates a ChatHandler with the given dependencies.
//
// Precondition: sessions must be non-nil.
func NewChatHandler(sessions *session.Manager) *ChatHandler {
	return &ChatHandler{
		sessions: sessions,
	}
}

// Say stamps text with the sender's name. The result goes to every
// participant, the sender included.
//
// Precondition: id must be a joined participant.
// Postcondition: Returns a ChatBroadcast, or an error wrapping session.ErrNotJoined.
func (h *ChatHandler) Say(id string, text string) (protocol.ChatBroadcast, error) {
	p, ok := h.sessions.Get(id)
	if !ok {
		return protocol.ChatBroadcast{}, fmt.Errorf("chat from %q: %w", id, session.ErrNotJoined)
	}

	return protocol.ChatBroadcast{
		Name: p.DisplayName,
		Text: text,
	}, nil
}
