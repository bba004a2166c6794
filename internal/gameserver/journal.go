package gameserver

import (
	"time"

	"github.com/cory-johannsen/hyggen/internal/game/layout"
)

// Activity names a journaled room event.
type Activity string

// Journaled activities.
const (
	ActivityJoin    Activity = "join"
	ActivityDepart  Activity = "depart"
	ActivitySit     Activity = "sit"
	ActivityStand   Activity = "stand"
	ActivityRelease Activity = "release"
	ActivityChat    Activity = "chat"
)

// JournalEntry is one line of the room's activity log.
type JournalEntry struct {
	At        time.Time
	RoomID    string
	SessionID string
	Activity  Activity
	Name      string
	SeatID    layout.SeatID
	Text      string
}

// Journal receives activity entries. Record is called with the room lock held
// and must not block.
type Journal interface {
	Record(JournalEntry)
}

// NopJournal discards every entry.
type NopJournal struct{}

// Record implements Journal.
func (NopJournal) Record(JournalEntry) {}
