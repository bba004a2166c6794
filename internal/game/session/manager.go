package session

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/cory-johannsen/hyggen/internal/game/layout"
	"github.com/cory-johannsen/hyggen/internal/protocol"
)

var (
	// ErrInvalidName is returned by Join when the display name is blank.
	ErrInvalidName = errors.New("display name must not be empty")
	// ErrAlreadyJoined is returned by Join for a session that already joined.
	ErrAlreadyJoined = errors.New("session already joined")
	// ErrNotJoined is returned by operations that need a joined session.
	ErrNotJoined = errors.New("session has not joined")
)

// Participant is a joined session's state.
type Participant struct {
	// ID is the session id.
	ID string
	// DisplayName is the trimmed, NFC-normalized name given at join.
	DisplayName string
	// Position is the participant's location in room space.
	Position layout.Point
	// Color is a 24-bit cosmetic colour assigned at join.
	Color uint32
	// SeatID is the occupied seat, or layout.NoSeat while standing.
	SeatID layout.SeatID
}

// Seated reports whether the participant occupies a seat.
func (p Participant) Seated() bool {
	return p.SeatID != layout.NoSeat
}

// Wire returns the protocol view of p.
func (p Participant) Wire() protocol.Participant {
	w := protocol.Participant{
		ID:    p.ID,
		Name:  p.DisplayName,
		X:     p.Position.X,
		Y:     p.Position.Y,
		Color: p.Color,
	}
	if p.Seated() {
		seat := p.SeatID
		w.SeatID = &seat
	}
	return w
}

// ColorSource assigns cosmetic colours to new participants.
type ColorSource interface {
	Color() uint32
}

// ColorFunc adapts a function to ColorSource.
type ColorFunc func() uint32

// Color implements ColorSource.
func (f ColorFunc) Color() uint32 { return f() }

// RandomColors returns a ColorSource drawing uniformly from 0x000000..0xFFFFFF.
func RandomColors() ColorSource {
	return ColorFunc(func() uint32 { return rand.Uint32N(0x1000000) })
}

// SeatReleaser frees any seat held by a participant that is about to be
// removed. The returned events are emitted before the departure event.
type SeatReleaser interface {
	ReleaseIfHeld(id string) []protocol.Event
}

// JoinResult is the outcome of a successful Join.
type JoinResult struct {
	// Participant is the new record.
	Participant Participant
	// Snapshot holds every participant, including the joiner, in join order.
	// Seats are filled in by the caller that owns seat state.
	Snapshot protocol.RoomSnapshot
	// Arrived is broadcast to everyone except the joiner.
	Arrived protocol.ParticipantArrived
}

// Manager is the participant registry. It is not safe for concurrent use;
// the owning room serializes every call.
type Manager struct {
	spawn        layout.Point
	colors       ColorSource
	releaser     SeatReleaser
	participants map[string]*Participant
	order        []string
}

// NewManager creates an empty registry that places joiners at spawn.
//
// Precondition: colors must not be nil.
func NewManager(spawn layout.Point, colors ColorSource) *Manager {
	return &Manager{
		spawn:        spawn,
		colors:       colors,
		participants: make(map[string]*Participant),
	}
}

// SetSeatReleaser registers the component consulted by Remove.
func (m *Manager) SetSeatReleaser(r SeatReleaser) {
	m.releaser = r
}

// NormalizeName trims surrounding whitespace and applies NFC normalization.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Join registers a participant for session id.
//
// Precondition: id must be non-empty.
// Postcondition: Returns the new participant with a snapshot and arrival
// event, or ErrInvalidName / ErrAlreadyJoined with no state change.
func (m *Manager) Join(id, name string) (JoinResult, error) {
	if _, exists := m.participants[id]; exists {
		return JoinResult{}, fmt.Errorf("joining %q: %w", id, ErrAlreadyJoined)
	}
	name = NormalizeName(name)
	if name == "" {
		return JoinResult{}, fmt.Errorf("joining %q: %w", id, ErrInvalidName)
	}

	p := &Participant{
		ID:          id,
		DisplayName: name,
		Position:    m.spawn,
		Color:       m.colors.Color() & 0xFFFFFF,
		SeatID:      layout.NoSeat,
	}
	m.participants[id] = p
	m.order = append(m.order, id)

	wire := make([]protocol.Participant, 0, len(m.order))
	for _, pid := range m.order {
		wire = append(wire, m.participants[pid].Wire())
	}
	return JoinResult{
		Participant: *p,
		Snapshot:    protocol.RoomSnapshot{Participants: wire, Seats: []protocol.Seat{}, Self: id},
		Arrived:     protocol.ParticipantArrived{Participant: p.Wire()},
	}, nil
}

// Move updates a standing participant's position.
//
// Postcondition: Returns ErrNotJoined if id has not joined; (nil, nil) if the
// participant is seated; otherwise the moved event for everyone but the mover.
func (m *Manager) Move(id string, x, y float64) (*protocol.ParticipantMoved, error) {
	p, ok := m.participants[id]
	if !ok {
		return nil, fmt.Errorf("moving %q: %w", id, ErrNotJoined)
	}
	if p.Seated() {
		return nil, nil
	}
	p.Position = layout.Point{X: x, Y: y}
	return &protocol.ParticipantMoved{ID: id, X: x, Y: y}, nil
}

// Remove deletes the participant for id. Any seat it holds is released first.
//
// Postcondition: Returns nil if id never joined; otherwise the releaser's
// events followed by ParticipantDeparted.
func (m *Manager) Remove(id string) []protocol.Event {
	if _, ok := m.participants[id]; !ok {
		return nil
	}

	var events []protocol.Event
	if m.releaser != nil {
		events = m.releaser.ReleaseIfHeld(id)
	}

	delete(m.participants, id)
	for i, pid := range m.order {
		if pid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return append(events, protocol.ParticipantDeparted{ID: id})
}

// Seat marks id as occupying seat and snaps it to at. Only the seat
// arbitrator calls this.
//
// Precondition: seat must be a valid seat id.
// Postcondition: Returns ErrNotJoined if id has not joined.
func (m *Manager) Seat(id string, seat layout.SeatID, at layout.Point) error {
	p, ok := m.participants[id]
	if !ok {
		return fmt.Errorf("seating %q: %w", id, ErrNotJoined)
	}
	p.SeatID = seat
	p.Position = at
	return nil
}

// Unseat clears id's seat and shifts it by offset. Only the seat arbitrator
// calls this.
//
// Postcondition: Returns the new position, or ErrNotJoined.
func (m *Manager) Unseat(id string, offset layout.Point) (layout.Point, error) {
	p, ok := m.participants[id]
	if !ok {
		return layout.Point{}, fmt.Errorf("unseating %q: %w", id, ErrNotJoined)
	}
	p.SeatID = layout.NoSeat
	p.Position = p.Position.Add(offset)
	return p.Position, nil
}

// Get returns a copy of the participant for id.
func (m *Manager) Get(id string) (Participant, bool) {
	p, ok := m.participants[id]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// Participants returns copies of all participants in join order.
func (m *Manager) Participants() []Participant {
	out := make([]Participant, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.participants[id])
	}
	return out
}

// Count returns the number of joined participants.
func (m *Manager) Count() int {
	return len(m.participants)
}
