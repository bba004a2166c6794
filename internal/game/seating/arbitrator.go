// Package seating owns the room's seats and arbitrates claims on them.
package seating

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/hyggen/internal/game/layout"
	"github.com/cory-johannsen/hyggen/internal/game/session"
	"github.com/cory-johannsen/hyggen/internal/protocol"
)

var (
	// ErrSeatUnavailable is returned by every rejected Sit. The concrete cause
	// is wrapped alongside it.
	ErrSeatUnavailable = errors.New("seat unavailable")
	// ErrAlreadySeated means the claimant already occupies a seat.
	ErrAlreadySeated = errors.New("participant already seated")
	// ErrUnknownSeat means the seat id is not part of the layout.
	ErrUnknownSeat = errors.New("unknown seat")
	// ErrSeatOccupied means another participant holds the seat.
	ErrSeatOccupied = errors.New("seat occupied")
)

// Registry is the participant state the arbitrator reads and updates.
// *session.Manager satisfies it.
type Registry interface {
	Get(id string) (session.Participant, bool)
	Participants() []session.Participant
	Seat(id string, seat layout.SeatID, at layout.Point) error
	Unseat(id string, offset layout.Point) (layout.Point, error)
}

type seatState struct {
	layout.Seat
	occupant string
}

// Arbitrator is the only component that changes seat occupancy. It is not
// safe for concurrent use; the owning room serializes every call so that
// checking a seat and claiming it happen in one critical section.
type Arbitrator struct {
	standOffset layout.Point
	registry    Registry
	seats       map[layout.SeatID]*seatState
	order       []layout.SeatID
	held        map[string]layout.SeatID
}

// NewArbitrator creates an arbitrator with every seat of l free.
//
// Precondition: l must be validated; registry must not be nil.
func NewArbitrator(l *layout.Layout, registry Registry) *Arbitrator {
	a := &Arbitrator{
		standOffset: l.StandOffset,
		registry:    registry,
		seats:       make(map[layout.SeatID]*seatState, len(l.Seats)),
		held:        make(map[string]layout.SeatID),
	}
	for _, s := range l.Seats {
		a.seats[s.ID] = &seatState{Seat: s}
		a.order = append(a.order, s.ID)
	}
	return a
}

func unavailable(id string, seat layout.SeatID, cause error) error {
	return fmt.Errorf("sitting %q on seat %d: %w: %w", id, seat, ErrSeatUnavailable, cause)
}

// Sit claims seat for participant id and snaps it to the seat's position.
//
// Postcondition: On success the seat is occupied by id and the returned event
// is broadcast to everyone. On failure nothing changes and the error wraps
// ErrSeatUnavailable plus one of session.ErrNotJoined, ErrAlreadySeated,
// ErrUnknownSeat, or ErrSeatOccupied.
func (a *Arbitrator) Sit(id string, seat layout.SeatID) (protocol.SeatOccupancyChanged, error) {
	p, ok := a.registry.Get(id)
	if !ok {
		return protocol.SeatOccupancyChanged{}, unavailable(id, seat, session.ErrNotJoined)
	}
	if _, held := a.held[id]; held || p.Seated() {
		return protocol.SeatOccupancyChanged{}, unavailable(id, seat, ErrAlreadySeated)
	}
	s, ok := a.seats[seat]
	if !ok {
		return protocol.SeatOccupancyChanged{}, unavailable(id, seat, ErrUnknownSeat)
	}
	if s.occupant != "" {
		return protocol.SeatOccupancyChanged{}, unavailable(id, seat, ErrSeatOccupied)
	}

	if err := a.registry.Seat(id, seat, s.Position); err != nil {
		return protocol.SeatOccupancyChanged{}, unavailable(id, seat, err)
	}
	s.occupant = id
	a.held[id] = seat
	return protocol.SeatOccupancyChanged{SeatID: seat, Occupied: true, OccupantID: id}, nil
}

// Stand frees the seat held by id and displaces the participant by the
// layout's stand offset.
//
// Postcondition: Returns nil if id holds no seat; otherwise the freed-seat
// event followed by the moved event, both for everyone.
func (a *Arbitrator) Stand(id string) []protocol.Event {
	seat, ok := a.free(id)
	if !ok {
		return nil
	}
	pos, err := a.registry.Unseat(id, a.standOffset)
	freed := protocol.SeatOccupancyChanged{SeatID: seat, Occupied: false}
	if err != nil {
		return []protocol.Event{freed}
	}
	return []protocol.Event{freed, protocol.ParticipantMoved{ID: id, X: pos.X, Y: pos.Y}}
}

// ReleaseIfHeld frees the seat held by id without displacement. It is called
// on the disconnect path before the participant is removed.
//
// Postcondition: Returns nil if id holds no seat; otherwise the freed-seat event.
func (a *Arbitrator) ReleaseIfHeld(id string) []protocol.Event {
	seat, ok := a.free(id)
	if !ok {
		return nil
	}
	_, _ = a.registry.Unseat(id, layout.Point{})
	return []protocol.Event{protocol.SeatOccupancyChanged{SeatID: seat, Occupied: false}}
}

func (a *Arbitrator) free(id string) (layout.SeatID, bool) {
	seat, ok := a.held[id]
	if !ok {
		return layout.NoSeat, false
	}
	delete(a.held, id)
	a.seats[seat].occupant = ""
	return seat, true
}

// Occupant returns the participant holding seat, or "" when it is free.
func (a *Arbitrator) Occupant(seat layout.SeatID) (string, bool) {
	s, ok := a.seats[seat]
	if !ok {
		return "", false
	}
	return s.occupant, true
}

// Seats returns every seat in id order.
func (a *Arbitrator) Seats() []protocol.Seat {
	out := make([]protocol.Seat, 0, len(a.order))
	for _, id := range a.order {
		s := a.seats[id]
		out = append(out, protocol.Seat{
			ID:         s.ID,
			X:          s.Position.X,
			Y:          s.Position.Y,
			Occupied:   s.occupant != "",
			OccupantID: s.occupant,
		})
	}
	return out
}

// Check verifies that seat occupancy and participant seat fields agree:
// every occupant is registered and points back at its seat, no participant
// holds two seats, and every seated participant is some seat's occupant.
//
// Postcondition: Returns nil if consistent, or an error naming the first violation.
func (a *Arbitrator) Check() error {
	seen := make(map[string]layout.SeatID, len(a.held))
	for _, id := range a.order {
		s := a.seats[id]
		if s.occupant == "" {
			continue
		}
		p, ok := a.registry.Get(s.occupant)
		if !ok {
			return fmt.Errorf("seat %d occupied by unregistered %q", id, s.occupant)
		}
		if p.SeatID != id {
			return fmt.Errorf("seat %d occupied by %q whose seat is %d", id, s.occupant, p.SeatID)
		}
		if other, dup := seen[s.occupant]; dup {
			return fmt.Errorf("%q occupies seats %d and %d", s.occupant, other, id)
		}
		seen[s.occupant] = id
	}
	for _, p := range a.registry.Participants() {
		if !p.Seated() {
			continue
		}
		if seen[p.ID] != p.SeatID {
			return fmt.Errorf("%q claims seat %d which it does not occupy", p.ID, p.SeatID)
		}
	}
	if len(seen) != len(a.held) {
		return fmt.Errorf("held index has %d entries, %d seats occupied", len(a.held), len(seen))
	}
	return nil
}
