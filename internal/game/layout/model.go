// Package layout provides the static room layout: bounds, spawn point, seats,
// and fixed obstacles. A Layout is loaded once at startup and never mutated.
package layout

import (
	"fmt"
	"sort"
)

// SeatID identifies a seat within a layout. Valid seat ids are positive.
type SeatID int

// NoSeat is the zero SeatID, used by participants that are standing.
const NoSeat SeatID = 0

// Point is a coordinate in room space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns the component-wise sum of p and o.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// IsZero reports whether p is the origin.
func (p Point) IsZero() bool {
	return p.X == 0 && p.Y == 0
}

// ObstacleKind names a kind of fixed furniture.
type ObstacleKind string

// Obstacle kinds known to the tile grid format.
const (
	Fireplace ObstacleKind = "fireplace"
	Table     ObstacleKind = "table"
)

// Seat is a fixed seating resource.
type Seat struct {
	// ID is the stable identifier clients use in sit requests.
	ID SeatID
	// Position is where a participant is placed while seated.
	Position Point
}

// Obstacle is an axis-aligned piece of fixed furniture centred on Position.
type Obstacle struct {
	Kind     ObstacleKind
	Position Point
	Width    float64
	Height   float64
}

// Layout describes one room.
type Layout struct {
	// ID uniquely identifies the layout.
	ID string
	// Name is the display name of the room.
	Name string
	// Width and Height bound room space; the origin is the top-left corner.
	Width  float64
	Height float64
	// Spawn is where newly joined participants appear.
	Spawn Point
	// StandOffset is added to a seat's position when its occupant stands up.
	StandOffset Point
	// Seats lists all seats ordered by ID.
	Seats []Seat
	// Obstacles lists fixed furniture.
	Obstacles []Obstacle
}

// Contains reports whether p lies inside the room bounds.
func (l *Layout) Contains(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X <= l.Width && p.Y <= l.Height
}

// Seat returns the seat with the given id.
//
// Postcondition: Returns (seat, true) if found, or (Seat{}, false) otherwise.
func (l *Layout) Seat(id SeatID) (Seat, bool) {
	i := sort.Search(len(l.Seats), func(i int) bool { return l.Seats[i].ID >= id })
	if i < len(l.Seats) && l.Seats[i].ID == id {
		return l.Seats[i], true
	}
	return Seat{}, false
}

// Validate checks layout invariants.
//
// Postcondition: Returns nil if valid, or an error describing the first violation.
func (l *Layout) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("layout ID must not be empty")
	}
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("layout %q: bounds must be positive, got %vx%v", l.ID, l.Width, l.Height)
	}
	if !l.Contains(l.Spawn) {
		return fmt.Errorf("layout %q: spawn (%v,%v) is outside the room", l.ID, l.Spawn.X, l.Spawn.Y)
	}
	if len(l.Seats) > 0 && l.StandOffset.IsZero() {
		return fmt.Errorf("layout %q: stand_offset must not be zero", l.ID)
	}
	seen := make(map[SeatID]bool, len(l.Seats))
	for i, s := range l.Seats {
		if s.ID <= NoSeat {
			return fmt.Errorf("layout %q: seat id must be positive, got %d", l.ID, s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("layout %q: duplicate seat id %d", l.ID, s.ID)
		}
		seen[s.ID] = true
		if i > 0 && l.Seats[i-1].ID > s.ID {
			return fmt.Errorf("layout %q: seats must be ordered by id", l.ID)
		}
		if !l.Contains(s.Position) {
			return fmt.Errorf("layout %q: seat %d at (%v,%v) is outside the room", l.ID, s.ID, s.Position.X, s.Position.Y)
		}
	}
	for _, o := range l.Obstacles {
		if o.Kind == "" {
			return fmt.Errorf("layout %q: obstacle kind must not be empty", l.ID)
		}
		if o.Width <= 0 || o.Height <= 0 {
			return fmt.Errorf("layout %q: %s obstacle must have positive size", l.ID, o.Kind)
		}
	}
	return nil
}
