// Package protocol defines the closed set of messages exchanged between room
// clients and the server, and the JSON envelope they travel in.
package protocol

import (
	"github.com/cory-johannsen/hyggen/internal/game/layout"
)

// Kind is the envelope "type" discriminator.
type Kind string

// Inbound kinds.
const (
	KindJoin  Kind = "join"
	KindMove  Kind = "move"
	KindSit   Kind = "sit"
	KindStand Kind = "stand"
	KindChat  Kind = "chat"
)

// Outbound kinds.
const (
	KindRoomSnapshot         Kind = "roomSnapshot"
	KindParticipantArrived   Kind = "participantArrived"
	KindParticipantMoved     Kind = "participantMoved"
	KindSeatOccupancyChanged Kind = "seatOccupancyChanged"
	KindParticipantDeparted  Kind = "participantDeparted"
	KindChatBroadcast        Kind = "chatBroadcast"
	KindJoinRejected         Kind = "joinRejected"
)

// Inbound is a decoded client request. The set of implementations is closed.
type Inbound interface {
	Kind() Kind
	inbound()
}

// Join asks to enter the room under a display name.
type Join struct {
	Name string `json:"name"`
}

// Move reports the sender's new position.
type Move struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sit claims a seat.
type Sit struct {
	SeatID layout.SeatID `json:"seatId"`
}

// Stand releases the sender's seat.
type Stand struct{}

// Chat is a line of text from the sender.
type Chat struct {
	Text string `json:"text"`
}

func (Join) Kind() Kind  { return KindJoin }
func (Move) Kind() Kind  { return KindMove }
func (Sit) Kind() Kind   { return KindSit }
func (Stand) Kind() Kind { return KindStand }
func (Chat) Kind() Kind  { return KindChat }

func (Join) inbound()  {}
func (Move) inbound()  {}
func (Sit) inbound()   {}
func (Stand) inbound() {}
func (Chat) inbound()  {}

// Event is a server-originated message. The set of implementations is closed.
type Event interface {
	Kind() Kind
	event()
}

// Participant is the wire view of a joined participant. SeatID is nil while
// standing.
type Participant struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	X      float64        `json:"x"`
	Y      float64        `json:"y"`
	Color  uint32         `json:"color"`
	SeatID *layout.SeatID `json:"seatId"`
}

// Seat is the wire view of a seat and its occupancy.
type Seat struct {
	ID         layout.SeatID `json:"seatId"`
	X          float64       `json:"x"`
	Y          float64       `json:"y"`
	Occupied   bool          `json:"occupied"`
	OccupantID string        `json:"occupantId,omitempty"`
}

// RoomSnapshot is sent to a joiner with the full room state.
type RoomSnapshot struct {
	Participants []Participant `json:"participants"`
	Seats        []Seat        `json:"seats"`
	Self         string        `json:"self"`
}

// ParticipantArrived announces a new participant.
type ParticipantArrived struct {
	Participant Participant `json:"participant"`
}

// ParticipantMoved carries a participant's new position.
type ParticipantMoved struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// SeatOccupancyChanged reports a seat being claimed or freed.
type SeatOccupancyChanged struct {
	SeatID     layout.SeatID `json:"seatId"`
	Occupied   bool          `json:"occupied"`
	OccupantID string        `json:"occupantId,omitempty"`
}

// ParticipantDeparted announces a participant leaving.
type ParticipantDeparted struct {
	ID string `json:"id"`
}

// ChatBroadcast is a chat line stamped with the sender's display name.
type ChatBroadcast struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Join rejection codes.
const (
	CodeInvalidName   = "invalid_name"
	CodeAlreadyJoined = "already_joined"
)

// JoinRejected tells a client why its join failed so it can prompt again.
type JoinRejected struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (RoomSnapshot) Kind() Kind         { return KindRoomSnapshot }
func (ParticipantArrived) Kind() Kind   { return KindParticipantArrived }
func (ParticipantMoved) Kind() Kind     { return KindParticipantMoved }
func (SeatOccupancyChanged) Kind() Kind { return KindSeatOccupancyChanged }
func (ParticipantDeparted) Kind() Kind  { return KindParticipantDeparted }
func (ChatBroadcast) Kind() Kind        { return KindChatBroadcast }
func (JoinRejected) Kind() Kind         { return KindJoinRejected }

func (RoomSnapshot) event()         {}
func (ParticipantArrived) event()   {}
func (ParticipantMoved) event()     {}
func (SeatOccupancyChanged) event() {}
func (ParticipantDeparted) event()  {}
func (ChatBroadcast) event()        {}
func (JoinRejected) event()         {}
