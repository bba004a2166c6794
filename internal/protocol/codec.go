package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cory-johannsen/hyggen/internal/game/layout"
)

var (
	// ErrMalformed is returned when a frame is not a valid envelope or its
	// payload does not match the kind.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownKind is returned for envelope types outside the closed set.
	ErrUnknownKind = errors.New("unknown message kind")
)

// Message is anything that can be framed in an envelope.
type Message interface {
	Kind() Kind
}

// envelope is the frame shared by both directions.
type envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode frames m as {"type": kind, "data": m}.
//
// Postcondition: Returns the JSON frame without a trailing newline, or a non-nil error.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", m.Kind(), err)
	}
	out, err := json.Marshal(envelope{Type: m.Kind(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", m.Kind(), err)
	}
	return out, nil
}

// Decode parses a client frame into one of the inbound variants.
//
// Postcondition: Returns a non-nil Inbound, or an error wrapping ErrMalformed or ErrUnknownKind.
func Decode(raw []byte) (Inbound, error) {
	env, err := unwrap(raw)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case KindJoin:
		var p struct {
			Name *string `json:"name"`
		}
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if p.Name == nil {
			return nil, fmt.Errorf("%w: join requires name", ErrMalformed)
		}
		return Join{Name: *p.Name}, nil
	case KindMove:
		var p struct {
			X *float64 `json:"x"`
			Y *float64 `json:"y"`
		}
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if p.X == nil || p.Y == nil {
			return nil, fmt.Errorf("%w: move requires x and y", ErrMalformed)
		}
		return Move{X: *p.X, Y: *p.Y}, nil
	case KindSit:
		var p struct {
			SeatID *layout.SeatID `json:"seatId"`
		}
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if p.SeatID == nil {
			return nil, fmt.Errorf("%w: sit requires seatId", ErrMalformed)
		}
		return Sit{SeatID: *p.SeatID}, nil
	case KindStand:
		return Stand{}, nil
	case KindChat:
		var p Chat
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

// DecodeEvent parses a server frame. It is used by clients and tests.
//
// Postcondition: Returns a non-nil Event, or an error wrapping ErrMalformed or ErrUnknownKind.
func DecodeEvent(raw []byte) (Event, error) {
	env, err := unwrap(raw)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case KindRoomSnapshot:
		return decodeAs[RoomSnapshot](env)
	case KindParticipantArrived:
		return decodeAs[ParticipantArrived](env)
	case KindParticipantMoved:
		return decodeAs[ParticipantMoved](env)
	case KindSeatOccupancyChanged:
		return decodeAs[SeatOccupancyChanged](env)
	case KindParticipantDeparted:
		return decodeAs[ParticipantDeparted](env)
	case KindChatBroadcast:
		return decodeAs[ChatBroadcast](env)
	case KindJoinRejected:
		return decodeAs[JoinRejected](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

func decodeAs[T Event](env envelope) (Event, error) {
	var p T
	if err := unmarshalData(env, &p); err != nil {
		return nil, err
	}
	return p, nil
}

func unwrap(raw []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(bytes.TrimSpace(raw), &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return env, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

func unmarshalData(env envelope, v any) error {
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
	}
	return nil
}
