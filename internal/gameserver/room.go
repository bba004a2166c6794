package gameserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hyggen/internal/game/layout"
	"github.com/cory-johannsen/hyggen/internal/game/seating"
	"github.com/cory-johannsen/hyggen/internal/game/session"
	"github.com/cory-johannsen/hyggen/internal/protocol"
)

// ErrSessionClosed is returned by Dispatch for sessions that were never
// accepted or have already been closed.
var ErrSessionClosed = errors.New("session closed")

const tracerName = "github.com/cory-johannsen/hyggen/internal/gameserver"

// Option configures a Room.
type Option func(*Room)

// WithJournal records room activity to j.
func WithJournal(j Journal) Option {
	return func(r *Room) { r.journal = j }
}

// WithColors overrides the participant colour source.
func WithColors(c session.ColorSource) Option {
	return func(r *Room) { r.colors = c }
}

// WithOutboxSize sets the per-session frame buffer.
func WithOutboxSize(n int) Option {
	return func(r *Room) { r.outboxSize = n }
}

// WithTracerProvider traces dispatches with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Room) { r.tracer = tp.Tracer(tracerName) }
}

// WithSessionIDs overrides session id generation.
func WithSessionIDs(next func() string) Option {
	return func(r *Room) { r.newID = next }
}

// WithClock overrides the journal timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Room) { r.now = now }
}

// Room is the single serialization domain for one shared room. The registry,
// the arbitrator, the broadcaster and the set of open sessions are only
// touched with mu held, and events are delivered before mu is released, so
// every session observes broadcasts in commit order.
type Room struct {
	mu       sync.Mutex
	layout   *layout.Layout
	registry *session.Manager
	seats    *seating.Arbitrator
	chat     *ChatHandler
	bcast    *Broadcaster

	logger     *zap.Logger
	tracer     trace.Tracer
	journal    Journal
	colors     session.ColorSource
	outboxSize int
	newID      func() string
	now        func() time.Time
}

// NewRoom creates an empty room over l.
//
// Precondition: l must be validated; logger must not be nil.
// Postcondition: Returns a Room with every seat free and no sessions.
func NewRoom(l *layout.Layout, logger *zap.Logger, opts ...Option) *Room {
	r := &Room{
		layout:     l,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		journal:    NopJournal{},
		colors:     session.RandomColors(),
		outboxSize: DefaultOutboxSize,
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.registry = session.NewManager(l.Spawn, r.colors)
	r.seats = seating.NewArbitrator(l, r.registry)
	r.registry.SetSeatReleaser(r.seats)
	r.chat = NewChatHandler(r.registry)
	r.bcast = NewBroadcaster(logger)
	return r
}

// Layout returns the room's static layout.
func (r *Room) Layout() *layout.Layout {
	return r.layout
}

// Accept opens a new anonymous session. It performs no registry writes.
//
// Postcondition: Returns a fresh session id and its outbox.
func (r *Room) Accept() (string, *Outbox) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	o := NewOutbox(id, r.outboxSize)
	r.bcast.Register(o)
	r.logger.Debug("session accepted", zap.String("session_id", id))
	return id, o
}

// Dispatch applies one inbound message from session id. Local failures
// (invalid name, not joined, seat unavailable) are returned for logging and
// never close the session; they produce no broadcast.
//
// Postcondition: Returns nil on success, ErrSessionClosed if id is not open,
// or the operation's error.
func (r *Room) Dispatch(ctx context.Context, id string, msg protocol.Inbound) error {
	ctx, span := r.tracer.Start(ctx, "room.dispatch", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.String("message.kind", string(msg.Kind())),
	))
	defer span.End()

	err := r.dispatch(ctx, id, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Debug("dispatch rejected",
			zap.String("session_id", id),
			zap.String("kind", string(msg.Kind())),
			zap.Error(err),
		)
	}
	return err
}

func (r *Room) dispatch(ctx context.Context, id string, msg protocol.Inbound) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.bcast.Has(id) {
		return fmt.Errorf("dispatching %s from %q: %w", msg.Kind(), id, ErrSessionClosed)
	}

	switch m := msg.(type) {
	case protocol.Join:
		return r.handleJoin(id, m)
	case protocol.Move:
		ev, err := r.registry.Move(id, m.X, m.Y)
		if err != nil || ev == nil {
			return err
		}
		r.bcast.Deliver(*ev, AllExcept(id))
		return nil
	case protocol.Sit:
		ev, err := r.seats.Sit(id, m.SeatID)
		if err != nil {
			return err
		}
		r.bcast.Deliver(ev, All())
		r.record(JournalEntry{SessionID: id, Activity: ActivitySit, SeatID: m.SeatID})
		return nil
	case protocol.Stand:
		for _, ev := range r.seats.Stand(id) {
			r.bcast.Deliver(ev, All())
			if seat, ok := ev.(protocol.SeatOccupancyChanged); ok {
				r.record(JournalEntry{SessionID: id, Activity: ActivityStand, SeatID: seat.SeatID})
			}
		}
		return nil
	case protocol.Chat:
		ev, err := r.chat.Say(id, m.Text)
		if err != nil {
			return err
		}
		r.bcast.Deliver(ev, All())
		r.record(JournalEntry{SessionID: id, Activity: ActivityChat, Name: ev.Name, Text: ev.Text})
		return nil
	default:
		return fmt.Errorf("dispatching %T from %q: %w", msg, id, protocol.ErrUnknownKind)
	}
}

func (r *Room) handleJoin(id string, m protocol.Join) error {
	res, err := r.registry.Join(id, m.Name)
	if err != nil {
		rejected := protocol.JoinRejected{Code: protocol.CodeInvalidName, Message: session.ErrInvalidName.Error()}
		if errors.Is(err, session.ErrAlreadyJoined) {
			rejected = protocol.JoinRejected{Code: protocol.CodeAlreadyJoined, Message: session.ErrAlreadyJoined.Error()}
		}
		r.bcast.Deliver(rejected, Only(id))
		return err
	}

	res.Snapshot.Seats = r.seats.Seats()
	r.bcast.Subscribe(id)
	r.bcast.Deliver(res.Snapshot, Only(id))
	r.bcast.Deliver(res.Arrived, AllExcept(id))
	r.record(JournalEntry{SessionID: id, Activity: ActivityJoin, Name: res.Participant.DisplayName})
	r.logger.Info("participant joined",
		zap.String("session_id", id),
		zap.String("name", res.Participant.DisplayName),
	)
	return nil
}

// Close runs the disconnect path for session id: any held seat is freed,
// the participant is removed, and the outbox is closed. No dispatch from id
// is admitted afterwards.
//
// Postcondition: Returns true the first time it is called for an open
// session, false otherwise.
func (r *Room) Close(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	o := r.bcast.Unregister(id)
	if o == nil {
		return false
	}

	p, joined := r.registry.Get(id)
	for _, ev := range r.registry.Remove(id) {
		r.bcast.Deliver(ev, All())
		if seat, ok := ev.(protocol.SeatOccupancyChanged); ok {
			r.record(JournalEntry{SessionID: id, Activity: ActivityRelease, SeatID: seat.SeatID})
		}
	}
	_ = o.Close()

	if joined {
		r.record(JournalEntry{SessionID: id, Activity: ActivityDepart, Name: p.DisplayName})
		r.logger.Info("participant departed", zap.String("session_id", id), zap.String("name", p.DisplayName))
	} else {
		r.logger.Debug("session closed before join", zap.String("session_id", id))
	}
	return true
}

// CloseAll closes every open session. It is used on shutdown.
func (r *Room) CloseAll() int {
	r.mu.Lock()
	ids := r.bcast.IDs()
	r.mu.Unlock()

	closed := 0
	for _, id := range ids {
		if r.Close(id) {
			closed++
		}
	}
	return closed
}

// View is a read-only copy of the room state.
type View struct {
	LayoutID     string                 `json:"layoutId"`
	Name         string                 `json:"name"`
	Width        float64                `json:"width"`
	Height       float64                `json:"height"`
	Sessions     int                    `json:"sessions"`
	Participants []protocol.Participant `json:"participants"`
	Seats        []protocol.Seat        `json:"seats"`
}

// Snapshot returns a consistent copy of the room state.
func (r *Room) Snapshot() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	ps := r.registry.Participants()
	wire := make([]protocol.Participant, 0, len(ps))
	for _, p := range ps {
		wire = append(wire, p.Wire())
	}
	return View{
		LayoutID:     r.layout.ID,
		Name:         r.layout.Name,
		Width:        r.layout.Width,
		Height:       r.layout.Height,
		Sessions:     r.bcast.Len(),
		Participants: wire,
		Seats:        r.seats.Seats(),
	}
}

// CheckInvariants verifies seat/participant consistency under the room lock.
func (r *Room) CheckInvariants() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seats.Check()
}

func (r *Room) record(e JournalEntry) {
	e.At = r.now()
	e.RoomID = r.layout.ID
	r.journal.Record(e)
}
