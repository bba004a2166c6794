package seating

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/hyggen/internal/game/layout"
	"github.com/cory-johannsen/hyggen/internal/game/session"
	"github.com/cory-johannsen/hyggen/internal/protocol"
)

func newFixture() (*session.Manager, *Arbitrator) {
	l := layout.Default()
	m := session.NewManager(l.Spawn, session.RandomColors())
	a := NewArbitrator(l, m)
	m.SetSeatReleaser(a)
	return m, a
}

func join(t require.TestingT, m *session.Manager, id string) {
	_, err := m.Join(id, id)
	require.NoError(t, err)
}

func TestSit_Success(t *testing.T) {
	m, a := newFixture()
	join(t, m, "a")

	ev, err := a.Sit("a", 1)
	require.NoError(t, err)
	assert.Equal(t, protocol.SeatOccupancyChanged{SeatID: 1, Occupied: true, OccupantID: "a"}, ev)

	p, _ := m.Get("a")
	assert.Equal(t, layout.SeatID(1), p.SeatID)
	assert.Equal(t, layout.Point{X: 150, Y: 337.5}, p.Position)
	occ, ok := a.Occupant(1)
	require.True(t, ok)
	assert.Equal(t, "a", occ)
	require.NoError(t, a.Check())
}

func TestSit_Rejections(t *testing.T) {
	m, a := newFixture()
	join(t, m, "a")
	join(t, m, "b")
	_, err := a.Sit("a", 1)
	require.NoError(t, err)

	cases := []struct {
		name  string
		id    string
		seat  layout.SeatID
		cause error
	}{
		{"not joined", "ghost", 2, session.ErrNotJoined},
		{"already seated", "a", 2, ErrAlreadySeated},
		{"already seated same seat", "a", 1, ErrAlreadySeated},
		{"unknown seat", "b", 42, ErrUnknownSeat},
		{"no seat", "b", layout.NoSeat, ErrUnknownSeat},
		{"occupied", "b", 1, ErrSeatOccupied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Sit(tc.id, tc.seat)
			assert.ErrorIs(t, err, ErrSeatUnavailable)
			assert.ErrorIs(t, err, tc.cause)
		})
	}

	b, _ := m.Get("b")
	assert.False(t, b.Seated())
	occ, _ := a.Occupant(2)
	assert.Empty(t, occ)
	require.NoError(t, a.Check())
}

func TestStand(t *testing.T) {
	m, a := newFixture()
	join(t, m, "a")

	assert.Nil(t, a.Stand("a"), "standing while standing is a no-op")
	assert.Nil(t, a.Stand("ghost"))

	_, err := a.Sit("a", 2)
	require.NoError(t, err)
	events := a.Stand("a")
	require.Len(t, events, 2)
	assert.Equal(t, protocol.SeatOccupancyChanged{SeatID: 2, Occupied: false}, events[0])
	assert.Equal(t, protocol.ParticipantMoved{ID: "a", X: 550, Y: 377.5}, events[1])

	p, _ := m.Get("a")
	assert.False(t, p.Seated())
	assert.Equal(t, layout.Point{X: 550, Y: 377.5}, p.Position)
	require.NoError(t, a.Check())

	_, err = a.Sit("a", 2)
	require.NoError(t, err, "seat can be reclaimed after standing")
}

func TestReleaseIfHeld_OnRemove(t *testing.T) {
	m, a := newFixture()
	join(t, m, "a")
	join(t, m, "b")
	_, err := a.Sit("a", 1)
	require.NoError(t, err)

	assert.Nil(t, m.Remove("ghost"))
	events := m.Remove("a")
	require.Len(t, events, 2)
	assert.Equal(t, protocol.SeatOccupancyChanged{SeatID: 1, Occupied: false}, events[0])
	assert.Equal(t, protocol.ParticipantDeparted{ID: "a"}, events[1])

	occ, _ := a.Occupant(1)
	assert.Empty(t, occ)
	require.NoError(t, a.Check())

	_, err = a.Sit("b", 1)
	require.NoError(t, err)
}

func TestReleaseIfHeld_Standing(t *testing.T) {
	m, a := newFixture()
	join(t, m, "a")
	assert.Nil(t, a.ReleaseIfHeld("a"))
}

func TestSeats_Ordered(t *testing.T) {
	m, a := newFixture()
	join(t, m, "b")
	_, err := a.Sit("b", 2)
	require.NoError(t, err)

	seats := a.Seats()
	require.Len(t, seats, 2)
	assert.Equal(t, protocol.Seat{ID: 1, X: 150, Y: 337.5}, seats[0])
	assert.Equal(t, protocol.Seat{ID: 2, X: 550, Y: 337.5, Occupied: true, OccupantID: "b"}, seats[1])
}

// TestProperty_SeatInvariants drives random join/sit/stand/move/remove
// sequences and checks exclusivity, mutual consistency, and that seated
// participants do not move.
func TestProperty_SeatInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m, a := newFixture()
		ids := []string{"p0", "p1", "p2", "p3"}

		n := rapid.IntRange(1, 80).Draw(t, "ops")
		for i := 0; i < n; i++ {
			id := rapid.SampledFrom(ids).Draw(t, "id")
			switch rapid.IntRange(0, 4).Draw(t, "op") {
			case 0:
				_, _ = m.Join(id, id)
			case 1:
				seat := layout.SeatID(rapid.IntRange(0, 3).Draw(t, "seat"))
				before, _ := a.Occupant(seat)
				ev, err := a.Sit(id, seat)
				if err == nil {
					assert.Empty(t, before)
					assert.Equal(t, id, ev.OccupantID)
				} else {
					assert.ErrorIs(t, err, ErrSeatUnavailable)
					after, _ := a.Occupant(seat)
					assert.Equal(t, before, after, "rejected sit leaves the seat unchanged")
				}
			case 2:
				_ = a.Stand(id)
			case 3:
				before, joined := m.Get(id)
				ev, err := m.Move(id, 1, 1)
				if joined && before.Seated() {
					require.NoError(t, err)
					assert.Nil(t, ev)
					after, _ := m.Get(id)
					assert.Equal(t, before.Position, after.Position)
				}
			case 4:
				events := m.Remove(id)
				if len(events) > 0 {
					last := events[len(events)-1]
					assert.Equal(t, protocol.ParticipantDeparted{ID: id}, last)
				}
			}
			require.NoError(t, a.Check(), fmt.Sprintf("after op %d", i))
		}
	})
}
