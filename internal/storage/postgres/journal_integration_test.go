package postgres_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/hyggen/internal/config"
	"github.com/cory-johannsen/hyggen/internal/game/layout"
	"github.com/cory-johannsen/hyggen/internal/gameserver"
	"github.com/cory-johannsen/hyggen/internal/protocol"
	"github.com/cory-johannsen/hyggen/internal/storage/postgres"
	"github.com/cory-johannsen/hyggen/internal/testutil"
)

func TestPool_HealthRequiresJournalSchema(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	pc := testutil.NewPostgresContainer(t)
	ctx := context.Background()

	assert.ErrorIs(t, pc.Pool.Health(ctx), postgres.ErrJournalSchemaMissing)

	pc.ApplyMigrations(t)
	assert.NoError(t, pc.Pool.Health(ctx))
}

func TestJournalRepository_LongValuesDoNotSpoilBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)

	ctx := context.Background()
	repo := pc.Pool.Journal()
	roomID := "lounge-" + strings.Repeat("r", 100)
	longName := strings.Repeat("a", 300)
	at := time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC)
	require.NoError(t, repo.InsertJournal(ctx, []gameserver.JournalEntry{
		{At: at, RoomID: roomID, SessionID: "a", Activity: gameserver.ActivityJoin, Name: longName},
		{At: at.Add(time.Second), RoomID: roomID, SessionID: "b", Activity: gameserver.ActivityJoin, Name: "Bob"},
	}))

	got, err := repo.Recent(ctx, roomID, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, longName, got[0].Name)
	assert.Equal(t, "Bob", got[1].Name)
}

func TestJournalRepository_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)

	ctx := context.Background()
	repo := pc.Pool.Journal()
	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	entries := []gameserver.JournalEntry{
		{At: at, RoomID: "lounge", SessionID: "a", Activity: gameserver.ActivityJoin, Name: "Alice"},
		{At: at.Add(time.Second), RoomID: "lounge", SessionID: "a", Activity: gameserver.ActivitySit, Name: "Alice", SeatID: 2},
		{At: at.Add(2 * time.Second), RoomID: "lounge", SessionID: "a", Activity: gameserver.ActivityChat, Name: "Alice", Text: "hej"},
		{At: at.Add(3 * time.Second), RoomID: "other", SessionID: "b", Activity: gameserver.ActivityJoin, Name: "Bob"},
	}
	require.NoError(t, repo.InsertJournal(ctx, entries))
	require.NoError(t, repo.InsertJournal(ctx, nil))

	got, err := repo.Recent(ctx, "lounge", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range got {
		assert.True(t, entries[i].At.Equal(got[i].At))
		got[i].At = entries[i].At
	}
	assert.Equal(t, entries[:3], got)

	last, err := repo.Recent(ctx, "lounge", 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, gameserver.ActivityChat, last[0].Activity)
}

func TestJournalWriter_PersistsRoomActivity(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)

	logger := zaptest.NewLogger(t)
	repo := pc.Pool.Journal()
	writer := postgres.NewJournalWriter(repo, config.JournalConfig{
		Buffer:        64,
		BatchSize:     8,
		FlushInterval: 20 * time.Millisecond,
	}, logger)

	done := make(chan error, 1)
	go func() { done <- writer.Start(context.Background()) }()

	room := gameserver.NewRoom(layout.Default(), logger, gameserver.WithJournal(writer))
	id, _ := room.Accept()
	ctx := context.Background()
	require.NoError(t, room.Dispatch(ctx, id, protocol.Join{Name: "Alice"}))
	require.NoError(t, room.Dispatch(ctx, id, protocol.Sit{SeatID: 1}))
	room.Close(id)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, writer.Stop(stopCtx))
	require.NoError(t, <-done)

	got, err := repo.Recent(ctx, layout.Default().ID, 10)
	require.NoError(t, err)
	var activities []gameserver.Activity
	for _, e := range got {
		activities = append(activities, e.Activity)
	}
	assert.Equal(t, []gameserver.Activity{
		gameserver.ActivityJoin,
		gameserver.ActivitySit,
		gameserver.ActivityRelease,
		gameserver.ActivityDepart,
	}, activities)
}
