package postgres

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hyggen/internal/config"
	"github.com/cory-johannsen/hyggen/internal/game/layout"
	"github.com/cory-johannsen/hyggen/internal/gameserver"
)

// finalFlushTimeout bounds the write of entries still queued at shutdown.
const finalFlushTimeout = 5 * time.Second

var journalColumns = []string{"at", "room_id", "session_id", "activity", "name", "seat_id", "text"}

// JournalInserter persists a batch of journal entries.
type JournalInserter interface {
	InsertJournal(ctx context.Context, entries []gameserver.JournalEntry) error
}

// JournalRepository stores room activity in the room_journal table.
type JournalRepository struct {
	db *pgxpool.Pool
}

// NewJournalRepository creates a JournalRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewJournalRepository(db *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{db: db}
}

// InsertJournal appends entries with a single COPY.
//
// Postcondition: Either every entry is stored or none is and an error is returned.
func (r *JournalRepository) InsertJournal(ctx context.Context, entries []gameserver.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"room_journal"},
		journalColumns,
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			return []any{e.At, e.RoomID, e.SessionID, string(e.Activity), e.Name, nullableSeat(e.SeatID), nullableText(e.Text)}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copying %d journal entries: %w", len(entries), err)
	}
	return nil
}

// Recent returns up to limit entries for roomID, oldest first.
//
// Precondition: limit must be positive.
func (r *JournalRepository) Recent(ctx context.Context, roomID string, limit int) ([]gameserver.JournalEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT at, room_id, session_id, activity, name, seat_id, text
		 FROM (
		     SELECT id, at, room_id, session_id, activity, name, seat_id, text
		     FROM room_journal
		     WHERE room_id = $1
		     ORDER BY id DESC
		     LIMIT $2
		 ) recent
		 ORDER BY id ASC`,
		roomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var out []gameserver.JournalEntry
	for rows.Next() {
		var (
			e        gameserver.JournalEntry
			activity string
			seat     *int32
			text     *string
		)
		if err := rows.Scan(&e.At, &e.RoomID, &e.SessionID, &activity, &e.Name, &seat, &text); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		e.Activity = gameserver.Activity(activity)
		if seat != nil {
			e.SeatID = layout.SeatID(*seat)
		}
		if text != nil {
			e.Text = *text
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal rows: %w", err)
	}
	return out, nil
}

func nullableSeat(id layout.SeatID) any {
	if id == layout.NoSeat {
		return nil
	}
	return int32(id)
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// JournalWriter queues entries from the room and writes them in batches on
// its own goroutine. It implements gameserver.Journal and server.Service.
type JournalWriter struct {
	inserter      JournalInserter
	logger        *zap.Logger
	entries       chan gameserver.JournalEntry
	batchSize     int
	flushInterval time.Duration

	dropped  atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewJournalWriter creates a JournalWriter.
//
// Precondition: inserter and logger must be non-nil; cfg must pass validation.
func NewJournalWriter(inserter JournalInserter, cfg config.JournalConfig, logger *zap.Logger) *JournalWriter {
	return &JournalWriter{
		inserter:      inserter,
		logger:        logger,
		entries:       make(chan gameserver.JournalEntry, cfg.Buffer),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Record queues e without blocking. When the queue is full the entry is
// dropped and counted.
func (w *JournalWriter) Record(e gameserver.JournalEntry) {
	select {
	case w.entries <- e:
	default:
		n := w.dropped.Add(1)
		w.logger.Warn("journal queue full, dropping entry",
			zap.String("session_id", e.SessionID),
			zap.String("activity", string(e.Activity)),
			zap.Int64("dropped_total", n),
		)
	}
}

// Dropped returns the number of entries discarded because the queue was full.
func (w *JournalWriter) Dropped() int64 {
	return w.dropped.Load()
}

// Start drains the queue until Stop is called or ctx is cancelled, flushing
// whenever a batch fills or the flush interval elapses.
//
// Postcondition: Entries queued before shutdown have been offered to the
// inserter once more before Start returns.
func (w *JournalWriter) Start(ctx context.Context) error {
	defer close(w.done)

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	batch := make([]gameserver.JournalEntry, 0, w.batchSize)
	for {
		select {
		case e := <-w.entries:
			batch = append(batch, e)
			if len(batch) >= w.batchSize {
				batch = w.flush(ctx, batch)
			}
		case <-ticker.C:
			batch = w.flush(ctx, batch)
		case <-w.stop:
			w.drain(context.WithoutCancel(ctx), batch)
			return nil
		case <-ctx.Done():
			w.drain(context.WithoutCancel(ctx), batch)
			return nil
		}
	}
}

// Stop signals Start to flush and return, then waits for it within ctx.
func (w *JournalWriter) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stop) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for journal flush: %w", ctx.Err())
	}
}

func (w *JournalWriter) drain(ctx context.Context, batch []gameserver.JournalEntry) {
	ctx, cancel := context.WithTimeout(ctx, finalFlushTimeout)
	defer cancel()
	for {
		select {
		case e := <-w.entries:
			batch = append(batch, e)
			if len(batch) >= w.batchSize {
				batch = w.flush(ctx, batch)
			}
		default:
			w.flush(ctx, batch)
			return
		}
	}
}

// flush writes batch and returns it emptied for reuse. A failed write is
// logged and the entries are discarded.
func (w *JournalWriter) flush(ctx context.Context, batch []gameserver.JournalEntry) []gameserver.JournalEntry {
	if len(batch) == 0 {
		return batch
	}
	start := time.Now()
	if err := w.inserter.InsertJournal(ctx, batch); err != nil {
		w.logger.Error("writing journal batch",
			zap.Int("entries", len(batch)),
			zap.Error(err),
		)
	} else {
		w.logger.Debug("journal batch written",
			zap.Int("entries", len(batch)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return batch[:0]
}
