package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/hyggen/internal/config"
	"github.com/cory-johannsen/hyggen/internal/game/layout"
	"github.com/cory-johannsen/hyggen/internal/gameserver"
	"github.com/cory-johannsen/hyggen/internal/storage/postgres"
)

// errJournalDisabled is returned when the journal is read without a database.
var errJournalDisabled = errors.New("journal requires database.enabled")

// journalReader lists recent journal entries for a room.
type journalReader interface {
	Recent(ctx context.Context, roomID string, limit int) ([]gameserver.JournalEntry, error)
}

func newJournalCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Read the room activity journal",
	}

	var (
		roomID string
		limit  int
	)
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print the most recent journal entries, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be >= 1, got %d", limit)
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if !cfg.Database.Enabled {
				return errJournalDisabled
			}
			if roomID == "" {
				l, err := loadLayout(cfg.Room.LayoutFile)
				if err != nil {
					return err
				}
				roomID = l.ID
			}

			pool, err := postgres.NewPool(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer pool.Close()
			return tailJournal(cmd.Context(), cmd.OutOrStdout(), pool.Journal(), roomID, limit)
		},
	}
	tail.Flags().StringVar(&roomID, "room", "", "room id (empty = id of the configured layout)")
	tail.Flags().IntVar(&limit, "limit", 20, "number of entries to print")
	cmd.AddCommand(tail)
	return cmd
}

// tailJournal writes up to limit entries for roomID to w, one per line.
func tailJournal(ctx context.Context, w io.Writer, r journalReader, roomID string, limit int) error {
	entries, err := r.Recent(ctx, roomID, limit)
	if err != nil {
		return fmt.Errorf("reading journal: %w", err)
	}
	for _, e := range entries {
		if _, err := fmt.Fprintln(w, formatEntry(e)); err != nil {
			return err
		}
	}
	return nil
}

func formatEntry(e gameserver.JournalEntry) string {
	line := fmt.Sprintf("%s  %-7s %s (%s)",
		e.At.UTC().Format(time.RFC3339), e.Activity, e.Name, e.SessionID)
	if e.SeatID != layout.NoSeat {
		line += fmt.Sprintf(" seat=%d", e.SeatID)
	}
	if e.Text != "" {
		line += " " + strconv.Quote(e.Text)
	}
	return line
}
