package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/hyggen/internal/game/layout"
)

type seatSummary struct {
	ID int     `yaml:"id"`
	X  float64 `yaml:"x"`
	Y  float64 `yaml:"y"`
}

type layoutSummary struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Width       float64        `yaml:"width"`
	Height      float64        `yaml:"height"`
	Spawn       [2]float64     `yaml:"spawn,flow"`
	StandOffset [2]float64     `yaml:"stand_offset,flow"`
	Seats       []seatSummary  `yaml:"seats"`
	Obstacles   map[string]int `yaml:"obstacles"`
}

func summarize(l *layout.Layout) layoutSummary {
	s := layoutSummary{
		ID:          l.ID,
		Name:        l.Name,
		Width:       l.Width,
		Height:      l.Height,
		Spawn:       [2]float64{l.Spawn.X, l.Spawn.Y},
		StandOffset: [2]float64{l.StandOffset.X, l.StandOffset.Y},
		Obstacles:   make(map[string]int),
	}
	for _, seat := range l.Seats {
		s.Seats = append(s.Seats, seatSummary{ID: int(seat.ID), X: seat.Position.X, Y: seat.Position.Y})
	}
	for _, o := range l.Obstacles {
		s.Obstacles[string(o.Kind)]++
	}
	return s
}

func newLayoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Inspect room layout files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show [file]",
		Short: "Print the resolved layout (built-in lounge when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			l, err := loadLayout(path)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(summarize(l)); err != nil {
				return fmt.Errorf("encoding layout: %w", err)
			}
			return enc.Close()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate file...",
		Short: "Check that layout files load and pass validation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				l, err := loadLayout(path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %v\n", err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s (%s, %d seats)\n", path, l.ID, len(l.Seats))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d layouts invalid", failed, len(args))
			}
			return nil
		},
	})
	return cmd
}
