// Package main provides the room server binary: it serves the shared room
// over WebSocket and TCP, manages the journal schema, and checks layout files.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "roomserver",
		Short:         "Authoritative server for a shared real-time room",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to configuration file (empty = defaults and HYGGEN_ environment)")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newLayoutCmd(),
		newHealthCmd(opts),
		newJournalCmd(opts),
	)
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "roomserver: %v\n", err)
		os.Exit(1)
	}
}
