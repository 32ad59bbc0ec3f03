package main

import (
	"fmt"

	"pitboss/pkg/eventlog"

	"github.com/spf13/cobra"
)

// statusEventLimit caps how many recent events the status command prints.
const statusEventLimit = 10

// newStatusCmd creates the "pitboss status" subcommand: a one-shot snapshot
// of the state database (recent events and active alert count) without
// touching the running service.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show recent activity from the state database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			return runStatus(cmd, paths)
		},
	}
}

func runStatus(cmd *cobra.Command, paths *Paths) error {
	reader, err := eventlog.NewReader(paths.StateDB)
	if err != nil {
		return fmt.Errorf("open state db (run `pitboss init` first?): %w", err)
	}
	defer func() { _ = reader.Close() }()

	events, err := reader.Query(cmd.Context(), eventlog.QueryOpts{Limit: statusEventLimit})
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(out, "no recorded activity")
		return nil
	}

	fmt.Fprintf(out, "last %d events:\n", len(events))
	for _, e := range events {
		subject := e.TaskID
		if subject == "" {
			subject = e.AccountID
		}
		fmt.Fprintf(out, "  %s  %-18s %-12s %s\n",
			e.CreatedAt.Format("15:04:05"), e.Type, subject, e.WorkerID)
	}
	return nil
}
