package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"pitboss/pkg/alerts"
	"pitboss/pkg/bridge"
	"pitboss/pkg/dispatch"
	"pitboss/pkg/ledger"
	"pitboss/pkg/roster"
	"pitboss/pkg/rules"

	"github.com/spf13/cobra"
)

// newServeCmd creates the "pitboss serve" subcommand: it wires the roster,
// rule engine, dispatcher, ledger, alert bus and event bridge together and
// runs in the foreground until SIGINT/SIGTERM.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dispatcher and ledger in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			return runServe(cmd, paths)
		},
	}
}

func runServe(cmd *cobra.Command, paths *Paths) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(paths.StateDB)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	reg, err := roster.LoadFile(paths.RosterPath)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	ruleList, err := rules.LoadFile(paths.RulesPath)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	engine := rules.New(ruleList, dispatch.RuleErrorLogger(db))

	bus := alerts.New(db)
	led := ledger.New(ledger.Config{}, db, bus)
	disp := dispatch.New(dispatch.Config{}, db, reg, engine, bus, nil)
	brg := bridge.New(led.Subscribe(), disp)

	go engine.Watch(ctx, paths.RulesPath)
	go led.Run(ctx)
	go brg.Run(ctx)

	fmt.Fprintf(cmd.OutOrStdout(), "pitboss serving: %d workers, %d rules, state db %s\n",
		len(reg.IDs()), len(engine.Rules()), paths.StateDB)

	// Dispatcher sweeps run on this goroutine; blocks until signal.
	disp.Run(ctx)

	fmt.Fprintln(cmd.OutOrStdout(), "pitboss stopped")
	return nil
}
