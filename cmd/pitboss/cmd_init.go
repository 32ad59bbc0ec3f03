package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// newInitCmd creates the "pitboss init" subcommand. It scaffolds the state
// directory with the default roster and rules files and creates the state
// database. Existing files are never overwritten.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the pitboss state directory with default roster and rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			return runInit(cmd, paths)
		},
	}
}

func runInit(cmd *cobra.Command, paths *Paths) error {
	if err := os.MkdirAll(paths.Home, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", paths.Home, err)
	}

	seeded := 0
	for _, f := range []struct {
		asset string
		dest  string
	}{
		{"assets/roster.yaml", paths.RosterPath},
		{"assets/rules.toml", paths.RulesPath},
	} {
		if _, err := os.Stat(f.dest); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, leaving it alone\n", f.dest)
			continue
		}
		data, err := assets.ReadFile(f.asset)
		if err != nil {
			return fmt.Errorf("read embedded %s: %w", f.asset, err)
		}
		if err := os.MkdirAll(filepath.Dir(f.dest), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", f.dest, err)
		}
		if err := os.WriteFile(f.dest, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.dest, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", f.dest)
		seeded++
	}

	db, err := openDB(paths.StateDB)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	fmt.Fprintf(cmd.OutOrStdout(), "initialized %s (%d files seeded)\n", paths.Home, seeded)
	return nil
}
