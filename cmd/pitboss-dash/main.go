// Package main implements the pitboss-dash interactive dashboard.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// robotMode renders a JSON snapshot for non-interactive consumers
// (pipes, scripts, CI). Keys match the Snapshot JSON tags.
func robotMode(dbPath string) error {
	snap, err := FetchSnapshot(context.Background(), dbPath)
	if err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func main() {
	dbPath := statePath()

	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		if err := robotMode(dbPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	p := tea.NewProgram(newModel(dbPath), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running dashboard: %v\n", err)
		os.Exit(1)
	}
}
