package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// pitbossDir is the default state directory name under the user's home.
const pitbossDir = ".pitboss"

// Paths holds all resolved pitboss state file paths.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	Home       string // ~/.pitboss or PITBOSS_HOME
	StateDB    string // state.db or PITBOSS_DB_PATH
	RosterPath string // roster.yaml or PITBOSS_ROSTER_PATH
	RulesPath  string // rules.toml or PITBOSS_RULES_PATH
}

// ResolvePaths returns all pitboss paths, respecting env var overrides.
// Environment variables:
//   - PITBOSS_HOME: base directory for all pitboss state (default: ~/.pitboss)
//   - PITBOSS_DB_PATH: state database (default: $PITBOSS_HOME/state.db)
//   - PITBOSS_ROSTER_PATH: worker roster (default: $PITBOSS_HOME/roster.yaml)
//   - PITBOSS_RULES_PATH: routing rules (default: $PITBOSS_HOME/rules.toml)
func ResolvePaths() (*Paths, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, err
	}
	return &Paths{
		Home:       home,
		StateDB:    resolvePathWithEnv("PITBOSS_DB_PATH", home, "state.db"),
		RosterPath: resolvePathWithEnv("PITBOSS_ROSTER_PATH", home, "roster.yaml"),
		RulesPath:  resolvePathWithEnv("PITBOSS_RULES_PATH", home, "rules.toml"),
	}, nil
}

// resolveHome returns the pitboss home directory from PITBOSS_HOME or ~/.pitboss.
func resolveHome() (string, error) {
	if v := os.Getenv("PITBOSS_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, pitbossDir), nil
}

// resolvePathWithEnv returns the path from envKey if set, otherwise joins base + suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}
