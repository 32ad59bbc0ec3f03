package main

import "embed"

// assets holds the default roster and rules files seeded by `pitboss init`.
//
//go:embed assets
var assets embed.FS
