// Package main is the entry point for the berth CLI.
//
// The binary launches a local data application on a free port after
// reconciling stale instances. All functionality lives in internal/cli.
package main

import (
	"github.com/mmr-tortoise/berth/internal/cli"
)

// version, commit, and date are set at build time via ldflags.
// During development they default to "dev", "none", and "unknown".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
