// Package main provides the mcpagent CLI.
package main

import (
	"github.com/dotcommander/mcpagent/internal/cmd"
	"github.com/dotcommander/mcpagent/internal/config"
)

// Build vars.
var (
	//nolint: gochecknoglobals
	Version = ""
	//nolint: gochecknoglobals
	CommitSHA = ""
)

func main() {
	cfg, cfgErr := config.Ensure()
	cmd.Execute(cmd.BuildInfo{Version: Version, CommitSHA: CommitSHA}, cfg, cfgErr)
}
