// Package main implements the afk CLI for driving a coding agent through
// git-anchored turns.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version information
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "afk",
	Short: "Drive a coding agent through git-anchored turns",
	Long: `afk runs an external coding-agent CLI in discrete turns against a git
repository. Each turn sends one prompt, requires the agent to land exactly
one commit, and tags the boundary as afk-<session>-<n>. The repository is
the only persistent state: rewinding is checking out a boundary tag.`,
	Version: version,
}

func init() {
	rootCmd.AddCommand(runCmd)
}
