// Package cli wires the agenthive commands.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/agenthive/agenthive/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"                        _   _     _\n" +
		"   __ _  __ _  ___ _ __| |_| |__ (_)_   _____\n" +
		"  / _` |/ _` |/ _ \\ '_ \\ __| '_ \\| \\ \\ / / _ \\\n" +
		" | (_| | (_| |  __/ | | | |_| | | | |\\ V /  __/\n" +
		"  \\__,_|\\__, |\\___|_| |_|\\__|_| |_|_| \\_/ \\___|\n" +
		"        |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "agenthive",
	Short: "agenthive - filesystem-backed multi-agent coordination hooks",
	Long: color.CyanString(logo) +
		"\nMessage routing, plan tracking and adaptive learning for a loose multi-agent system.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(commCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(learnCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sweepCmd)
}
