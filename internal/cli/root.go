package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "psyche",
	Short: "Belief lifecycle engine for a personal AI companion",
	Long: "Psyche watches conversational turns, extracts durable beliefs about the user, " +
		"and manages their lifecycle under a bounded processing budget.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
}
