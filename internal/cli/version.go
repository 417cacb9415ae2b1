package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tessierh/psyche/internal/buildconfig"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("psyche %s (%s)\n", buildconfig.Version(), buildconfig.Commit())
	},
}
