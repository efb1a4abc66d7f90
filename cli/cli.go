package cli

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/xrplwatch/valtrack/cli/amendments"
	"github.com/xrplwatch/valtrack/cli/tracker"
)

// RootCmd represents the root command of the valtrack CLI
var RootCmd = &cobra.Command{
	Use:   "valtrack",
	Short: "valtrack",
	Long:  `valtrack tracks a network's trusted validator list and its realtime validation votes.`,
}

// Execute executes the root command
func Execute(appName, version string) {
	RootCmd.Short = appName
	RootCmd.Version = version

	if err := RootCmd.Execute(); err != nil {
		log.Fatal("failed to execute root command", err)
	}
}

func init() {
	RootCmd.AddCommand(tracker.StartTrackerCmd)
	RootCmd.AddCommand(amendments.StartTallyCmd)
}
