package main

import (
	"fmt"

	"factlens/internal/common"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s v%s (build: %s, commit: %s)\n",
			serviceName, common.GetVersion(), common.GetBuild(), common.GetGitCommit())
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file and exit",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		// setup already loaded and validated the configuration
		common.PrintSuccess(cmd.OutOrStdout(), "Configuration is valid")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(validateCmd)
}
