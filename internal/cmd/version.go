package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit %s, built %s, %s)\n",
			appIdentity.BinaryName,
			versionInfo.Version,
			versionInfo.Commit,
			versionInfo.BuildDate,
			runtime.Version(),
		)
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
