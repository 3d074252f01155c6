package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/moolen/riskgraph/internal/netio"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "riskgraph %s (diagram format %s, %s)\n",
			Version, netio.FormatVersion, runtime.Version())
	},
}
