package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X github.com/joshuafuller/udpurl/cmd/udpcat/cmd.udpcatVersion=x.y.z"
var udpcatVersion = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the udpcat version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "udpcat version %s\n", udpcatVersion)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
