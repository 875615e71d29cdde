package cmd

import (
	"fmt"

	"github.com/edgeprobe/edgedns/contrib/buildversion"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Gets the version of edgedns",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info := buildversion.GetInfo("github.com/edgeprobe/edgedns")
		fmt.Printf("%s\n", info)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
