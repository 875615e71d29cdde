package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Lists the resolved regions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		helper := CmdHelper{}
		ctx := helper.GetContext()

		targets := helper.GetTargets(ctx, nil)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "REGION\tRECORD\tSOURCE\n")
		for _, target := range targets {
			fmt.Fprintf(w, "%s\t%s\t%s\n", target.Region, target.RecordName, target.SourceURL)
		}
		_ = w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(regionsCmd)
}
