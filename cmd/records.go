package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var recordsCmd = &cobra.Command{
	Use:   "records region",
	Short: "Lists the DNS records currently published for a region",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		helper := CmdHelper{}
		logger := helper.GetLogger()
		ctx := helper.GetContext()

		target := helper.GetTarget(ctx, args[0])

		records, err := helper.GetDNSProvider(ctx).ListRecords(ctx, target.RecordName)
		if err != nil {
			logger.Fatal("failed to list records", zap.Error(err))
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ID\tTYPE\tNAME\tCONTENT\tTTL\n")
		for _, record := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
				record.ID,
				record.Type,
				record.Name,
				record.Content,
				record.TTL)
		}
		_ = w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(recordsCmd)
}
