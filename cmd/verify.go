package cmd

import (
	"fmt"

	"github.com/edgeprobe/edgedns/dnsprovider"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Checks that the DNS provider credentials work",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		helper := CmdHelper{}
		logger := helper.GetLogger()
		ctx := helper.GetContext()

		prov := helper.GetDNSProvider(ctx)

		if cfProv, ok := prov.(*dnsprovider.CloudflareProvider); ok {
			resp, err := cfProv.Controller.VerifyToken(ctx)
			if err != nil {
				logger.Fatal("failed to verify cloudflare token", zap.Error(err))
			}
			fmt.Printf("cloudflare token %s is %s\n", resp.ID, resp.Status)
		}

		for _, target := range helper.GetTargets(ctx, nil) {
			records, err := prov.ListRecords(ctx, target.RecordName)
			if err != nil {
				logger.Fatal("failed to list records", zap.String("record", target.RecordName), zap.Error(err))
			}
			fmt.Printf("%s: %d records\n", target.RecordName, len(records))
		}
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
