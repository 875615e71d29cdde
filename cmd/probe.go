package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/edgeprobe/edgedns/benchmark"
	"github.com/edgeprobe/edgedns/candidatesrc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var probeCmd = &cobra.Command{
	Use:   "probe region",
	Short: "Benchmarks a region's candidates without touching DNS",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		helper := CmdHelper{}
		logger := helper.GetLogger()
		ctx := helper.GetContext()

		target := helper.GetTarget(ctx, args[0])

		candidates, err := helper.GetCandidateClient(ctx).Fetch(ctx, target.SourceURL)
		if err != nil {
			logger.Fatal("failed to fetch candidates", zap.Error(err))
		}
		if len(candidates) == 0 {
			logger.Fatal("no candidates available")
		}

		addrs := candidatesrc.Addrs(candidates)
		logger.Info("fetched candidates", zap.Int("count", len(addrs)))

		results, err := helper.GetProber(ctx, logger).Probe(ctx, target.Region, addrs)
		if err != nil {
			logger.Fatal("benchmark failed", zap.Error(err))
		}

		results, _ = benchmark.RestrictTo(results, addrs)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "RANK\tIP\tLATENCY\tLOSS\tSPEED\n")
		for _, result := range results {
			fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%.2f\n",
				result.Rank,
				result.IP,
				result.Latency,
				result.LossRate,
				result.DownloadSpeed)
		}
		_ = w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
