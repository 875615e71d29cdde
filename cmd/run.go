package cmd

import (
	"github.com/edgeprobe/edgedns/notify"
	"github.com/edgeprobe/edgedns/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Benchmarks every region and updates its DNS records",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		helper := CmdHelper{}
		logger := helper.GetLogger()
		ctx := helper.GetContext()
		config := helper.GetConfig(ctx)

		regions, _ := cmd.Flags().GetStringSlice("region")
		parallel, _ := cmd.Flags().GetInt("parallel")
		noNotify, _ := cmd.Flags().GetBool("no-notify")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		if parallel <= 0 {
			parallel = config.Run.Parallelism
		}

		targets := helper.GetTargets(ctx, regions)

		// only tool installation is captured here, region lines come from the run
		installCapture := pipeline.NewLogCapture()
		prober := helper.GetProber(ctx, installCapture.Attach(logger))

		var reconciler pipeline.Reconciler
		if !dryRun {
			reconciler = helper.GetReconciler(ctx)
		}

		orch, err := pipeline.NewOrchestrator(&pipeline.OrchestratorOptions{
			Logger:      logger,
			Fetcher:     helper.GetCandidateClient(ctx),
			Prober:      prober,
			Reconciler:  reconciler,
			Parallelism: parallel,
			DryRun:      dryRun,
		})
		if err != nil {
			logger.Fatal("failed to create orchestrator", zap.Error(err))
		}

		report := orch.Run(ctx, targets)
		report.Log = append(installCapture.Lines(), report.Log...)

		var notifier notify.Notifier = &notify.WriterNotifier{Out: cmd.OutOrStdout()}
		if !noNotify {
			notifier = helper.GetNotifier(ctx)
		}

		err = notifier.Notify(ctx, notify.RenderText(report))
		if err != nil {
			logger.Warn("failed to deliver run report", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSlice("region", nil, "Only process the given regions")
	runCmd.Flags().Int("parallel", 0, "Number of regions processed at once (defaults to the config value)")
	runCmd.Flags().Bool("no-notify", false, "Print the report instead of sending it")
	runCmd.Flags().Bool("dry-run", false, "Benchmark without touching DNS records")
}
