package pipeline

import (
	"context"
	"net/netip"
	"time"

	"github.com/edgeprobe/edgedns/benchmark"
	"github.com/edgeprobe/edgedns/candidatesrc"
	"github.com/edgeprobe/edgedns/reconcile"
	"github.com/edgeprobe/edgedns/regiondef"
	"github.com/edgeprobe/edgedns/utils/logctx"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type CandidateFetcher interface {
	Fetch(ctx context.Context, sourceURL string) ([]candidatesrc.Candidate, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, recordName string, desired []netip.Addr) (*reconcile.Result, error)
}

var _ CandidateFetcher = (*candidatesrc.Client)(nil)
var _ Reconciler = (*reconcile.Reconciler)(nil)

type Orchestrator struct {
	logger      *zap.Logger
	fetcher     CandidateFetcher
	prober      benchmark.Prober
	reconciler  Reconciler
	parallelism int
	dryRun      bool
	now         func() time.Time
}

type OrchestratorOptions struct {
	Logger     *zap.Logger
	Fetcher    CandidateFetcher
	Prober     benchmark.Prober
	Reconciler Reconciler

	// Parallelism bounds how many regions are processed at once.  Values
	// below 1 mean sequential processing.
	Parallelism int

	// DryRun stops each region after the benchmark, leaving DNS untouched.
	DryRun bool
}

func NewOrchestrator(opts *OrchestratorOptions) (*Orchestrator, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("candidate fetcher is required")
	}
	if opts.Prober == nil {
		return nil, errors.New("prober is required")
	}
	if opts.Reconciler == nil && !opts.DryRun {
		return nil, errors.New("reconciler is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	return &Orchestrator{
		logger:      logger,
		fetcher:     opts.Fetcher,
		prober:      opts.Prober,
		reconciler:  opts.Reconciler,
		parallelism: parallelism,
		dryRun:      opts.DryRun,
		now:         time.Now,
	}, nil
}

// Run processes every target and always returns a report.  A region's
// failure never stops the others.  Outcomes and log lines follow the order
// of targets even when regions are processed concurrently.
func (o *Orchestrator) Run(ctx context.Context, targets []regiondef.RegionTarget) *RunReport {
	report := &RunReport{
		RunID:     uuid.New(),
		StartedAt: o.now(),
		Outcomes:  make([]RegionOutcome, len(targets)),
	}

	runCapture := NewLogCapture()
	runLogger := runCapture.Attach(o.logger).With(zap.String("run", report.RunID.String()))
	runLogger.Info("starting run",
		zap.Int("regions", len(targets)),
		zap.Int("parallelism", o.parallelism),
		zap.Bool("dry-run", o.dryRun))

	captures := make([]*LogCapture, len(targets))

	var eg errgroup.Group
	eg.SetLimit(o.parallelism)

	for targetIdx, target := range targets {
		targetIdx, target := targetIdx, target
		captures[targetIdx] = NewLogCapture()

		eg.Go(func() error {
			logger := captures[targetIdx].Attach(o.logger).
				With(zap.String("region", target.Region))
			report.Outcomes[targetIdx] = o.processRegion(ctx, logger, target)
			return nil
		})
	}

	_ = eg.Wait()

	report.FinishedAt = o.now()

	report.Log = append(report.Log, runCapture.Lines()...)
	for _, capture := range captures {
		report.Log = append(report.Log, capture.Lines()...)
	}

	finishCapture := NewLogCapture()
	finishCapture.Attach(o.logger).Info("run finished",
		zap.Int("failures", report.Failures()),
		zap.Duration("duration", report.Duration()))
	report.Log = append(report.Log, finishCapture.Lines()...)

	return report
}

func (o *Orchestrator) processRegion(
	ctx context.Context,
	logger *zap.Logger,
	target regiondef.RegionTarget,
) RegionOutcome {
	outcome := RegionOutcome{Target: target}

	// components log through ctx so their lines land in this region's capture
	ctx = logctx.With(ctx, logger)

	logger.Info("fetching candidates", zap.String("source", target.SourceURL))

	candidates, err := o.fetcher.Fetch(ctx, target.SourceURL)
	if err != nil {
		logger.Warn("failed to fetch candidates", zap.Error(err))
		outcome.Outcome = SkippedNoCandidates()
		return outcome
	}
	if len(candidates) == 0 {
		logger.Warn("no candidates available")
		outcome.Outcome = SkippedNoCandidates()
		return outcome
	}

	candidateAddrs := candidatesrc.Addrs(candidates)
	logger.Info("fetched candidates", zap.Int("count", len(candidateAddrs)))

	results, err := o.prober.Probe(ctx, target.Region, candidateAddrs)
	if err != nil {
		logger.Warn("benchmark failed", zap.Error(err))
		outcome.Outcome = SkippedBenchmarkFailed()
		return outcome
	}

	results, dropped := benchmark.RestrictTo(results, candidateAddrs)
	if dropped > 0 {
		logger.Warn("benchmark returned addresses outside the candidate set",
			zap.Int("dropped", dropped))
	}
	if len(results) == 0 {
		logger.Warn("benchmark selected no addresses")
		outcome.Outcome = SkippedBenchmarkFailed()
		return outcome
	}

	outcome.Selected = benchmark.Addrs(results)
	logger.Info("benchmark selected addresses",
		zap.Strings("ips", lo.Map(outcome.Selected, func(addr netip.Addr, _ int) string {
			return addr.String()
		})))

	if o.dryRun {
		logger.Info("dry run, leaving dns untouched", zap.String("record", target.RecordName))
		outcome.Outcome = DryRun(len(outcome.Selected))
		return outcome
	}

	res, err := o.reconciler.Reconcile(ctx, target.RecordName, outcome.Selected)
	if res != nil && len(res.Warnings) > 0 {
		logger.Warn("dns writes failed",
			zap.Strings("writes", lo.Map(res.Warnings, func(warning *reconcile.ProviderWriteError, _ int) string {
				return string(warning.Op) + " " + warning.Record.Content
			})))
	}
	if err != nil {
		logger.Error("failed to update dns records", zap.Error(err))
		outcome.Outcome = FailedReconcile(err.Error())
		return outcome
	}

	logger.Info("updated dns records",
		zap.String("record", target.RecordName),
		zap.Int("deleted", res.Deleted),
		zap.Int("published", len(res.Published)))
	outcome.Outcome = Succeeded(len(res.Published))
	return outcome
}
