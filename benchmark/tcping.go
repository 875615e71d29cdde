package benchmark

import (
	"context"
	"net"
	"net/netip"
	"sort"
	"strconv"
	"time"

	"github.com/edgeprobe/edgedns/utils/logctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TCPPinger ranks candidates by TCP connect latency without an external
// executable.
type TCPPinger struct {
	Logger      *zap.Logger
	Port        int
	Attempts    int
	Timeout     time.Duration
	Concurrency int
	MaxResults  int
	MaxLatency  time.Duration

	// ResultsDir is optional; when set an artifact file is written.
	ResultsDir string
}

var _ Prober = (*TCPPinger)(nil)

type pingStat struct {
	ip        netip.Addr
	successes int
	failures  int
	total     time.Duration
}

func (s pingStat) successRate() float64 {
	attempts := s.successes + s.failures
	if attempts == 0 {
		return 0
	}
	return float64(s.successes) / float64(attempts)
}

func (s pingStat) mean() time.Duration {
	if s.successes == 0 {
		return 0
	}
	return s.total / time.Duration(s.successes)
}

func (p *TCPPinger) Probe(ctx context.Context, region string, candidates []netip.Addr) ([]ProbeResult, error) {
	if len(candidates) == 0 {
		return nil, failed("no candidates to benchmark")
	}

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logctx.From(ctx, logger)

	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	logger.Info("starting tcp latency probe",
		zap.Int("candidates", len(candidates)),
		zap.Int("port", p.Port),
		zap.Int("attempts", p.Attempts))

	stats := make([]pingStat, len(candidates))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for idx, candidate := range candidates {
		idx, candidate := idx, candidate
		group.Go(func() error {
			stats[idx] = p.probeOne(groupCtx, candidate)
			return nil
		})
	}
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return nil, failed("probe interrupted: %s", err)
	}

	var qualified []pingStat
	for _, stat := range stats {
		if stat.successes == 0 {
			continue
		}
		if p.MaxLatency > 0 && stat.mean() > p.MaxLatency {
			continue
		}
		qualified = append(qualified, stat)
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		a, b := qualified[i], qualified[j]
		if a.successRate() != b.successRate() {
			return a.successRate() > b.successRate()
		}
		if a.mean() != b.mean() {
			return a.mean() < b.mean()
		}
		return a.ip.Less(b.ip)
	})

	if p.MaxResults > 0 && len(qualified) > p.MaxResults {
		qualified = qualified[:p.MaxResults]
	}

	results := make([]ProbeResult, len(qualified))
	for rank, stat := range qualified {
		results[rank] = ProbeResult{
			IP:       stat.ip,
			Rank:     rank,
			Latency:  stat.mean(),
			LossRate: 1 - stat.successRate(),
		}
	}

	logger.Info("tcp latency probe completed",
		zap.Int("qualified", len(results)),
		zap.Int("discarded", len(candidates)-len(results)))

	if p.ResultsDir != "" && len(results) > 0 {
		artifactPath, err := WriteArtifact(p.ResultsDir, region, results)
		if err != nil {
			logger.Warn("failed to write artifact file", zap.Error(err))
		} else {
			logger.Info("wrote artifact file", zap.String("path", artifactPath))
		}
	}

	return results, nil
}

func (p *TCPPinger) probeOne(ctx context.Context, ip netip.Addr) pingStat {
	stat := pingStat{ip: ip}

	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	address := net.JoinHostPort(ip.String(), strconv.Itoa(p.Port))
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			break
		}

		dialer := net.Dialer{Timeout: p.Timeout}
		start := time.Now()
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			stat.failures++
			continue
		}
		stat.total += time.Since(start)
		stat.successes++
		_ = conn.Close()
	}

	return stat
}
