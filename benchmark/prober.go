package benchmark

import (
	"context"
	"net/netip"
	"time"

	"github.com/pkg/errors"
)

// ErrBenchmarkFailed wraps every regional benchmark failure.
var ErrBenchmarkFailed = errors.New("benchmark failed")

// ProbeResult is one ranked address.  Rank 0 is the best address.  The
// measurement fields are informational and may be zero when the prober
// does not report them.
type ProbeResult struct {
	IP            netip.Addr
	Rank          int
	Latency       time.Duration
	LossRate      float64
	DownloadSpeed float64
}

// Prober ranks candidate addresses for a region, best first.  An empty
// result means no candidate qualified.
type Prober interface {
	Probe(ctx context.Context, region string, candidates []netip.Addr) ([]ProbeResult, error)
}

// Addrs returns the addresses of the results in rank order.
func Addrs(results []ProbeResult) []netip.Addr {
	addrs := make([]netip.Addr, len(results))
	for i, result := range results {
		addrs[i] = result.IP
	}
	return addrs
}

// RestrictTo drops results whose address is not in candidates and renumbers
// the remaining ranks.  The second value is the number of dropped results.
func RestrictTo(results []ProbeResult, candidates []netip.Addr) ([]ProbeResult, int) {
	allowed := make(map[netip.Addr]bool, len(candidates))
	for _, candidate := range candidates {
		allowed[candidate] = true
	}

	var out []ProbeResult
	dropped := 0
	for _, result := range results {
		if !allowed[result.IP] {
			dropped++
			continue
		}
		result.Rank = len(out)
		out = append(out, result)
	}

	return out, dropped
}

func failed(format string, args ...interface{}) error {
	return errors.Wrapf(ErrBenchmarkFailed, format, args...)
}
