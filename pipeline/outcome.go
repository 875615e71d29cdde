package pipeline

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/edgeprobe/edgedns/regiondef"
	"github.com/google/uuid"
)

type OutcomeKind string

const (
	OutcomeSucceeded              OutcomeKind = "succeeded"
	OutcomeSkippedNoCandidates    OutcomeKind = "skipped-no-candidates"
	OutcomeSkippedBenchmarkFailed OutcomeKind = "skipped-benchmark-failed"
	OutcomeFailedReconcile        OutcomeKind = "failed-reconcile"
	OutcomeDryRun                 OutcomeKind = "dry-run"
)

// Outcome is the terminal state of one region.  Published is set for
// succeeded and dry-run outcomes, Reason for failed-reconcile.
type Outcome struct {
	Kind      OutcomeKind
	Published int
	Reason    string
}

func Succeeded(published int) Outcome {
	return Outcome{Kind: OutcomeSucceeded, Published: published}
}

func SkippedNoCandidates() Outcome {
	return Outcome{Kind: OutcomeSkippedNoCandidates}
}

func SkippedBenchmarkFailed() Outcome {
	return Outcome{Kind: OutcomeSkippedBenchmarkFailed}
}

func FailedReconcile(reason string) Outcome {
	return Outcome{Kind: OutcomeFailedReconcile, Reason: reason}
}

func DryRun(selected int) Outcome {
	return Outcome{Kind: OutcomeDryRun, Published: selected}
}

func (o Outcome) IsFailure() bool {
	return o.Kind != OutcomeSucceeded && o.Kind != OutcomeDryRun
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSucceeded:
		return fmt.Sprintf("Succeeded(%d)", o.Published)
	case OutcomeSkippedNoCandidates:
		return "SkippedNoCandidates"
	case OutcomeSkippedBenchmarkFailed:
		return "SkippedBenchmarkFailed"
	case OutcomeFailedReconcile:
		return fmt.Sprintf("FailedReconcile(%s)", o.Reason)
	case OutcomeDryRun:
		return fmt.Sprintf("DryRun(%d)", o.Published)
	}
	return string(o.Kind)
}

type RegionOutcome struct {
	Target  regiondef.RegionTarget
	Outcome Outcome

	// Selected is the ranked address list chosen by the benchmark, if any.
	Selected []netip.Addr
}

type RunReport struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []RegionOutcome
	Log        []string
}

func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failures returns the number of regions whose outcome is a failure.
func (r *RunReport) Failures() int {
	count := 0
	for _, outcome := range r.Outcomes {
		if outcome.Outcome.IsFailure() {
			count++
		}
	}
	return count
}
