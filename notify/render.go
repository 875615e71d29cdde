package notify

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/edgeprobe/edgedns/pipeline"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// RenderText formats a run report as a plain-text summary.
func RenderText(report *pipeline.RunReport) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "DNS update run finished\n")
	fmt.Fprintf(&sb, "Run:      %s\n", report.RunID)
	fmt.Fprintf(&sb, "Started:  %s\n", report.StartedAt.Format(timeLayout))
	fmt.Fprintf(&sb, "Finished: %s\n", report.FinishedAt.Format(timeLayout))
	fmt.Fprintf(&sb, "Duration: %s\n", report.Duration().Round(time.Second))

	if len(report.Outcomes) > 0 {
		fmt.Fprintf(&sb, "\nRegions (%d failed):\n", report.Failures())

		w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
		for _, outcome := range report.Outcomes {
			fmt.Fprintf(w, "  %s\t%s\t%s\n",
				outcome.Target.Region,
				outcome.Target.RecordName,
				outcome.Outcome)
		}
		_ = w.Flush()
	}

	if len(report.Log) > 0 {
		fmt.Fprintf(&sb, "\nLog:\n")
		for _, line := range report.Log {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
