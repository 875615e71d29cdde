package benchmark

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ParseResults reads the benchmark tool's result file: a header row and
// then one comma separated row per address, best first.  Row order is the
// rank order.  Rows whose first field is not an IP address are skipped and
// counted in the second return value.
func ParseResults(r io.Reader) ([]ProbeResult, int, error) {
	csvRdr := csv.NewReader(r)
	csvRdr.FieldsPerRecord = -1
	csvRdr.LazyQuotes = true
	csvRdr.TrimLeadingSpace = true

	var results []ProbeResult
	skipped := 0
	isHeader := true

	for {
		record, err := csvRdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to read result row")
		}

		if isHeader {
			isHeader = false
			continue
		}

		if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
			continue
		}

		ip, err := netip.ParseAddr(strings.TrimSpace(record[0]))
		if err != nil {
			skipped++
			continue
		}

		result := ProbeResult{
			IP:   ip,
			Rank: len(results),
		}
		if len(record) > 3 {
			result.LossRate, _ = parseFloat(record[3])
		}
		if len(record) > 4 {
			if ms, ok := parseFloat(record[4]); ok {
				result.Latency = time.Duration(ms * float64(time.Millisecond))
			}
		}
		if len(record) > 5 {
			result.DownloadSpeed, _ = parseFloat(record[5])
		}

		results = append(results, result)
	}

	return results, skipped, nil
}

func parseFloat(s string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ArtifactPath is the path of the plain text companion file for a region.
func ArtifactPath(resultsDir, region string) string {
	return filepath.Join(resultsDir, region+".txt")
}

// WriteArtifact writes one `ip#region` line per result for other tooling.
func WriteArtifact(resultsDir, region string, results []ProbeResult) (string, error) {
	var sb strings.Builder
	for _, result := range results {
		fmt.Fprintf(&sb, "%s#%s\n", result.IP, region)
	}

	artifactPath := ArtifactPath(resultsDir, region)
	err := os.WriteFile(artifactPath, []byte(sb.String()), 0644)
	if err != nil {
		return "", errors.Wrap(err, "failed to write artifact file")
	}

	return artifactPath, nil
}
