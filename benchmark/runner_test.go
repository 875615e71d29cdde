package benchmark_test

import (
	"context"
	"net/netip"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/edgeprobe/edgedns/benchmark"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// the fake tool records its arguments next to itself, then writes the
// rows given in its body to the -o path
const fakeToolPrelude = `#!/bin/sh
echo "$*" > "$(dirname "$0")/args.txt"
out=""
in=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift 2 ;;
    -f) in="$2"; shift 2 ;;
    *) shift ;;
  esac
done
echo "testing $(wc -l < "$in") addresses"
`

func writeFakeTool(t *testing.T, body string) string {
	if runtime.GOOS == "windows" {
		t.Skip("fake benchmark tool requires a posix shell")
	}

	toolPath := filepath.Join(t.TempDir(), "CloudflareST")
	err := os.WriteFile(toolPath, []byte(fakeToolPrelude+body), 0755)
	require.NoError(t, err)
	return toolPath
}

func readArgs(t *testing.T, toolPath string) string {
	args, err := os.ReadFile(filepath.Join(filepath.Dir(toolPath), "args.txt"))
	require.NoError(t, err)
	return strings.TrimSpace(string(args))
}

func newRunner(t *testing.T, toolPath, resultsDir, paramFile string) *benchmark.Runner {
	runner, err := benchmark.NewRunner(&benchmark.RunnerOptions{
		Logger:         zaptest.NewLogger(t),
		ExecutablePath: toolPath,
		ResultsDir:     resultsDir,
		ParamFile:      paramFile,
	})
	require.NoError(t, err)
	return runner
}

var testCandidates = []netip.Addr{
	netip.MustParseAddr("1.1.1.1"),
	netip.MustParseAddr("2.2.2.2"),
	netip.MustParseAddr("3.3.3.3"),
}

func TestRunnerProbe(t *testing.T) {
	toolPath := writeFakeTool(t, `
printf 'IP,Sent,Received,Loss,Latency,Speed\n3.3.3.3,4,4,0.00,12.00,0.00\n1.1.1.1,4,4,0.00,30.00,0.00\n' > "$out"
`)
	resultsDir := filepath.Join(t.TempDir(), "ip")
	runner := newRunner(t, toolPath, resultsDir, filepath.Join(t.TempDir(), "missing.conf"))

	results, err := runner.Probe(context.Background(), "us", testCandidates)
	require.NoError(t, err)

	require.Equal(t, []netip.Addr{
		netip.MustParseAddr("3.3.3.3"),
		netip.MustParseAddr("1.1.1.1"),
	}, benchmark.Addrs(results))

	args := readArgs(t, toolPath)
	assert.Contains(t, args, "-o "+runner.ResultPath("us"))
	assert.True(t, strings.HasSuffix(args, "-n 200 -t 4 -tp 443 -tl 500 -sl 10 -dd"), args)

	artifact, err := os.ReadFile(benchmark.ArtifactPath(resultsDir, "us"))
	require.NoError(t, err)
	assert.Equal(t, "3.3.3.3#us\n1.1.1.1#us\n", string(artifact))
}

func TestRunnerUsesParamFile(t *testing.T) {
	toolPath := writeFakeTool(t, `
printf 'IP\n1.1.1.1\n' > "$out"
`)
	paramPath := filepath.Join(t.TempDir(), "config.conf")
	require.NoError(t, os.WriteFile(paramPath, []byte("n=50\ndd\n"), 0644))

	runner := newRunner(t, toolPath, t.TempDir(), paramPath)
	_, err := runner.Probe(context.Background(), "eu", testCandidates)
	require.NoError(t, err)

	require.True(t, strings.HasSuffix(readArgs(t, toolPath), "-n 50 -dd"))
}

func TestRunnerNonZeroExit(t *testing.T) {
	toolPath := writeFakeTool(t, `
printf 'IP\n1.1.1.1\n' > "$out"
exit 3
`)
	runner := newRunner(t, toolPath, t.TempDir(), "")

	_, err := runner.Probe(context.Background(), "us", testCandidates)
	require.Error(t, err)
	require.True(t, errors.Is(err, benchmark.ErrBenchmarkFailed))
	require.Contains(t, err.Error(), "code 3")
}

func TestRunnerMissingOutput(t *testing.T) {
	toolPath := writeFakeTool(t, `
exit 0
`)
	resultsDir := t.TempDir()
	runner := newRunner(t, toolPath, resultsDir, "")

	// a stale file from an earlier run must not be read back
	err := os.WriteFile(runner.ResultPath("us"), []byte("IP\n9.9.9.9\n"), 0644)
	require.NoError(t, err)

	_, err = runner.Probe(context.Background(), "us", testCandidates)
	require.True(t, errors.Is(err, benchmark.ErrBenchmarkFailed))
}

func TestRunnerEmptyOutput(t *testing.T) {
	toolPath := writeFakeTool(t, `
: > "$out"
`)
	runner := newRunner(t, toolPath, t.TempDir(), "")

	_, err := runner.Probe(context.Background(), "us", testCandidates)
	require.True(t, errors.Is(err, benchmark.ErrBenchmarkFailed))
}

func TestRunnerHeaderOnlyOutput(t *testing.T) {
	toolPath := writeFakeTool(t, `
printf 'IP,Latency\n' > "$out"
`)
	runner := newRunner(t, toolPath, t.TempDir(), "")

	_, err := runner.Probe(context.Background(), "us", testCandidates)
	require.True(t, errors.Is(err, benchmark.ErrBenchmarkFailed))
}

func TestRunnerMissingExecutable(t *testing.T) {
	runner := newRunner(t, filepath.Join(t.TempDir(), "CloudflareST"), t.TempDir(), "")

	_, err := runner.Probe(context.Background(), "us", testCandidates)
	require.True(t, errors.Is(err, benchmark.ErrBenchmarkFailed))
}

func TestRunnerNonExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}

	toolPath := filepath.Join(t.TempDir(), "CloudflareST")
	require.NoError(t, os.WriteFile(toolPath, []byte("#!/bin/sh\n"), 0644))

	runner := newRunner(t, toolPath, t.TempDir(), "")
	_, err := runner.Probe(context.Background(), "us", testCandidates)
	require.True(t, errors.Is(err, benchmark.ErrBenchmarkFailed))
}

func TestRunnerNoCandidates(t *testing.T) {
	runner := newRunner(t, "CloudflareST", t.TempDir(), "")

	_, err := runner.Probe(context.Background(), "us", nil)
	require.True(t, errors.Is(err, benchmark.ErrBenchmarkFailed))
}
