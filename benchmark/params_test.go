package benchmark_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/edgeprobe/edgedns/benchmark"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestParseParamFile(t *testing.T) {
	paramPath := filepath.Join(t.TempDir(), "config.conf")
	err := os.WriteFile(paramPath, []byte(`
# latency threads
n=500
t = 8
-tp=8443
dd

tl=300
`), 0644)
	require.NoError(t, err)

	params, err := benchmark.ParseParamFile(paramPath)
	require.NoError(t, err)
	require.Equal(t, []string{
		"-n", "500",
		"-t", "8",
		"-tp", "8443",
		"-dd",
		"-tl", "300",
	}, params)
}

func TestParseParamFileMissing(t *testing.T) {
	_, err := benchmark.ParseParamFile(filepath.Join(t.TempDir(), "nope.conf"))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDefaultParams(t *testing.T) {
	require.Equal(t, []string{"-n", "200", "-t", "4", "-tp", "443", "-tl", "500", "-sl", "10", "-dd"},
		benchmark.DefaultParams())
}
