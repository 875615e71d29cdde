package benchmark

import (
	"context"
	"net/netip"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/edgeprobe/edgedns/utils/logctx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const maxLoggedOutputLines = 20

// Runner probes candidates by running the external benchmark executable
// once per region.  Result files are written below ResultsDir and are
// named after the region, so regions never share files.
type Runner struct {
	logger         *zap.Logger
	executablePath string
	resultsDir     string
	paramFile      string
	defaultParams  []string
}

var _ Prober = (*Runner)(nil)

type RunnerOptions struct {
	Logger         *zap.Logger
	ExecutablePath string
	ResultsDir     string

	// ParamFile is optional.  When it does not exist DefaultParams is used.
	ParamFile     string
	DefaultParams []string
}

func NewRunner(opts *RunnerOptions) (*Runner, error) {
	if opts.ExecutablePath == "" {
		return nil, errors.New("benchmark executable path is required")
	}
	if opts.ResultsDir == "" {
		return nil, errors.New("results directory is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	executablePath, err := filepath.Abs(opts.ExecutablePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve executable path")
	}

	resultsDir, err := filepath.Abs(opts.ResultsDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve results directory")
	}

	defaultParams := opts.DefaultParams
	if defaultParams == nil {
		defaultParams = DefaultParams()
	}

	return &Runner{
		logger:         logger,
		executablePath: executablePath,
		resultsDir:     resultsDir,
		paramFile:      opts.ParamFile,
		defaultParams:  defaultParams,
	}, nil
}

// ResultPath is the result file written by the tool for a region.
func (r *Runner) ResultPath(region string) string {
	return filepath.Join(r.resultsDir, region+".csv")
}

func (r *Runner) Probe(ctx context.Context, region string, candidates []netip.Addr) ([]ProbeResult, error) {
	logger := logctx.From(ctx, r.logger)

	if len(candidates) == 0 {
		return nil, failed("no candidates to benchmark")
	}

	err := r.checkExecutable()
	if err != nil {
		return nil, err
	}

	err = r.checkResultsDir()
	if err != nil {
		return nil, err
	}

	inputPath, err := writeInputFile(candidates)
	if err != nil {
		return nil, err
	}
	defer func() {
		removeErr := os.Remove(inputPath)
		if removeErr != nil {
			logger.Warn("failed to remove candidate input file",
				zap.String("path", inputPath),
				zap.Error(removeErr))
		}
	}()

	resultPath := r.ResultPath(region)

	// results from a previous run must never be mistaken for this run's
	err = os.Remove(resultPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, failed("failed to remove stale result file: %s", err)
	}

	params, err := r.resolveParams(logger)
	if err != nil {
		return nil, err
	}

	args := append([]string{"-f", inputPath, "-o", resultPath}, params...)

	logger.Info("starting benchmark",
		zap.Int("candidates", len(candidates)),
		zap.String("command", r.executablePath+" "+strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, r.executablePath, args...)
	cmd.Dir = filepath.Dir(r.executablePath)
	output, runErr := cmd.CombinedOutput()
	r.logOutput(logger, output)

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return nil, failed("benchmark exited with code %d", exitErr.ExitCode())
		}
		return nil, failed("failed to run benchmark: %s", runErr)
	}

	resultFile, err := os.Open(resultPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, failed("result file was not produced: %s", resultPath)
		}
		return nil, failed("failed to open result file: %s", err)
	}
	defer resultFile.Close()

	resultStat, err := resultFile.Stat()
	if err != nil {
		return nil, failed("failed to stat result file: %s", err)
	}
	if resultStat.Size() == 0 {
		return nil, failed("result file is empty: %s", resultPath)
	}

	results, skipped, err := ParseResults(resultFile)
	if err != nil {
		return nil, failed("failed to parse result file: %s", err)
	}
	if skipped > 0 {
		logger.Warn("skipped malformed result rows", zap.Int("count", skipped))
	}
	if len(results) == 0 {
		return nil, failed("result file contained no addresses")
	}

	logger.Info("benchmark completed",
		zap.Int("results", len(results)),
		zap.String("resultFile", resultPath))

	artifactPath, err := WriteArtifact(r.resultsDir, region, results)
	if err != nil {
		logger.Warn("failed to write artifact file", zap.Error(err))
	} else {
		logger.Info("wrote artifact file", zap.String("path", artifactPath))
	}

	return results, nil
}

func (r *Runner) checkExecutable() error {
	stat, err := os.Stat(r.executablePath)
	if err != nil {
		return failed("benchmark executable is unavailable: %s", err)
	}

	if !stat.Mode().IsRegular() || stat.Size() == 0 {
		return failed("benchmark executable is invalid: %s", r.executablePath)
	}

	if runtime.GOOS != "windows" && stat.Mode().Perm()&0111 == 0 {
		return failed("benchmark executable is not executable: %s", r.executablePath)
	}

	return nil
}

func (r *Runner) checkResultsDir() error {
	err := os.MkdirAll(r.resultsDir, 0755)
	if err != nil {
		return failed("failed to create results directory: %s", err)
	}

	probeFile, err := os.CreateTemp(r.resultsDir, ".write-check-*")
	if err != nil {
		return failed("results directory is not writable: %s", err)
	}
	_ = probeFile.Close()
	_ = os.Remove(probeFile.Name())

	return nil
}

func (r *Runner) resolveParams(logger *zap.Logger) ([]string, error) {
	if r.paramFile == "" {
		logger.Info("no parameter file configured, using default parameters")
		return r.defaultParams, nil
	}

	params, err := ParseParamFile(r.paramFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("parameter file not found, using default parameters",
				zap.String("path", r.paramFile))
			return r.defaultParams, nil
		}
		return nil, failed("failed to load parameter file: %s", err)
	}

	logger.Info("using parameter file", zap.String("path", r.paramFile))
	return params, nil
}

func (r *Runner) logOutput(logger *zap.Logger, output []byte) {
	lines := strings.FieldsFunc(string(output), func(c rune) bool {
		return c == '\n' || c == '\r'
	})

	var kept []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}

	if len(kept) > maxLoggedOutputLines {
		logger.Debug("benchmark output truncated", zap.Int("lines", len(kept)))
		kept = kept[len(kept)-maxLoggedOutputLines:]
	}

	for _, line := range kept {
		logger.Info("benchmark output", zap.String("line", line))
	}
}

func writeInputFile(candidates []netip.Addr) (string, error) {
	inputFile, err := os.CreateTemp("", "edgedns-candidates-*.txt")
	if err != nil {
		return "", failed("failed to create candidate input file: %s", err)
	}

	var sb strings.Builder
	for _, candidate := range candidates {
		sb.WriteString(candidate.String())
		sb.WriteString("\n")
	}

	_, err = inputFile.WriteString(sb.String())
	closeErr := inputFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(inputFile.Name())
		return "", failed("failed to write candidate input file: %s", err)
	}

	return inputFile.Name(), nil
}
