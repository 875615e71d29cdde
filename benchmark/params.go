package benchmark

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// DefaultParams are passed to the benchmark tool when no parameter file is
// present: 200 latency threads, 4 samples per address, port 443, a 500ms
// latency ceiling, 10 results and no download test.
func DefaultParams() []string {
	return []string{
		"-n", "200",
		"-t", "4",
		"-tp", "443",
		"-tl", "500",
		"-sl", "10",
		"-dd",
	}
}

// ParseParamFile translates a line oriented parameter file into command
// line flags.  `key=value` lines become `-key value`, bare lines become
// `-key`.  Blank lines and lines starting with # are ignored.
func ParseParamFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open parameter file")
	}
	defer file.Close()

	var params []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, hasValue := strings.Cut(line, "=")
		key = "-" + strings.TrimLeft(strings.TrimSpace(key), "-")
		if key == "-" {
			continue
		}

		if hasValue {
			params = append(params, key, strings.TrimSpace(value))
		} else {
			params = append(params, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read parameter file")
	}

	return params, nil
}
