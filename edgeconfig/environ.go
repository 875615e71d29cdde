package edgeconfig

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	regionOverridePrefix = "API_URL_"
	regionBulkKey        = "API_URL_REGIONS"
)

// ParseEnviron turns KEY=VALUE pairs into a map.  Later entries win, so
// callers list lower precedence sources first.
func ParseEnviron(environ []string) map[string]string {
	vars := make(map[string]string, len(environ))
	for _, entry := range environ {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			continue
		}
		vars[key] = value
	}
	return vars
}

// ReadDotEnv reads a .env style file and returns its entries as KEY=VALUE
// pairs.  Comments, blank lines and an optional `export ` prefix are
// tolerated, and surrounding quotes are removed from values.
func ReadDotEnv(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open dotenv file")
	}
	defer file.Close()

	var entries []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		line = strings.TrimPrefix(line, "export ")
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		entries = append(entries, key+"="+value)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read dotenv file")
	}

	return entries, nil
}

// ApplyEnviron overlays environment variables onto the config.  This is the
// only place the process environment is interpreted; every per-region
// API_URL_<REGION> key becomes an explicit entry in Regions.Overrides.
func ApplyEnviron(config *Config, environ []string) error {
	vars := ParseEnviron(environ)

	setString := func(key string, dest *string) {
		if value, ok := vars[key]; ok && value != "" {
			*dest = value
		}
	}

	setString("CF_API_TOKEN", &config.Cloudflare.APIToken)
	setString("CF_ZONE_ID", &config.Cloudflare.ZoneID)
	setString("CF_BASE_DOMAIN", &config.Regions.BaseDomain)
	setString("API_BASE_URL", &config.Regions.BaseURL)
	setString(regionBulkKey, &config.Regions.Bulk)
	setString("DNS_PROVIDER", &config.DNS.Provider)
	setString("AWS_REGION", &config.Route53.Region)
	setString("ROUTE53_ZONE_ID", &config.Route53.HostedZoneID)
	setString("SPEEDTEST_CONFIG", &config.Benchmark.ParamFile)
	setString("SPEEDTEST_PATH", &config.Benchmark.ToolPath)
	setString("BENCHMARK_MODE", &config.Benchmark.Mode)
	setString("RESULTS_DIR", &config.Benchmark.ResultsDir)
	setString("GITHUB_TOKEN", &config.Benchmark.GitHubToken)
	setString("TG_BOT_TOKEN", &config.Telegram.BotToken)
	setString("TG_CHAT_ID", &config.Telegram.ChatID)

	if value, ok := vars["DNS_TTL"]; ok && value != "" {
		ttl, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrap(err, "failed to parse DNS_TTL")
		}
		config.DNS.TTL = ttl
	}

	if config.Regions.Overrides == nil {
		config.Regions.Overrides = map[string]string{}
	}

	for key, value := range vars {
		if key == regionBulkKey || !strings.HasPrefix(key, regionOverridePrefix) {
			continue
		}
		if value == "" {
			continue
		}

		region := strings.ToLower(strings.TrimPrefix(key, regionOverridePrefix))
		if region == "" {
			continue
		}

		config.Regions.Overrides[region] = value
	}

	return nil
}
