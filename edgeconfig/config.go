package edgeconfig

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Regions    Config_Regions    `yaml:"regions"`
	DNS        Config_DNS        `yaml:"dns"`
	Cloudflare Config_Cloudflare `yaml:"cloudflare"`
	Route53    Config_Route53    `yaml:"route53"`
	Benchmark  Config_Benchmark  `yaml:"benchmark"`
	HTTP       Config_HTTP       `yaml:"http"`
	Telegram   Config_Telegram   `yaml:"telegram"`
	Run        Config_Run        `yaml:"run"`
}

type Config_Regions struct {
	BaseDomain string `yaml:"base-domain"`
	BaseURL    string `yaml:"base-url"`

	// Bulk is a comma separated list of region identifiers.
	Bulk string `yaml:"bulk"`

	// Overrides maps a region identifier to either a full source URL or a
	// path relative to BaseURL.
	Overrides map[string]string `yaml:"overrides"`
}

type Config_DNS struct {
	Provider       string        `yaml:"provider"`
	TTL            int           `yaml:"ttl"`
	Proxied        bool          `yaml:"proxied"`
	SettleInterval time.Duration `yaml:"settle-interval"`
}

type Config_Cloudflare struct {
	Endpoint string `yaml:"endpoint"`
	APIToken string `yaml:"api-token"`
	ZoneID   string `yaml:"zone-id"`
}

type Config_Route53 struct {
	Region          string `yaml:"region"`
	HostedZoneID    string `yaml:"hosted-zone-id"`
	FromEnvironment bool   `yaml:"from-env"`
	AccessKey       string `yaml:"access-key"`
	SecretKey       string `yaml:"secret-key"`
	WaitForSync     bool   `yaml:"wait-for-sync"`
}

type Config_Benchmark struct {
	Mode        string `yaml:"mode"`
	ToolDir     string `yaml:"tool-dir"`
	ToolPath    string `yaml:"tool-path"`
	ToolVersion string `yaml:"tool-version"`
	AutoInstall bool   `yaml:"auto-install"`
	GitHubToken string `yaml:"github-token"`
	ResultsDir  string `yaml:"results-dir"`
	ParamFile   string `yaml:"param-file"`

	TCPPing Config_TCPPing `yaml:"tcping"`
}

type Config_TCPPing struct {
	Port        int           `yaml:"port"`
	Attempts    int           `yaml:"attempts"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
	MaxResults  int           `yaml:"max-results"`
	MaxLatency  time.Duration `yaml:"max-latency"`
}

type Config_HTTP struct {
	Timeout time.Duration `yaml:"timeout"`
	Retry   Config_Retry  `yaml:"retry"`
}

type Config_Retry struct {
	MaxAttempts    int           `yaml:"max-attempts"`
	InitialBackoff time.Duration `yaml:"initial-backoff"`
	MaxBackoff     time.Duration `yaml:"max-backoff"`
	Multiplier     float64       `yaml:"multiplier"`
	Statuses       []int         `yaml:"statuses"`
}

type Config_Telegram struct {
	BotToken string `yaml:"bot-token"`
	ChatID   string `yaml:"chat-id"`
}

type Config_Run struct {
	Parallelism int `yaml:"parallelism"`
}

func Default() *Config {
	return &Config{
		Regions: Config_Regions{
			Overrides: map[string]string{},
		},
		DNS: Config_DNS{
			Provider:       DEFAULT_DNS_PROVIDER,
			TTL:            DEFAULT_RECORD_TTL,
			Proxied:        false,
			SettleInterval: DEFAULT_SETTLE_INTERVAL,
		},
		Cloudflare: Config_Cloudflare{
			Endpoint: DEFAULT_CF_ENDPOINT,
		},
		Route53: Config_Route53{
			Region: DEFAULT_AWS_REGION,
		},
		Benchmark: Config_Benchmark{
			Mode:        DEFAULT_BENCHMARK_MODE,
			ToolDir:     DEFAULT_TOOL_DIR,
			ToolVersion: DEFAULT_TOOL_VERSION,
			ResultsDir:  DEFAULT_RESULTS_DIR,
			ParamFile:   DEFAULT_PARAM_FILE,
			TCPPing: Config_TCPPing{
				Port:        DEFAULT_TCPPING_PORT,
				Attempts:    DEFAULT_TCPPING_ATTEMPTS,
				Timeout:     DEFAULT_TCPPING_TIMEOUT,
				Concurrency: DEFAULT_TCPPING_CONCURRENCY,
				MaxResults:  DEFAULT_TCPPING_MAX_RESULTS,
				MaxLatency:  DEFAULT_TCPPING_MAX_LATENCY,
			},
		},
		HTTP: Config_HTTP{
			Timeout: DEFAULT_HTTP_TIMEOUT,
			Retry: Config_Retry{
				MaxAttempts:    DEFAULT_RETRY_MAX_ATTEMPTS,
				InitialBackoff: DEFAULT_RETRY_INITIAL_BACKOFF,
				MaxBackoff:     DEFAULT_RETRY_MAX_BACKOFF,
				Multiplier:     DEFAULT_RETRY_MULTIPLIER,
				Statuses:       append([]int(nil), DEFAULT_RETRY_STATUSES...),
			},
		},
		Run: Config_Run{
			Parallelism: DEFAULT_PARALLELISM,
		},
	}
}

// Load reads the yaml file at configPath on top of the defaults.  When the
// file does not exist the defaults are returned alongside an error wrapping
// os.ErrNotExist.
func Load(configPath string) (*Config, error) {
	config := Default()

	configBytes, err := os.ReadFile(configPath)
	if err != nil {
		return config, errors.Wrap(err, "failed to read config file")
	}

	err = yaml.Unmarshal(configBytes, config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	if config.Regions.Overrides == nil {
		config.Regions.Overrides = map[string]string{}
	}

	return config, nil
}

func Save(configPath string, config *Config) error {
	configBytes, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config file")
	}

	err = os.WriteFile(configPath, configBytes, 0600)
	if err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// Redacted returns a copy of the config with credentials masked, suitable
// for logging.
func (c *Config) Redacted() *Config {
	out := *c
	out.Cloudflare.APIToken = mask(c.Cloudflare.APIToken)
	out.Route53.AccessKey = mask(c.Route53.AccessKey)
	out.Route53.SecretKey = mask(c.Route53.SecretKey)
	out.Benchmark.GitHubToken = mask(c.Benchmark.GitHubToken)
	out.Telegram.BotToken = mask(c.Telegram.BotToken)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
