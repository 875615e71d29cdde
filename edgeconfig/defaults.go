package edgeconfig

import "time"

const (
	DEFAULT_CONFIG_PATH  = "edgedns.yaml"
	DEFAULT_DOTENV_NAME  = ".env"
	DEFAULT_DNS_PROVIDER = "cloudflare"
	DEFAULT_CF_ENDPOINT  = "https://api.cloudflare.com/client/v4"
	DEFAULT_AWS_REGION   = "us-east-1"

	DEFAULT_RECORD_TTL      = 60
	DEFAULT_SETTLE_INTERVAL = 5 * time.Second

	DEFAULT_BENCHMARK_MODE = "cloudflarest"
	DEFAULT_TOOL_DIR       = "speedtest"
	DEFAULT_TOOL_VERSION   = "v2.2.5"
	DEFAULT_RESULTS_DIR    = "ip"
	DEFAULT_PARAM_FILE     = "config.conf"

	DEFAULT_TCPPING_PORT        = 443
	DEFAULT_TCPPING_ATTEMPTS    = 4
	DEFAULT_TCPPING_TIMEOUT     = 1 * time.Second
	DEFAULT_TCPPING_CONCURRENCY = 32
	DEFAULT_TCPPING_MAX_RESULTS = 10
	DEFAULT_TCPPING_MAX_LATENCY = 500 * time.Millisecond

	DEFAULT_HTTP_TIMEOUT          = 30 * time.Second
	DEFAULT_RETRY_MAX_ATTEMPTS    = 5
	DEFAULT_RETRY_INITIAL_BACKOFF = 1 * time.Second
	DEFAULT_RETRY_MAX_BACKOFF     = 30 * time.Second
	DEFAULT_RETRY_MULTIPLIER      = 2.0

	DEFAULT_PARALLELISM = 1
)

// DEFAULT_RETRY_STATUSES are the response codes treated as transient.
var DEFAULT_RETRY_STATUSES = []int{500, 502, 503, 504}
