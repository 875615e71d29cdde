package edgeconfig_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgeprobe/edgedns/edgeconfig"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	config, err := edgeconfig.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist))
	require.NotNil(t, config)
	require.Equal(t, edgeconfig.DEFAULT_SETTLE_INTERVAL, config.DNS.SettleInterval)
	require.Equal(t, 5, config.HTTP.Retry.MaxAttempts)
}

func TestLoadMergesDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "edgedns.yaml")
	err := os.WriteFile(configPath, []byte(`
regions:
  base-domain: example.com
  base-url: https://x
  bulk: us,eu
  overrides:
    eu: https://x/eu2
dns:
  settle-interval: 2s
http:
  retry:
    max-attempts: 3
`), 0600)
	require.NoError(t, err)

	config, err := edgeconfig.Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "example.com", config.Regions.BaseDomain)
	assert.Equal(t, "us,eu", config.Regions.Bulk)
	assert.Equal(t, "https://x/eu2", config.Regions.Overrides["eu"])
	assert.Equal(t, 2*time.Second, config.DNS.SettleInterval)
	assert.Equal(t, 3, config.HTTP.Retry.MaxAttempts)
	assert.Equal(t, edgeconfig.DEFAULT_RETRY_MAX_BACKOFF, config.HTTP.Retry.MaxBackoff)
	assert.Equal(t, edgeconfig.DEFAULT_RECORD_TTL, config.DNS.TTL)
}

func TestSaveRoundTrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "edgedns.yaml")

	config := edgeconfig.Default()
	config.Regions.BaseDomain = "example.org"
	require.NoError(t, edgeconfig.Save(configPath, config))

	loaded, err := edgeconfig.Load(configPath)
	require.NoError(t, err)
	require.Equal(t, "example.org", loaded.Regions.BaseDomain)
}

func TestApplyEnviron(t *testing.T) {
	config := edgeconfig.Default()
	config.Regions.Overrides["jp"] = "/from-file"

	err := edgeconfig.ApplyEnviron(config, []string{
		"CF_API_TOKEN=token",
		"CF_ZONE_ID=zone",
		"CF_BASE_DOMAIN=example.com",
		"API_BASE_URL=api.example.net",
		"API_URL_REGIONS=us,eu",
		"API_URL_EU=https://x/eu2",
		"API_URL_JP=/jp-env",
		"API_URL_EMPTY=",
		"DNS_TTL=120",
		"UNRELATED=1",
	})
	require.NoError(t, err)

	assert.Equal(t, "token", config.Cloudflare.APIToken)
	assert.Equal(t, "zone", config.Cloudflare.ZoneID)
	assert.Equal(t, "example.com", config.Regions.BaseDomain)
	assert.Equal(t, "api.example.net", config.Regions.BaseURL)
	assert.Equal(t, "us,eu", config.Regions.Bulk)
	assert.Equal(t, 120, config.DNS.TTL)
	assert.Equal(t, map[string]string{
		"eu": "https://x/eu2",
		"jp": "/jp-env",
	}, config.Regions.Overrides)
}

func TestApplyEnvironBadTTL(t *testing.T) {
	err := edgeconfig.ApplyEnviron(edgeconfig.Default(), []string{"DNS_TTL=soon"})
	require.Error(t, err)
}

func TestReadDotEnvPrecedence(t *testing.T) {
	dotEnvPath := filepath.Join(t.TempDir(), ".env")
	err := os.WriteFile(dotEnvPath, []byte(`
# comment
export CF_BASE_DOMAIN="from-file.com"
CF_ZONE_ID='file-zone'
BROKEN LINE
`), 0600)
	require.NoError(t, err)

	entries, err := edgeconfig.ReadDotEnv(dotEnvPath)
	require.NoError(t, err)
	require.Equal(t, []string{"CF_BASE_DOMAIN=from-file.com", "CF_ZONE_ID=file-zone"}, entries)

	vars := edgeconfig.ParseEnviron(append(entries, "CF_ZONE_ID=process-zone"))
	require.Equal(t, "process-zone", vars["CF_ZONE_ID"])
	require.Equal(t, "from-file.com", vars["CF_BASE_DOMAIN"])
}

func TestRedacted(t *testing.T) {
	config := edgeconfig.Default()
	config.Cloudflare.APIToken = "secret"

	redacted := config.Redacted()
	require.Equal(t, "********", redacted.Cloudflare.APIToken)
	require.Equal(t, "secret", config.Cloudflare.APIToken)
}
