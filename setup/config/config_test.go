package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/ddnet/maproom/internal/httputil"
)

func TestRateLimitingVerifyRejectsNonPositive(t *testing.T) {
	r := RateLimiting{Enabled: true, BurstSize: 0, DelayMS: 500}
	var errs ConfigErrors
	r.Verify(&errs)
	assert.Contains(t, errs.Error(), "burst_size must be positive")
}

func TestRateLimitingVerifyPerEndpointOverride(t *testing.T) {
	r := RateLimiting{
		Enabled:   true,
		BurstSize: 5,
		DelayMS:   500,
		PerEndpointOverrides: map[string]httputil.RateLimitOverride{
			"/maps": {Threshold: -1, CooloffMS: 100},
		},
	}
	var errs ConfigErrors
	r.Verify(&errs)
	assert.Contains(t, errs.Error(), "per_endpoint_overrides./maps")
}

func TestRateLimitingVerifyExemptIPAddresses(t *testing.T) {
	r := RateLimiting{Enabled: true, BurstSize: 5, DelayMS: 500, ExemptIPAddresses: []string{"127.0.0.1", "192.168.1.0/24"}}
	var errs ConfigErrors
	r.Verify(&errs)
	assert.True(t, errs.IsEmpty())
}

func TestRateLimitingVerifyExemptIPAddressesInvalid(t *testing.T) {
	r := RateLimiting{Enabled: true, BurstSize: 5, DelayMS: 500, ExemptIPAddresses: []string{"not-an-ip"}}
	var errs ConfigErrors
	r.Verify(&errs)
	assert.Contains(t, errs.Error(), "invalid IP address or CIDR")
}

func TestRateLimitingYAMLRoundTrip(t *testing.T) {
	input := `
enabled: true
burst_size: 5
delay_ms: 500
per_endpoint_overrides:
  "/maps":
    threshold: 10
    cooloff_ms: 1000
`
	var r RateLimiting
	require.NoError(t, yaml.Unmarshal([]byte(input), &r))
	override, ok := r.PerEndpointOverrides["/maps"]
	require.True(t, ok)
	assert.Equal(t, int64(10), override.Threshold)
	assert.Equal(t, int64(1000), override.CooloffMS)
}

func TestConfigDefaultsFillsCaps(t *testing.T) {
	var cfg Config
	cfg.Defaults(DefaultOpts{})
	assert.Equal(t, 256, cfg.Caps.MaxMaps)
	assert.Equal(t, int64(64*1024), cfg.Caps.MaxMapSizeKiB)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestConfigVerifyRejectsEmptyMapDirectories(t *testing.T) {
	cfg := Config{BindAddress: "0.0.0.0:8080"}
	cfg.Defaults(DefaultOpts{})
	err := cfg.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "map_directories")
}

func TestConfigVerifyRejectsMismatchedTLSPaths(t *testing.T) {
	cfg := Config{BindAddress: "0.0.0.0:8080", MapDirectories: []string{"./maps"}, TLSCertPath: "cert.pem"}
	cfg.Defaults(DefaultOpts{})
	err := cfg.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tls_cert_path and tls_key_path")
}

func TestConfigVerifyAcceptsMinimalValidConfig(t *testing.T) {
	cfg := Config{BindAddress: "0.0.0.0:8080", MapDirectories: []string{"./maps"}}
	cfg.Defaults(DefaultOpts{})
	assert.NoError(t, cfg.Verify())
}
