// Package config loads and validates the server's configuration: a YAML
// file merged with CLI flag overrides, following the Defaults()/Verify()
// idiom the teacher repo uses throughout its own setup/config package.
package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/ddnet/maproom/internal/httputil"
)

// ConfigErrors accumulates human-readable problems found during Verify.
// A non-empty ConfigErrors is rendered as one message per line and the
// server refuses to start.
type ConfigErrors []string

func (e *ConfigErrors) Add(message string) {
	*e = append(*e, message)
}

func (e ConfigErrors) Error() string {
	msg := ""
	for i, s := range e {
		if i > 0 {
			msg += "\n"
		}
		msg += s
	}
	return msg
}

func (e ConfigErrors) IsEmpty() bool { return len(e) == 0 }

func checkNotEmpty(errs *ConfigErrors, key, value string) {
	if value == "" {
		errs.Add(fmt.Sprintf("%s must not be empty", key))
	}
}

func checkPositive(errs *ConfigErrors, key string, value int64) {
	if value <= 0 {
		errs.Add(fmt.Sprintf("%s must be positive", key))
	}
}

// DefaultOpts mirrors the teacher's DefaultOpts: Generate is set when
// producing a sample config file rather than loading one for real use.
type DefaultOpts struct {
	Generate bool
}

// Logging is the structured-logging section of the config.
type Logging struct {
	Level     string `yaml:"level"`
	FilePath  string `yaml:"file_path,omitempty"`
	SentryDSN string `yaml:"sentry_dsn,omitempty"`
}

func (l *Logging) Defaults() {
	if l.Level == "" {
		l.Level = "info"
	}
}

func (l *Logging) Verify(errs *ConfigErrors) {
	switch l.Level {
	case "panic", "fatal", "error", "warn", "info", "debug", "trace":
	default:
		errs.Add(fmt.Sprintf("logging.level %q is not a valid level", l.Level))
	}
}

// RateLimiting is the YAML-facing mirror of httputil.RateLimitConfig,
// kept as its own type so the config package doesn't need to know about
// httputil's internal limiterConfig bookkeeping.
type RateLimiting struct {
	Enabled              bool                                      `yaml:"enabled"`
	BurstSize            int64                                     `yaml:"burst_size"`
	DelayMS              int64                                     `yaml:"delay_ms"`
	ExemptIPAddresses    []string                                  `yaml:"exempt_ip_addresses"`
	PerEndpointOverrides map[string]httputil.RateLimitOverride `yaml:"per_endpoint_overrides"`
}

func (r *RateLimiting) Defaults() {
	r.Enabled = true
	r.BurstSize = 5
	r.DelayMS = 500
}

func (r *RateLimiting) Verify(errs *ConfigErrors) {
	if !r.Enabled {
		return
	}
	checkPositive(errs, "rate_limiting.burst_size", r.BurstSize)
	checkPositive(errs, "rate_limiting.delay_ms", r.DelayMS)
	for _, ip := range r.ExemptIPAddresses {
		if _, _, err := net.ParseCIDR(ip); err != nil {
			if net.ParseIP(ip) == nil {
				errs.Add(fmt.Sprintf("invalid IP address or CIDR in rate_limiting.exempt_ip_addresses: %s", ip))
			}
		}
	}
	for name, override := range r.PerEndpointOverrides {
		if override.Threshold <= 0 || override.CooloffMS <= 0 {
			errs.Add(fmt.Sprintf("rate_limiting.per_endpoint_overrides.%s: both threshold and cooloff_ms must be positive", name))
		}
	}
}

// ToHTTPConfig converts the YAML section into the shape httputil.NewRateLimits wants.
func (r RateLimiting) ToHTTPConfig() httputil.RateLimitConfig {
	return httputil.RateLimitConfig{
		Enabled:              r.Enabled,
		Threshold:            r.BurstSize,
		CooloffMS:            r.DelayMS,
		ExemptIPAddresses:    r.ExemptIPAddresses,
		PerEndpointOverrides: r.PerEndpointOverrides,
	}
}

// Caps holds the capacity limits spec.md §6 calls out on the CLI surface.
type Caps struct {
	MaxMaps         int   `yaml:"max_maps"`
	MaxMapSizeKiB   int64 `yaml:"max_map_size_kib"`
	MaxSessions     int   `yaml:"max_sessions"`
	BodySizeMaxMiB  int64 `yaml:"body_size_max_mib"`
}

func (c *Caps) Defaults() {
	if c.MaxMaps == 0 {
		c.MaxMaps = 256
	}
	if c.MaxMapSizeKiB == 0 {
		c.MaxMapSizeKiB = 64 * 1024
	}
	if c.MaxSessions == 0 {
		c.MaxSessions = 1024
	}
	if c.BodySizeMaxMiB == 0 {
		c.BodySizeMaxMiB = 8
	}
}

func (c *Caps) Verify(errs *ConfigErrors) {
	checkPositive(errs, "caps.max_maps", int64(c.MaxMaps))
	checkPositive(errs, "caps.max_map_size_kib", c.MaxMapSizeKiB)
	checkPositive(errs, "caps.max_sessions", int64(c.MaxSessions))
	if c.BodySizeMaxMiB < 1 || c.BodySizeMaxMiB > 50 {
		errs.Add("caps.body_size_max_mib must be between 1 and 50")
	}
}

// Config is the full server configuration: CLI-flag + YAML-file, the way
// dendrite's cmd/ entrypoints build a *config.Dendrite.
type Config struct {
	BindAddress     string   `yaml:"bind_address"`
	TLSCertPath     string   `yaml:"tls_cert_path,omitempty"`
	TLSKeyPath      string   `yaml:"tls_key_path,omitempty"`
	MapDirectories  []string `yaml:"map_directories"`
	GameDataDir     string   `yaml:"game_data_dir,omitempty"`
	StaticDir       string   `yaml:"static_dir,omitempty"`
	RulesPreprocessor string `yaml:"rules_preprocessor,omitempty"`
	ScanWorkers     int      `yaml:"scan_workers"`
	CacheMaxBytes   int64    `yaml:"cache_max_bytes"`

	Caps         Caps         `yaml:"caps"`
	RateLimiting RateLimiting `yaml:"rate_limiting"`
	Logging      Logging      `yaml:"logging"`
}

// Defaults fills in every field Verify would otherwise reject as unset.
func (c *Config) Defaults(opts DefaultOpts) {
	if c.BindAddress == "" {
		c.BindAddress = "0.0.0.0:8080"
	}
	if c.ScanWorkers == 0 {
		c.ScanWorkers = 8
	}
	if c.CacheMaxBytes == 0 {
		c.CacheMaxBytes = 256 * 1024 * 1024
	}
	c.Caps.Defaults()
	c.RateLimiting.Defaults()
	c.Logging.Defaults()
	if opts.Generate {
		c.MapDirectories = []string{"./maps"}
	}
}

// Verify checks the config for internal consistency, returning a non-nil
// error (a ConfigErrors) if anything is wrong.
func (c *Config) Verify() error {
	var errs ConfigErrors
	checkNotEmpty(&errs, "bind_address", c.BindAddress)
	if len(c.MapDirectories) == 0 {
		errs.Add("at least one entry in map_directories is required")
	}
	if (c.TLSCertPath == "") != (c.TLSKeyPath == "") {
		errs.Add("tls_cert_path and tls_key_path must both be set or both be empty")
	}
	checkPositive(&errs, "scan_workers", int64(c.ScanWorkers))
	c.Caps.Verify(&errs)
	c.RateLimiting.Verify(&errs)
	c.Logging.Verify(&errs)
	if !errs.IsEmpty() {
		return errs
	}
	return nil
}

// Load reads and parses a YAML config file, applying Defaults for any
// field the file left at its zero value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	cfg.Defaults(DefaultOpts{})
	return &cfg, nil
}

// Flags mirrors the CLI surface from spec.md §6: bind address, TLS pair,
// repeated map directories, optional legacy/static/preprocessor paths, and
// the capacity knobs. ParseFlags merges these over a YAML config loaded
// from configPath, with explicitly-set flags taking precedence.
type Flags struct {
	ConfigPath        string
	BindAddress       string
	TLSCertPath       string
	TLSKeyPath        string
	MapDirectories    multiFlag
	GameDataDir       string
	StaticDir         string
	RulesPreprocessor string
	MaxMaps           int
	MaxMapSizeKiB     int64
	MaxSessions       int
	HTTPBurstSize     int64
	HTTPRateDelayMS   int64
}

type multiFlag []string

func (m *multiFlag) String() string { return fmt.Sprint([]string(*m)) }
func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

// ParseFlags parses args (typically os.Args[1:]) and merges them over
// whatever config file they reference, returning the fully resolved,
// Defaults-applied, Verify-checked Config.
func ParseFlags(name string, args []string) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var f Flags
	fs.StringVar(&f.ConfigPath, "config", "", "path to YAML config file")
	fs.StringVar(&f.BindAddress, "bind", "", "address to listen on")
	fs.StringVar(&f.TLSCertPath, "tls-cert", "", "TLS certificate path")
	fs.StringVar(&f.TLSKeyPath, "tls-key", "", "TLS key path")
	fs.Var(&f.MapDirectories, "map-dir", "map directory (repeatable)")
	fs.StringVar(&f.GameDataDir, "game-data-dir", "", "legacy game-data directory")
	fs.StringVar(&f.StaticDir, "static-dir", "", "static file directory")
	fs.StringVar(&f.RulesPreprocessor, "rules-preprocessor", "", "path to the automapper rules preprocessor")
	fs.IntVar(&f.MaxMaps, "max-maps", 0, "maximum number of maps")
	fs.Int64Var(&f.MaxMapSizeKiB, "max-map-size-kib", 0, "maximum map size in KiB")
	fs.IntVar(&f.MaxSessions, "max-sessions", 0, "maximum concurrent sessions")
	fs.Int64Var(&f.HTTPBurstSize, "http-burst-size", 0, "HTTP rate limiter burst size")
	fs.Int64Var(&f.HTTPRateDelayMS, "http-rate-limit-delay-ms", 0, "HTTP rate limiter cooloff in ms")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var cfg Config
	if f.ConfigPath != "" {
		loaded, err := Load(f.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	if f.BindAddress != "" {
		cfg.BindAddress = f.BindAddress
	}
	if f.TLSCertPath != "" {
		cfg.TLSCertPath = f.TLSCertPath
	}
	if f.TLSKeyPath != "" {
		cfg.TLSKeyPath = f.TLSKeyPath
	}
	if len(f.MapDirectories) > 0 {
		cfg.MapDirectories = f.MapDirectories
	}
	if f.GameDataDir != "" {
		cfg.GameDataDir = f.GameDataDir
	}
	if f.StaticDir != "" {
		cfg.StaticDir = f.StaticDir
	}
	if f.RulesPreprocessor != "" {
		cfg.RulesPreprocessor = f.RulesPreprocessor
	}
	if f.MaxMaps != 0 {
		cfg.Caps.MaxMaps = f.MaxMaps
	}
	if f.MaxMapSizeKiB != 0 {
		cfg.Caps.MaxMapSizeKiB = f.MaxMapSizeKiB
	}
	if f.MaxSessions != 0 {
		cfg.Caps.MaxSessions = f.MaxSessions
	}
	if f.HTTPBurstSize != 0 {
		cfg.RateLimiting.BurstSize = f.HTTPBurstSize
	}
	if f.HTTPRateDelayMS != 0 {
		cfg.RateLimiting.DelayMS = f.HTTPRateDelayMS
	}

	cfg.Defaults(DefaultOpts{})
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ScanTimeout bounds a single startup directory scan worker; used by
// roomregistry alongside ScanWorkers.
const ScanTimeout = 30 * time.Second
