// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

// DefaultAPIBaseURL is the build-time API base URL, set with
// -ldflags "-X github.com/sigil-dev/storefront/internal/config.DefaultAPIBaseURL=https://...".
var DefaultAPIBaseURL = ""

// FallbackAPIBaseURL is used when neither a runtime override nor a
// build-time default is set.
const FallbackAPIBaseURL = "http://localhost:8000"

// Config is the top-level storefront client configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Cart    CartConfig    `mapstructure:"cart"`
	Session SessionConfig `mapstructure:"session"`
	State   StateConfig   `mapstructure:"state"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Mock    MockConfig    `mapstructure:"mock"`
}

// APIConfig controls the HTTP client.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst"`
	UserAgent string        `mapstructure:"user_agent"`
}

// AuthConfig supplies credentials when the OS keyring is not used. Token is
// sent as a bearer token.
type AuthConfig struct {
	Token  string `mapstructure:"token"`
	UserID string `mapstructure:"user_id"`
}

// RetryConfig controls retries of idempotent reads.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}

type CartConfig struct {
	ThrottleInterval time.Duration `mapstructure:"throttle_interval"`
}

type SessionConfig struct {
	PersistDebounce time.Duration `mapstructure:"persist_debounce"`
}

// StateConfig selects where the current session id and user id persist.
type StateConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// MetricsConfig exposes the client's Prometheus registry. An empty Listen
// keeps the metrics server off.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// TracingConfig controls OpenTelemetry export of client request spans.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"`
	Endpoint     string  `mapstructure:"endpoint"`
	Insecure     bool    `mapstructure:"insecure"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
	ServiceName  string  `mapstructure:"service_name"`
}

// MockConfig configures the mock-backend command.
type MockConfig struct {
	Listen       string   `mapstructure:"listen"`
	AuthToken    string   `mapstructure:"auth_token"`
	RateLimit    float64  `mapstructure:"rate_limit"`
	RateBurst    int      `mapstructure:"rate_burst"`
	DeclineAbove float64  `mapstructure:"decline_above"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

// SetDefaults registers every default on v. api.base_url has no default so
// that ResolveBaseURL can tell a runtime override from nothing.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.rate_limit", 0)
	v.SetDefault("api.rate_burst", 0)
	v.SetDefault("api.user_agent", "storefront-client")
	v.SetDefault("retry.max_retries", 2)
	v.SetDefault("retry.base_delay", 300*time.Millisecond)
	v.SetDefault("cart.throttle_interval", 300*time.Millisecond)
	v.SetDefault("session.persist_debounce", 500*time.Millisecond)
	if path := DefaultStatePath(); path != "" {
		v.SetDefault("state.backend", "sqlite")
		v.SetDefault("state.path", path)
	} else {
		v.SetDefault("state.backend", "memory")
	}
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.pretty", true)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "http")
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sampling_rate", 1.0)
	v.SetDefault("tracing.service_name", "storefront-client")
	v.SetDefault("mock.listen", "127.0.0.1:8000")
	v.SetDefault("mock.rate_burst", 0)
}

// SetupEnv binds STOREFRONT_* environment variables, e.g.
// STOREFRONT_API_BASE_URL for api.base_url.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{"api.base_url", "auth.token", "auth.user_id", "mock.auth_token"} {
		_ = v.BindEnv(key)
	}
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix STOREFRONT_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, sferr.Errorf(sferr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals, resolves and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, sferr.Errorf(sferr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}
	cfg.API.BaseURL = ResolveBaseURL(cfg.API.BaseURL)

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, sferr.Errorf(sferr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// ResolveBaseURL picks the API base URL: a runtime override first, then the
// build-time default, then FallbackAPIBaseURL. Trailing slashes are
// dropped.
func ResolveBaseURL(override string) string {
	for _, candidate := range []string{override, DefaultAPIBaseURL, FallbackAPIBaseURL} {
		if c := strings.TrimRight(strings.TrimSpace(candidate), "/"); c != "" {
			return c
		}
	}
	return FallbackAPIBaseURL
}

// DefaultStatePath returns ~/.local/share/storefront/state.db, or an empty
// string when the home directory cannot be resolved.
func DefaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "storefront", "state.db")
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateAPI()...)
	errs = append(errs, c.validateRetry()...)
	errs = append(errs, c.validatePacing()...)
	errs = append(errs, c.validateState()...)
	errs = append(errs, c.validateLog()...)
	errs = append(errs, c.validateObservability()...)
	errs = append(errs, c.validateMock()...)

	return errs
}

func (c *Config) validateAPI() []error {
	var errs []error

	u, err := url.Parse(c.API.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: api.base_url must be a valid URL, got %q: %w", c.API.BaseURL, err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: api.base_url must use http or https, got %q", c.API.BaseURL))
	case u.Host == "":
		errs = append(errs, sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: api.base_url must include a host, got %q", c.API.BaseURL))
	}

	if c.API.Timeout <= 0 {
		errs = append(errs, sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: api.timeout must be greater than 0, got %s", c.API.Timeout))
	}
	errs = append(errs, validateRate("api", c.API.RateLimit, c.API.RateBurst)...)

	return errs
}

func (c *Config) validateRetry() []error {
	var errs []error

	if c.Retry.MaxRetries < 0 || c.Retry.MaxRetries > 10 {
		errs = append(errs, sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: retry.max_retries must be between 0 and 10, got %d", c.Retry.MaxRetries))
	}
	if c.Retry.BaseDelay < 0 {
		errs = append(errs, sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: retry.base_delay must not be negative, got %s", c.Retry.BaseDelay))
	}

	return errs
}

func (c *Config) validatePacing() []error {
	var errs []error

	if c.Cart.ThrottleInterval <= 0 {
		errs = append(errs, sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: cart.throttle_interval must be greater than 0, got %s", c.Cart.ThrottleInterval))
	}
	if c.Session.PersistDebounce <= 0 {
		errs = append(errs, sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: session.persist_debounce must be greater than 0, got %s", c.Session.PersistDebounce))
	}

	return errs
}

func (c *Config) validateState() []error {
	var errs []error

	validBackends := map[string]bool{"memory": true, "sqlite": true}
	if !validBackends[c.State.Backend] {
		errs = append(errs, sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: state.backend must be one of [memory, sqlite], got %q", c.State.Backend))
	}
	if c.State.Backend == "sqlite" && strings.TrimSpace(c.State.Path) == "" {
		errs = append(errs, sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: state.path must not be empty for the sqlite backend"))
	}

	return errs
}

func (c *Config) validateLog() []error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "disabled": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return []error{sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: log.level must be one of [debug, info, warn, error, disabled], got %q", c.Log.Level)}
	}
	return nil
}

func (c *Config) validateObservability() []error {
	var errs []error

	if c.Metrics.Listen != "" {
		errs = append(errs, validateListen("metrics.listen", c.Metrics.Listen)...)
	}

	if c.Tracing.Enabled {
		if c.Tracing.Exporter != "http" && c.Tracing.Exporter != "grpc" {
			errs = append(errs, sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
				"config: tracing.exporter must be one of [http, grpc], got %q", c.Tracing.Exporter))
		}
		if strings.TrimSpace(c.Tracing.Endpoint) == "" {
			errs = append(errs, sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
				"config: tracing.endpoint must not be empty when tracing is enabled"))
		}
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		errs = append(errs, sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: tracing.sampling_rate must be between 0 and 1, got %g", c.Tracing.SamplingRate))
	}

	return errs
}

func (c *Config) validateMock() []error {
	var errs []error

	if c.Mock.Listen == "" {
		errs = append(errs, sferr.Errorf(sferr.CodeConfigValidateInvalidValue, "config: mock.listen must not be empty"))
	} else {
		errs = append(errs, validateListen("mock.listen", c.Mock.Listen)...)
	}
	errs = append(errs, validateRate("mock", c.Mock.RateLimit, c.Mock.RateBurst)...)
	if c.Mock.DeclineAbove < 0 {
		errs = append(errs, sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: mock.decline_above must not be negative, got %g", c.Mock.DeclineAbove))
	}

	return errs
}

func validateListen(key, addr string) []error {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return []error{sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: %s must be a valid host:port address, got %q: %w", key, addr, err)}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return []error{sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: %s port must be a number, got %q", key, portStr)}
	}
	// Port 0 asks the OS for a free port.
	if port < 0 || port > 65535 {
		return []error{sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: %s port must be between 0 and 65535, got %d", key, port)}
	}
	return nil
}

func validateRate(section string, rate float64, burst int) []error {
	var errs []error

	if rate < 0 {
		errs = append(errs, sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: %s.rate_limit must not be negative, got %g", section, rate))
	}
	if rate > 0 && burst <= 0 {
		errs = append(errs, sferr.Errorf(sferr.CodeConfigValidateInvalidValue,
			"config: %s.rate_burst must be greater than 0 when %s.rate_limit is set, got %d", section, section, burst))
	}

	return errs
}
