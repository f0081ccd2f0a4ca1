package config

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	PolicyAnyFailure  = "any-failure"
	PolicyPerEndpoint = "per-endpoint"
)

const (
	DefaultConcurrency      = 8
	DefaultRequestTimeoutMS = 5000
	DefaultBaseBackoffMS    = 200
	DefaultMaxBackoffMS     = 5000
	DefaultUserAgent        = "healthwatch/1.0"
	DefaultCBThreshold      = 3
	DefaultCBCooldownSec    = 60
)

// ExpectedStatus is an inclusive status code range. A nil bound is open.
type ExpectedStatus struct {
	Min *int `mapstructure:"min"`
	Max *int `mapstructure:"max"`
}

// Allows reports whether code satisfies the range. A nil receiver accepts
// any 2xx status.
func (e *ExpectedStatus) Allows(code int) bool {
	if e == nil {
		return code >= 200 && code < 300
	}
	if e.Min != nil && code < *e.Min {
		return false
	}
	if e.Max != nil && code > *e.Max {
		return false
	}
	return true
}

// EndpointConfig is a single probe target. Optional fields fall back to the
// run defaults when the probe is issued, not when the file is loaded.
type EndpointConfig struct {
	URL            string            `mapstructure:"url"`
	Method         string            `mapstructure:"method"`
	TimeoutMS      *int              `mapstructure:"timeout_ms"`
	Retries        *int              `mapstructure:"retries"`
	ExpectedStatus *ExpectedStatus   `mapstructure:"expected_status"`
	Headers        map[string]string `mapstructure:"headers"`
}

// HTTPMethod returns the upper-cased method, GET when unset.
func (e EndpointConfig) HTTPMethod() string {
	if e.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(e.Method)
}

// TimeoutOr returns the endpoint timeout, or def when none is set.
func (e EndpointConfig) TimeoutOr(def time.Duration) time.Duration {
	if e.TimeoutMS == nil || *e.TimeoutMS <= 0 {
		return def
	}
	return time.Duration(*e.TimeoutMS) * time.Millisecond
}

// RetriesOr returns the endpoint retry count, or def when none is set.
func (e EndpointConfig) RetriesOr(def int) int {
	if e.Retries == nil || *e.Retries < 0 {
		return def
	}
	return *e.Retries
}

type Config struct {
	EndpointsToCheck  []string         `mapstructure:"endpoints_to_check"`
	AdvancedEndpoints []EndpointConfig `mapstructure:"endpoints"`

	RequestTimeoutMS int    `mapstructure:"request_timeout_ms"`
	Concurrency      int    `mapstructure:"concurrency"`
	Retries          int    `mapstructure:"retries"`
	BaseBackoffMS    int    `mapstructure:"base_backoff_ms"`
	MaxBackoffMS     int    `mapstructure:"max_backoff_ms"`
	UserAgent        string `mapstructure:"user_agent"`

	LogLevel    string `mapstructure:"log_level"`
	JSONLogging bool   `mapstructure:"json_logging"`
	SummaryJSON bool   `mapstructure:"summary_json"`

	MetricsLogIntervalSec int    `mapstructure:"metrics_log_interval_sec"`
	WatchIntervalSec      int    `mapstructure:"watch_interval_sec"`
	MetricsAddr           string `mapstructure:"metrics_addr"`

	CBFailuresThreshold int    `mapstructure:"cb_failures_threshold"`
	CBCooldownSec       int    `mapstructure:"cb_cooldown_sec"`
	CBPolicy            string `mapstructure:"cb_policy"`

	DangerAcceptInvalidCerts bool   `mapstructure:"danger_accept_invalid_certs"`
	CABundlePath             string `mapstructure:"ca_bundle_path"`
}

// Load reads the file at path (YAML for .yaml/.yml, JSON otherwise), applies
// defaults and environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType(configType(path))

	// CONCURRENCY, REQUEST_TIMEOUT_MS, RETRIES and LOG_LEVEL win over the file.
	for _, key := range []string{"concurrency", "request_timeout_ms", "retries", "log_level"} {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("request_timeout_ms", DefaultRequestTimeoutMS)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("retries", 0)
	v.SetDefault("base_backoff_ms", DefaultBaseBackoffMS)
	v.SetDefault("max_backoff_ms", DefaultMaxBackoffMS)
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("log_level", LogLevelInfo)
	v.SetDefault("cb_failures_threshold", DefaultCBThreshold)
	v.SetDefault("cb_cooldown_sec", DefaultCBCooldownSec)
	v.SetDefault("cb_policy", PolicyAnyFailure)
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// Endpoints resolves the effective target list. The advanced list, when
// present, replaces the plain URL list entirely.
func (c *Config) Endpoints() []EndpointConfig {
	if c.AdvancedEndpoints != nil {
		return slices.Clone(c.AdvancedEndpoints)
	}

	endpoints := make([]EndpointConfig, 0, len(c.EndpointsToCheck))
	for _, u := range c.EndpointsToCheck {
		endpoints = append(endpoints, EndpointConfig{URL: u, Method: http.MethodGet})
	}
	return endpoints
}

// WithEndpoints returns a copy of c whose effective endpoint list is exactly
// endpoints. c itself is left untouched.
func (c *Config) WithEndpoints(endpoints []EndpointConfig) *Config {
	cp := *c
	if endpoints == nil {
		endpoints = []EndpointConfig{}
	}
	cp.AdvancedEndpoints = endpoints
	return &cp
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

func (c *Config) BaseBackoff() time.Duration {
	return time.Duration(c.BaseBackoffMS) * time.Millisecond
}

func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMS) * time.Millisecond
}

func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.WatchIntervalSec) * time.Second
}

func (c *Config) MetricsLogInterval() time.Duration {
	return time.Duration(c.MetricsLogIntervalSec) * time.Second
}

func (c *Config) CBCooldown() time.Duration {
	return time.Duration(c.CBCooldownSec) * time.Second
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.EndpointsToCheck,
			validation.Each(validation.By(validateEndpointURL)),
		),
		validation.Field(&c.AdvancedEndpoints,
			validation.Each(validation.By(validateEndpointConfig)),
		),
		validation.Field(&c.RequestTimeoutMS, validation.Required, validation.Min(1)),
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.Retries, validation.Min(0)),
		validation.Field(&c.BaseBackoffMS, validation.Min(0)),
		validation.Field(&c.MaxBackoffMS, validation.Min(0)),
		validation.Field(&c.UserAgent, validation.Required),
		validation.Field(&c.LogLevel,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
		),
		validation.Field(&c.MetricsLogIntervalSec, validation.Min(0)),
		validation.Field(&c.WatchIntervalSec, validation.Min(0)),
		validation.Field(&c.MetricsAddr, validation.By(validateHostPort)),
		validation.Field(&c.CBFailuresThreshold, validation.Required, validation.Min(1)),
		validation.Field(&c.CBCooldownSec, validation.Min(0)),
		validation.Field(&c.CBPolicy, validation.In(PolicyAnyFailure, PolicyPerEndpoint)),
	)
}

func validateEndpointConfig(value interface{}) error {
	ep, ok := value.(EndpointConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be an EndpointConfig")
	}

	return validation.ValidateStruct(&ep,
		validation.Field(&ep.URL, validation.Required, validation.By(validateEndpointURL)),
		validation.Field(&ep.Method, validation.By(validateMethod)),
		validation.Field(&ep.TimeoutMS, validation.Min(0)),
		validation.Field(&ep.Retries, validation.Min(0)),
		validation.Field(&ep.ExpectedStatus, validation.By(validateExpectedStatus)),
	)
}

func validateEndpointURL(value interface{}) error {
	raw, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if raw == "" {
		return validation.NewError("validation_empty_url", "endpoint URL cannot be empty")
	}

	parsedURL, err := url.Parse(raw)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}

func validateMethod(value interface{}) error {
	method, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	switch strings.ToUpper(method) {
	case "", http.MethodGet, http.MethodHead:
		return nil
	default:
		return validation.NewError("validation_invalid_method", "method must be GET or HEAD")
	}
}

func validateExpectedStatus(value interface{}) error {
	es, ok := value.(*ExpectedStatus)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be an ExpectedStatus")
	}
	if es == nil {
		return nil
	}

	for _, bound := range []*int{es.Min, es.Max} {
		if bound != nil && (*bound < 100 || *bound > 599) {
			return validation.NewError("validation_invalid_status", "status bounds must be between 100 and 599")
		}
	}

	if es.Min != nil && es.Max != nil && *es.Min > *es.Max {
		return validation.NewError("validation_invalid_status_range", "min cannot exceed max")
	}

	return nil
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if addr == "" {
		return nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}
