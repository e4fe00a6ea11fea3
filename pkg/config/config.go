package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultRateLimitKey    = "default"
	defaultFreeWeeklyLimit = 5
	defaultTimezone        = "UTC"
	defaultMetricsPath     = "/metrics"
)

var (
	FileReadErr                  = errors.New("could not read config file")
	RawConfigStructValidationErr = errors.New("invalid config")
)

type rateLimitRawConfig struct {
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`
}

type rawConfig struct {
	RateLimits *struct {
		Default *rateLimitRawConfig
		Items   map[string]rateLimitRawConfig
	} `mapstructure:"rate_limits"`
	Usage *struct {
		FreeWeeklyLimit *int `mapstructure:"free_weekly_limit"`
		Timezone        string
	}
	Metrics *struct {
		Enabled *bool
		Path    string
	}
}

// RateLimitConfig is one fixed-window policy bound to a route class.
type RateLimitConfig struct {
	Name        string
	Window      time.Duration
	MaxRequests int
}

func (r RateLimitConfig) validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: rate limit name is required", RawConfigStructValidationErr)
	}

	if r.Window <= 0 {
		return fmt.Errorf("%w: rate limit %q window must be greater than zero", RawConfigStructValidationErr, r.Name)
	}

	if r.MaxRequests <= 0 {
		return fmt.Errorf("%w: rate limit %q max_requests must be greater than zero", RawConfigStructValidationErr, r.Name)
	}

	return nil
}

type UsageConfig struct {
	FreeWeeklyLimit int
	Location        *time.Location
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

type Config struct {
	RateLimits map[string]RateLimitConfig
	Usage      UsageConfig
	Metrics    MetricsConfig
}

func parseRateLimitConfig(name string, raw rateLimitRawConfig) (RateLimitConfig, error) {
	rl := RateLimitConfig{
		Name:        name,
		Window:      raw.Window,
		MaxRequests: raw.MaxRequests,
	}
	return rl, rl.validate()
}

func parseRateLimitsConfig(rc *rawConfig) (map[string]RateLimitConfig, error) {
	if rc.RateLimits == nil {
		return nil, fmt.Errorf("%w: rate_limits section is required", RawConfigStructValidationErr)
	}

	if rc.RateLimits.Default == nil {
		return nil, fmt.Errorf("%w: rate_limits.default is required", RawConfigStructValidationErr)
	}

	defaultRateLimit, err := parseRateLimitConfig(DefaultRateLimitKey, *rc.RateLimits.Default)
	if err != nil {
		return nil, err
	}

	rateLimits := map[string]RateLimitConfig{
		DefaultRateLimitKey: defaultRateLimit,
	}

	for name, raw := range rc.RateLimits.Items {
		if name == DefaultRateLimitKey {
			return nil, fmt.Errorf("%w: %q is reserved, use rate_limits.default", RawConfigStructValidationErr, name)
		}

		rl, err := parseRateLimitConfig(name, raw)
		if err != nil {
			return nil, err
		}
		rateLimits[name] = rl
	}

	return rateLimits, nil
}

func parseUsageConfig(rc *rawConfig) (*UsageConfig, error) {
	var (
		limit    = defaultFreeWeeklyLimit
		timezone = defaultTimezone
	)

	if rc.Usage != nil {
		if rc.Usage.FreeWeeklyLimit != nil {
			limit = *rc.Usage.FreeWeeklyLimit
		}
		if rc.Usage.Timezone != "" {
			timezone = rc.Usage.Timezone
		}
	}

	if limit < 0 {
		return nil, fmt.Errorf("%w: usage.free_weekly_limit must not be negative", RawConfigStructValidationErr)
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: usage.timezone: %v", RawConfigStructValidationErr, err)
	}

	return &UsageConfig{
		FreeWeeklyLimit: limit,
		Location:        loc,
	}, nil
}

func parseMetricsConfig(rc *rawConfig) (*MetricsConfig, error) {
	metrics := MetricsConfig{
		Enabled: true,
		Path:    defaultMetricsPath,
	}

	if rc.Metrics != nil {
		if rc.Metrics.Path == "" {
			return nil, fmt.Errorf("%w: metrics path could not be empty", RawConfigStructValidationErr)
		}

		metrics.Path = rc.Metrics.Path

		if rc.Metrics.Enabled != nil {
			metrics.Enabled = *rc.Metrics.Enabled
		}
	}

	return &metrics, nil
}

func parseRawConfig(rc *rawConfig) (*Config, error) {
	rateLimits, err := parseRateLimitsConfig(rc)
	if err != nil {
		return nil, err
	}

	usage, err := parseUsageConfig(rc)
	if err != nil {
		return nil, err
	}

	metrics, err := parseMetricsConfig(rc)
	if err != nil {
		return nil, err
	}

	return &Config{
		RateLimits: rateLimits,
		Usage:      *usage,
		Metrics:    *metrics,
	}, nil
}

// Load reads and validates the YAML config at path.
func Load(path string) (*Config, error) {
	slog.Info("loading config", "path", path)
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %v", FileReadErr, err)
	}

	var rc rawConfig
	if err := v.Unmarshal(&rc); err != nil {
		return nil, fmt.Errorf("%w: unable to decode config: %v", RawConfigStructValidationErr, err)
	}

	return parseRawConfig(&rc)
}
