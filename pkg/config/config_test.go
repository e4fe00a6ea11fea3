package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	var (
		configOk = `
rate_limits:
  default:
    window: 1m
    max_requests: 60

  items:
    consultation:
      window: 1m
      max_requests: 10

    usage:
      window: 30s
      max_requests: 30

usage:
  free_weekly_limit: 7
  timezone: Europe/Paris

metrics:
  enabled: true
  path: "/metrics"
`
		configWithoutRateLimitsSection = `
metrics:
  enabled: true
  path: "/metrics"
`
		configMissingRateLimitsDefault = `
rate_limits:
  items:
    consultation:
      window: 1m
      max_requests: 10
`
		configMissingRateLimitsItems = `
rate_limits:
  default:
    window: 1h
    max_requests: 100
metrics:
  enabled: false
  path: "/the-metrics"
`
		configWithZeroMaxRequests = `
rate_limits:
  default:
    window: 1m
    max_requests: 0
`
		configWithNegativeWindow = `
rate_limits:
  default:
    window: 1m
    max_requests: 10
  items:
    consultation:
      window: -1s
      max_requests: 10
`
		configWithUnknownTimezone = `
rate_limits:
  default:
    window: 1m
    max_requests: 10
usage:
  timezone: Mars/Olympus_Mons
`
		configWithEmptyMetricsPath = `
rate_limits:
  default:
    window: 1m
    max_requests: 10
metrics:
  enabled: true
`
		configWithNegativeFreeLimit = `
rate_limits:
  default:
    window: 1m
    max_requests: 10
usage:
  free_weekly_limit: -1
`
	)

	tests := []struct {
		name              string
		configFileContent string
		expectedConfig    *Config
		expectedTimezone  string
		wantError         bool
		expectedError     error
	}{
		{
			name:          "Config file content is empty",
			wantError:     true,
			expectedError: RawConfigStructValidationErr,
		},
		{
			name:              "Config file is ok",
			configFileContent: configOk,
			expectedConfig: &Config{
				RateLimits: map[string]RateLimitConfig{
					"default":      {Name: "default", Window: time.Minute, MaxRequests: 60},
					"consultation": {Name: "consultation", Window: time.Minute, MaxRequests: 10},
					"usage":        {Name: "usage", Window: 30 * time.Second, MaxRequests: 30},
				},
				Usage: UsageConfig{
					FreeWeeklyLimit: 7,
				},
				Metrics: MetricsConfig{
					Enabled: true,
					Path:    "/metrics",
				},
			},
			expectedTimezone: "Europe/Paris",
		},
		{
			name:              "missing rate_limits section",
			configFileContent: configWithoutRateLimitsSection,
			wantError:         true,
			expectedError:     RawConfigStructValidationErr,
		},
		{
			name:              "missing rate_limits.default",
			configFileContent: configMissingRateLimitsDefault,
			wantError:         true,
			expectedError:     RawConfigStructValidationErr,
		},
		{
			name:              "missing rate_limits.items section uses defaults elsewhere",
			configFileContent: configMissingRateLimitsItems,
			expectedConfig: &Config{
				RateLimits: map[string]RateLimitConfig{
					"default": {Name: "default", Window: time.Hour, MaxRequests: 100},
				},
				Usage: UsageConfig{
					FreeWeeklyLimit: 5,
				},
				Metrics: MetricsConfig{
					Enabled: false,
					Path:    "/the-metrics",
				},
			},
			expectedTimezone: "UTC",
		},
		{
			name:              "max_requests must be positive",
			configFileContent: configWithZeroMaxRequests,
			wantError:         true,
			expectedError:     RawConfigStructValidationErr,
		},
		{
			name:              "window must be positive",
			configFileContent: configWithNegativeWindow,
			wantError:         true,
			expectedError:     RawConfigStructValidationErr,
		},
		{
			name:              "unknown timezone",
			configFileContent: configWithUnknownTimezone,
			wantError:         true,
			expectedError:     RawConfigStructValidationErr,
		},
		{
			name:              "metrics path could not be empty",
			configFileContent: configWithEmptyMetricsPath,
			wantError:         true,
			expectedError:     RawConfigStructValidationErr,
		},
		{
			name:              "free weekly limit must not be negative",
			configFileContent: configWithNegativeFreeLimit,
			wantError:         true,
			expectedError:     RawConfigStructValidationErr,
		},
	}

	t.Run("config file path is wrong", func(t *testing.T) {
		_, err := Load("wrong_file_path.yaml")
		require.ErrorIs(t, err, FileReadErr)
	})

	setConfig := func(t *testing.T, content []byte) string {
		f, err := os.CreateTemp(t.TempDir(), "test_config_*.yaml")
		require.NoError(t, err)
		_, err = f.Write(content)
		require.NoError(t, err)
		require.NoError(t, f.Close())
		return f.Name()
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFileName := setConfig(t, []byte(tt.configFileContent))

			cfg, err := Load(configFileName)
			if tt.wantError {
				require.Errorf(t, err, "should raise an error")
			}
			if tt.expectedError != nil {
				require.ErrorIs(t, err, tt.expectedError)
			}

			if tt.expectedConfig != nil {
				require.NoError(t, err)
				require.NotNil(t, cfg.Usage.Location)
				assert.Equal(t, tt.expectedTimezone, cfg.Usage.Location.String())
				cfg.Usage.Location = nil
				assert.Equal(t, tt.expectedConfig, cfg)
			}
		})
	}
}
