package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	defaults "github.com/vinodismyname/ritualstats/config"
	"github.com/vinodismyname/ritualstats/internal/security"
)

const envPrefix = "RITUALSTATS"

// newViper applies the YAML type, the RITUALSTATS_ prefix and the "." to
// "_" key replacer, so "narration.model" reads RITUALSTATS_NARRATION_MODEL.
// Every key gets a default because Unmarshal only sees env values for keys
// viper already knows.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("log_level", "info")

	v.SetDefault("analysis.top_n", defaults.DefaultTopN)
	v.SetDefault("analysis.group_prefix", defaults.DefaultGroupPrefix)

	v.SetDefault("narration.api_key", "")
	v.SetDefault("narration.model", defaults.DefaultModel)
	v.SetDefault("narration.base_url", "")
	v.SetDefault("narration.max_tokens", defaults.DefaultMaxTokens)
	v.SetDefault("narration.temperature", defaults.DefaultTemperature)
	v.SetDefault("narration.concurrency", defaults.DefaultMaxConcurrentNarrations)
	v.SetDefault("narration.max_attempts", defaults.DefaultMaxAttempts)
	v.SetDefault("narration.base_delay", defaults.DefaultBaseDelay)
	v.SetDefault("narration.rate_limit_wait", defaults.DefaultRateLimitWait)
	v.SetDefault("narration.max_rate_limit_wait", defaults.DefaultMaxRateLimitWait)

	v.SetDefault("limits.max_concurrent_requests", defaults.DefaultMaxConcurrentRequests)
	v.SetDefault("limits.max_open_workbooks", defaults.DefaultMaxOpenWorkbooks)
	v.SetDefault("limits.max_input_bytes", defaults.DefaultMaxInputBytes)
	v.SetDefault("limits.max_rows", defaults.DefaultMaxRows)
	v.SetDefault("limits.operation_timeout", defaults.DefaultOperationTimeout)
	v.SetDefault("limits.acquire_timeout", defaults.DefaultAcquireRequestTimeout)

	v.SetDefault("cache.workbook_ttl", defaults.DefaultWorkbookIdleTTL)
	v.SetDefault("cache.cleanup_every", defaults.DefaultWorkbookCleanupPeriod)
	v.SetDefault("cache.result_ttl", defaults.DefaultSessionTTL)
	v.SetDefault("cache.max_results", 0)

	v.SetDefault("server.allowed_dirs", "")
	v.SetDefault("server.metrics_addr", "")
	v.SetDefault("server.disabled_tools", []string{})

	// the credential also honors the conventional variable name
	_ = v.BindEnv("narration.api_key", envPrefix+"_NARRATION_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("server.allowed_dirs", security.EnvAllowedDirs)
	_ = v.BindEnv("server.disabled_tools", envPrefix+"_DISABLED_TOOLS")
	return v
}

// Load reads the YAML file at path when one is given, merges RITUALSTATS_*
// overrides and validates the result. An empty path loads from defaults
// and the environment only.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	}
	return finalize(v)
}

func finalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}
