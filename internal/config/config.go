// Package config assembles the run configuration from an optional YAML file
// and RITUALSTATS_* environment variables on top of the built-in defaults.
package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vinodismyname/ritualstats/internal/analysis"
	"github.com/vinodismyname/ritualstats/internal/narration"
	"github.com/vinodismyname/ritualstats/internal/runtime"
	"github.com/vinodismyname/ritualstats/internal/security"
	"github.com/vinodismyname/ritualstats/pkg/validation"
)

// Config is the full set of tunables.
type Config struct {
	LogLevel  string          `mapstructure:"log_level" validate:"oneof=trace debug info warn error disabled"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Narration NarrationConfig `mapstructure:"narration"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Server    ServerConfig    `mapstructure:"server"`
}

// AnalysisConfig tunes rankings and group selection.
type AnalysisConfig struct {
	TopN        int    `mapstructure:"top_n" validate:"min=1,max=50"`
	GroupPrefix string `mapstructure:"group_prefix" validate:"required,group_token"`
}

// NarrationConfig configures text generation. APIKey is only ever read from
// the file or the environment.
type NarrationConfig struct {
	APIKey           string        `mapstructure:"api_key"`
	Model            string        `mapstructure:"model" validate:"required"`
	BaseURL          string        `mapstructure:"base_url" validate:"omitempty,url"`
	MaxTokens        int           `mapstructure:"max_tokens" validate:"min=1,max=4096"`
	Temperature      float64       `mapstructure:"temperature" validate:"min=0,max=2"`
	Concurrency      int           `mapstructure:"concurrency" validate:"min=1,max=32"`
	MaxAttempts      int           `mapstructure:"max_attempts" validate:"min=1,max=10"`
	BaseDelay        time.Duration `mapstructure:"base_delay"`
	RateLimitWait    time.Duration `mapstructure:"rate_limit_wait"`
	MaxRateLimitWait time.Duration `mapstructure:"max_rate_limit_wait"`
}

// LimitsConfig bounds concurrency and input size.
type LimitsConfig struct {
	MaxConcurrentRequests int           `mapstructure:"max_concurrent_requests" validate:"min=1"`
	MaxOpenWorkbooks      int           `mapstructure:"max_open_workbooks" validate:"min=1"`
	MaxInputBytes         int64         `mapstructure:"max_input_bytes" validate:"min=1"`
	MaxRows               int           `mapstructure:"max_rows" validate:"min=1"`
	OperationTimeout      time.Duration `mapstructure:"operation_timeout"`
	AcquireTimeout        time.Duration `mapstructure:"acquire_timeout"`
}

// CacheConfig sets the lifetimes of loaded tables and cached results.
type CacheConfig struct {
	WorkbookTTL  time.Duration `mapstructure:"workbook_ttl"`
	CleanupEvery time.Duration `mapstructure:"cleanup_every"`
	ResultTTL    time.Duration `mapstructure:"result_ttl"`
	MaxResults   int           `mapstructure:"max_results" validate:"min=0"`
}

// ServerConfig applies to serve only.
type ServerConfig struct {
	// AllowedDirs is an OS path list, as in RITUALSTATS_ALLOWED_DIRS.
	AllowedDirs   string   `mapstructure:"allowed_dirs"`
	MetricsAddr   string   `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
	DisabledTools []string `mapstructure:"disabled_tools"`
}

// Validate runs the struct rules plus the duration checks tags cannot express.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	for name, d := range map[string]time.Duration{
		"narration.base_delay":          c.Narration.BaseDelay,
		"narration.rate_limit_wait":     c.Narration.RateLimitWait,
		"narration.max_rate_limit_wait": c.Narration.MaxRateLimitWait,
		"limits.operation_timeout":      c.Limits.OperationTimeout,
		"limits.acquire_timeout":        c.Limits.AcquireTimeout,
		"cache.workbook_ttl":            c.Cache.WorkbookTTL,
		"cache.cleanup_every":           c.Cache.CleanupEvery,
		"cache.result_ttl":              c.Cache.ResultTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

// Level parses LogLevel; Validate guarantees it is known.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// AnalysisOptions returns the options for a run; per-call values override.
func (c *Config) AnalysisOptions() analysis.Options {
	return analysis.Options{TopN: c.Analysis.TopN, GroupPrefix: c.Analysis.GroupPrefix}
}

// RuntimeLimits maps the limits onto the runtime controller.
func (c *Config) RuntimeLimits() runtime.Limits {
	l := runtime.NewLimits(c.Limits.MaxConcurrentRequests, c.Limits.MaxOpenWorkbooks)
	l.MaxConcurrentNarrations = c.Narration.Concurrency
	l.MaxInputBytes = c.Limits.MaxInputBytes
	l.MaxRows = c.Limits.MaxRows
	l.OperationTimeout = c.Limits.OperationTimeout
	l.AcquireRequestTimeout = c.Limits.AcquireTimeout
	return l
}

// RetryPolicy returns the narration retry policy.
func (c *Config) RetryPolicy() narration.Policy {
	return narration.Policy{
		MaxAttempts:      c.Narration.MaxAttempts,
		BaseDelay:        c.Narration.BaseDelay,
		RateLimitWait:    c.Narration.RateLimitWait,
		MaxRateLimitWait: c.Narration.MaxRateLimitWait,
	}
}

// OpenAI returns the generator settings. An empty APIKey means narration
// is unavailable.
func (c *Config) OpenAI() narration.OpenAIConfig {
	return narration.OpenAIConfig{
		APIKey:  c.Narration.APIKey,
		Model:   c.Narration.Model,
		BaseURL: c.Narration.BaseURL,
		Params:  narration.Params{MaxTokens: c.Narration.MaxTokens, Temperature: c.Narration.Temperature},
	}
}

// AllowedDirs splits the server allow-list.
func (c *Config) AllowedDirs() []string {
	return security.SplitList(c.Server.AllowedDirs)
}
