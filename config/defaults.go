package config

import "time"

// Default analysis parameters and guardrails for ritualstats.
// internal/config overlays file and environment values on top of these;
// internal/runtime and internal/narration fall back to them when unset.

const (
	// Rankings
	DefaultTopN = 5

	// Mapped table: merged family groups carry this prefix.
	DefaultGroupPrefix = "GROUP"
)

const (
	// Concurrency
	DefaultMaxConcurrentRequests   = 10
	DefaultMaxOpenWorkbooks        = 4
	DefaultMaxConcurrentNarrations = 3

	// Input bounds
	DefaultMaxInputBytes = 32 * 1024 * 1024 // 32MB
	DefaultMaxRows       = 200_000
)

const (
	// Text generation
	DefaultModel       = "gpt-4.1-mini"
	DefaultMaxTokens   = 150
	DefaultTemperature = 0.7

	// Retry policy for text generation
	DefaultMaxAttempts      = 3
	DefaultBaseDelay        = 1 * time.Second
	DefaultRateLimitWait    = 60 * time.Second
	DefaultMaxRateLimitWait = 60 * time.Second
)

const (
	// Timeouts
	DefaultOperationTimeout      = 5 * time.Minute
	DefaultAcquireRequestTimeout = 2 * time.Second

	// Loaded tables and analysis results
	DefaultWorkbookIdleTTL       = 30 * time.Minute
	DefaultWorkbookCleanupPeriod = time.Minute
	DefaultSessionTTL            = time.Hour
)
