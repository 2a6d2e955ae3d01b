package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	defaults "github.com/vinodismyname/ritualstats/config"
)

const sampleYAML = `
log_level: debug
analysis:
  top_n: 3
  group_prefix: KUL
narration:
  model: gpt-4o-mini
  base_delay: 250ms
limits:
  max_rows: 1000
server:
  allowed_dirs: /srv/ledgers
  disabled_tools: [group_timeline]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ritualstats.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "RITUALSTATS_NARRATION_API_KEY", "RITUALSTATS_ALLOWED_DIRS", "RITUALSTATS_LOG_LEVEL", "RITUALSTATS_DISABLED_TOOLS"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, defaults.DefaultTopN, cfg.Analysis.TopN)
	require.Equal(t, defaults.DefaultGroupPrefix, cfg.Analysis.GroupPrefix)
	require.Equal(t, defaults.DefaultMaxTokens, cfg.Narration.MaxTokens)
	require.Equal(t, defaults.DefaultBaseDelay, cfg.Narration.BaseDelay)
	require.Equal(t, int64(defaults.DefaultMaxInputBytes), cfg.Limits.MaxInputBytes)
	require.Equal(t, zerolog.InfoLevel, cfg.Level())
	require.Empty(t, cfg.OpenAI().APIKey)

	p := cfg.RetryPolicy()
	require.Equal(t, 3, p.MaxAttempts)
	require.Equal(t, 60*time.Second, p.MaxRateLimitWait)
}

func TestLoad_FileThenEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, sampleYAML)
	t.Setenv("RITUALSTATS_ANALYSIS_TOP_N", "7")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, zerolog.DebugLevel, cfg.Level())
	require.Equal(t, 7, cfg.Analysis.TopN)
	require.Equal(t, "KUL", cfg.AnalysisOptions().GroupPrefix)
	require.Equal(t, "gpt-4o-mini", cfg.OpenAI().Model)
	require.Equal(t, "sk-test", cfg.OpenAI().APIKey)
	require.Equal(t, 250*time.Millisecond, cfg.Narration.BaseDelay)
	require.Equal(t, []string{"/srv/ledgers"}, cfg.AllowedDirs())
	require.Equal(t, []string{"group_timeline"}, cfg.Server.DisabledTools)

	lim := cfg.RuntimeLimits()
	require.Equal(t, defaults.DefaultMaxConcurrentNarrations, lim.MaxConcurrentNarrations)
	require.Equal(t, 1000, lim.MaxRows)
}

func TestLoad_PrefixedKeyWinsOverConventionalName(t *testing.T) {
	clearEnv(t)
	t.Setenv("RITUALSTATS_NARRATION_API_KEY", "sk-prefixed")
	t.Setenv("OPENAI_API_KEY", "sk-plain")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sk-prefixed", cfg.Narration.APIKey)
}

func TestLoad_DisabledToolsFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("RITUALSTATS_DISABLED_TOOLS", "group_timeline,describe_schema")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, []string{"group_timeline", "describe_schema"}, cfg.Server.DisabledTools)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "analysis:\n  top_n: 0\n"))
	require.ErrorContains(t, err, "topn")

	_, err = Load(writeConfig(t, "log_level: loud\n"))
	require.ErrorContains(t, err, "loglevel must be one of")

	_, err = Load(writeConfig(t, "cache:\n  result_ttl: -1s\n"))
	require.ErrorContains(t, err, "cache.result_ttl must be positive")
}
