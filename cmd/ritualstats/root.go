package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vinodismyname/ritualstats/internal/config"
	"github.com/vinodismyname/ritualstats/internal/insights"
	"github.com/vinodismyname/ritualstats/internal/narration"
	"github.com/vinodismyname/ritualstats/internal/runtime"
	"github.com/vinodismyname/ritualstats/internal/session"
	"github.com/vinodismyname/ritualstats/internal/workbooks"
	"github.com/vinodismyname/ritualstats/pkg/version"
)

// newGenerator builds the text generator; tests replace it.
var newGenerator = func(cfg narration.OpenAIConfig) (narration.Generator, error) {
	return narration.NewOpenAI(cfg)
}

type rootOptions struct {
	configPath string
	logLevel   string
}

// app carries what every subcommand needs once the root has run.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	a := &app{}

	cmd := &cobra.Command{
		Use:   "ritualstats",
		Short: "Summarize ritual ledgers and reconstruct merged family timelines",
		Long: "ritualstats reads a primary ritual ledger and an optional mapped ledger\n" +
			"(.xlsx, .xlsm or .csv), prints aggregate summaries, reconstructs the most\n" +
			"repeated merged family group, and can describe each section in plain words.",
		Version: version.String(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = opts.logLevel
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("--log-level: %w", err)
				}
			}
			a.cfg = cfg
			a.logger = zlog.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
				Level(cfg.Level()).
				With().Str("service", "ritualstats").Logger()
			cmd.SetContext(a.logger.WithContext(cmd.Context()))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (RITUALSTATS_* env vars override it)")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error, disabled)")

	cmd.AddCommand(
		newAnalyzeCmd(a),
		newTimelineCmd(a),
		newSchemaCmd(a),
		newServeCmd(a),
	)
	return cmd
}

// localService builds a one-shot pipeline for the command line. Narration
// fails fast when requested without a credential.
func (a *app) localService(narrate bool) (*insights.Service, error) {
	limits := a.cfg.RuntimeLimits()
	mgr := workbooks.NewManager(a.cfg.Cache.WorkbookTTL, a.cfg.Cache.CleanupEvery, nil, nil).
		WithLimits(workbooks.LimitsFrom(limits))
	svc := &insights.Service{
		Mgr:   mgr,
		Store: session.NewStore(a.cfg.Cache.ResultTTL, a.cfg.Cache.MaxResults),
	}
	if !narrate {
		return svc, nil
	}
	n, err := a.narrator(limits)
	if err != nil {
		return nil, err
	}
	svc.Narrator = n
	return svc, nil
}

// narrator caps in-flight generations at the runtime narration limit.
func (a *app) narrator(limits runtime.Limits) (*narration.Narrator, error) {
	gen, err := newGenerator(a.cfg.OpenAI())
	if errors.Is(err, narration.ErrMissingCredential) {
		return nil, fmt.Errorf("narration needs an API key: set OPENAI_API_KEY or narration.api_key: %w", err)
	}
	if err != nil {
		return nil, err
	}
	return narration.NewNarrator(gen, a.cfg.RetryPolicy(), limits.MaxConcurrentNarrations), nil
}

func closeLoader(ctx context.Context, svc *insights.Service) {
	if err := svc.Mgr.Close(ctx); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("loader close")
	}
}
