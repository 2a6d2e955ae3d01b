package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/vinodismyname/ritualstats/internal/insights"
	"github.com/vinodismyname/ritualstats/internal/narration"
	"github.com/vinodismyname/ritualstats/internal/registry"
	"github.com/vinodismyname/ritualstats/internal/runtime"
	"github.com/vinodismyname/ritualstats/internal/security"
	"github.com/vinodismyname/ritualstats/internal/session"
	"github.com/vinodismyname/ritualstats/internal/telemetry"
	"github.com/vinodismyname/ritualstats/internal/workbooks"
	"github.com/vinodismyname/ritualstats/pkg/version"
)

type serveOptions struct {
	stdio           bool
	metricsAddr     string
	shutdownTimeout time.Duration
}

func newServeCmd(a *app) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the ledger tools to agents over MCP",
		Long: "serve runs an MCP server with the analyze_records, group_timeline and\n" +
			"describe_schema tools. Ledgers must live under RITUALSTATS_ALLOWED_DIRS.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a, opts)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.stdio, "stdio", false, "serve over stdio")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "listen address for /metrics (overrides server.metrics_addr)")
	f.DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 5*time.Second, "graceful shutdown timeout")
	return cmd
}

func runServe(ctx context.Context, a *app, opts *serveOptions) error {
	// stdout carries the protocol, so logs are JSON on stderr
	logger := zerolog.New(os.Stderr).Level(a.cfg.Level()).
		With().Timestamp().Str("service", "ritualstats-server").Logger()
	ctx = logger.WithContext(ctx)

	if !opts.stdio {
		return errors.New("no transport selected; use --stdio")
	}

	secMgr, err := security.NewManager(a.cfg.AllowedDirs(), nil)
	if err != nil {
		return fmt.Errorf("invalid allow-list: %w", err)
	}
	if err := secMgr.ValidateConfig(); err != nil {
		return fmt.Errorf("%w; set %s", err, security.EnvAllowedDirs)
	}
	logger.Info().Strs("allowed_dirs", secMgr.AllowedDirectories()).Msg("security allow-list configured")

	ctrl := runtime.NewController(a.cfg.RuntimeLimits())
	limits := ctrl.LimitsSnapshot()
	metrics := telemetry.NewMetrics()

	mgr := workbooks.NewManager(a.cfg.Cache.WorkbookTTL, a.cfg.Cache.CleanupEvery, ctrl, nil).
		WithValidator(secMgr).
		WithLimits(workbooks.LimitsFrom(limits))
	mgr.Start()

	store := session.NewStore(a.cfg.Cache.ResultTTL, a.cfg.Cache.MaxResults)
	svc := &insights.Service{Mgr: mgr, Store: store, Recorder: metrics}

	n, err := a.narrator(limits)
	switch {
	case err == nil:
		n.OnDone = metrics.ObserveNarration
		svc.Narrator = n
	case errors.Is(err, narration.ErrMissingCredential):
		logger.Warn().Msg("no API key configured; narrate=true will return NARRATION_UNAVAILABLE")
	default:
		return err
	}

	mw := runtime.NewMiddleware(ctrl).WithLogger(logger).WithObserver(metrics)
	filter := registry.NewToolFilter(a.cfg.Server.DisabledTools...)

	srv := server.NewMCPServer(
		"ritualstats",
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(telemetry.Hooks(logger)),
		server.WithToolHandlerMiddleware(mw.ToolMiddleware),
		server.WithToolFilter(filter.FilterTools),
	)
	reg := registry.New()
	registry.RegisterTools(srv, reg, svc)

	stopSweep := sweepResults(ctx, store, a.cfg.Cache.CleanupEvery)

	addr := opts.metricsAddr
	if addr == "" {
		addr = a.cfg.Server.MetricsAddr
	}
	var metricsSrv *http.Server
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", addr).Msg("metrics listener stopped")
			}
		}()
	}

	logger.Info().
		Str("version", version.String()).
		Strs("tools", registeredTools(ctx, reg)).
		Int("max_concurrent_requests", limits.MaxConcurrentRequests).
		Int("max_open_workbooks", limits.MaxOpenWorkbooks).
		Bool("narration", svc.Narrator != nil).
		Str("metrics_addr", addr).
		Msg("server bootstrap configured")

	serveErr := server.ServeStdio(srv)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.shutdownTimeout)
	defer cancel()
	stopSweep()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := mgr.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("loader shutdown incomplete")
	}
	return serveErr
}

// registeredTools names the tools on offer. A discovery failure is logged
// and yields no names; it never stops the server.
func registeredTools(ctx context.Context, reg *registry.Registry) []string {
	tools, err := reg.Tools(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("tool discovery failed")
		return nil
	}
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return names
}

// sweepResults drops expired cached results on every tick until stopped.
func sweepResults(ctx context.Context, store *session.Store, every time.Duration) func() {
	ctx, cancel := context.WithCancel(ctx)
	ticker := time.NewTicker(every)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := store.Sweep(); n > 0 {
					zerolog.Ctx(ctx).Debug().Int("dropped", n).Msg("expired results swept")
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
