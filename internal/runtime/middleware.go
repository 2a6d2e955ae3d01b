package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/vinodismyname/ritualstats/pkg/mcperr"
)

// Observer receives one event per tool call. outcome is "ok", "error",
// "busy" or "timeout".
type Observer interface {
	ObserveToolCall(tool, outcome string, elapsed time.Duration)
}

// Middleware enforces runtime limits for tool calls using the Controller.
// It bounds global concurrency and applies an operation timeout to each call.
type Middleware struct {
	ctrl     *Controller
	logger   zerolog.Logger
	observer Observer
}

// NewMiddleware constructs a Middleware bound to the provided Controller.
func NewMiddleware(ctrl *Controller) *Middleware {
	return &Middleware{ctrl: ctrl, logger: zerolog.Nop()}
}

// WithLogger sets the base logger attached to every call context.
func (m *Middleware) WithLogger(l zerolog.Logger) *Middleware {
	m.logger = l
	return m
}

// WithObserver sets a per-call observer, typically telemetry metrics.
func (m *Middleware) WithObserver(o Observer) *Middleware {
	m.observer = o
	return m
}

// ToolMiddleware implements mcp-go's tool handler middleware interface.
// It acquires a request slot, applies a timeout, and guarantees release.
func (m *Middleware) ToolMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		tool := req.Params.Name
		log := m.logger.With().Str("tool", tool).Str("call_id", uuid.NewString()).Logger()
		ctx = log.WithContext(ctx)

		acquireCtx := ctx
		if m.ctrl.limits.AcquireRequestTimeout > 0 {
			var cancel context.CancelFunc
			acquireCtx, cancel = context.WithTimeout(ctx, m.ctrl.limits.AcquireRequestTimeout)
			defer cancel()
		}
		if err := m.ctrl.AcquireRequest(acquireCtx); err != nil {
			m.observe(tool, "busy", start)
			log.Warn().Err(err).Msg("request capacity exhausted")
			return mcperr.New(mcperr.BusyResource,
				fmt.Sprintf("concurrent request limit reached (max=%d). Please retry shortly.", m.ctrl.limits.MaxConcurrentRequests)), nil
		}
		defer m.ctrl.ReleaseRequest()

		callCtx := ctx
		cancel := func() {}
		if m.ctrl.limits.OperationTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, m.ctrl.limits.OperationTimeout)
		}
		defer cancel()

		res, err := next(callCtx, req)

		// a handler that surfaced the deadline gets a tool-level timeout instead
		if errors.Is(err, context.DeadlineExceeded) || (errors.Is(callCtx.Err(), context.DeadlineExceeded) && err == nil && res == nil) {
			m.observe(tool, "timeout", start)
			log.Warn().Dur("elapsed", time.Since(start)).Msg("tool call timed out")
			return mcperr.New(mcperr.Timeout, ""), nil
		}

		outcome := "ok"
		if err != nil || (res != nil && res.IsError) {
			outcome = "error"
		}
		m.observe(tool, outcome, start)
		log.Debug().Str("outcome", outcome).Dur("elapsed", time.Since(start)).Msg("tool call finished")
		return res, err
	}
}

func (m *Middleware) observe(tool, outcome string, start time.Time) {
	if m.observer != nil {
		m.observer.ObserveToolCall(tool, outcome, time.Since(start))
	}
}
