package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/vinodismyname/ritualstats/internal/insights"
	"github.com/vinodismyname/ritualstats/internal/report"
	"github.com/vinodismyname/ritualstats/internal/schema"
	"github.com/vinodismyname/ritualstats/internal/security"
	"github.com/vinodismyname/ritualstats/internal/workbooks"
	"github.com/vinodismyname/ritualstats/pkg/mcperr"
	"github.com/vinodismyname/ritualstats/pkg/validation"
)

// Tool names.
const (
	ToolAnalyzeRecords = "analyze_records"
	ToolGroupTimeline  = "group_timeline"
	ToolDescribeSchema = "describe_schema"
)

// RegisterTools wires the ledger tools onto s and records them in reg.
func RegisterTools(s *server.MCPServer, reg *Registry, svc *insights.Service) {
	analyze := mcp.NewTool(
		ToolAnalyzeRecords,
		mcp.WithDescription("Summarize a ritual ledger: individuals, families, gender split with peak years, top villages, castes and years by distinct families, unique rituals, and monthly seasonality. With a mapped ledger it also counts repeated merged families and reconstructs the most repeated group's timeline. Columns that are absent produce a note instead of failing. Set narrate=true for a short generated description of every computed section (requires a configured model). Results are cached while the input files are unchanged."),
		mcp.WithInputSchema[insights.AnalyzeInput](),
		mcp.WithOutputSchema[insights.AnalyzeOutput](),
	)
	s.AddTool(analyze, mcp.NewTypedToolHandler(analyzeHandler(svc)))
	reg.Register(analyze)

	timeline := mcp.NewTool(
		ToolGroupTimeline,
		mcp.WithDescription("Reconstruct one merged family group from a mapped ledger: member families, first and last appearance, month distribution, year timeline with peak, family size, and origin. Defaults to the group with the most distinct families; pass group_id to pin another. Errors include INVALID_GROUP when the pinned id is absent."),
		mcp.WithInputSchema[insights.TimelineInput](),
		mcp.WithOutputSchema[insights.TimelineOutput](),
	)
	s.AddTool(timeline, mcp.NewTypedToolHandler(timelineHandler(svc)))
	reg.Register(timeline)

	describe := mcp.NewTool(
		ToolDescribeSchema,
		mcp.WithDescription("Resolve a ledger's header row against the known column aliases and report which computations are feasible. Use before analyze_records when a ledger's columns are unfamiliar."),
		mcp.WithInputSchema[insights.DescribeInput](),
		mcp.WithOutputSchema[insights.DescribeOutput](),
	)
	s.AddTool(describe, mcp.NewTypedToolHandler(describeHandler(svc)))
	reg.Register(describe)
}

func analyzeHandler(svc *insights.Service) mcp.TypedToolHandlerFunc[insights.AnalyzeInput] {
	return func(ctx context.Context, req mcp.CallToolRequest, in insights.AnalyzeInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		out, err := svc.Analyze(ctx, in)
		if err != nil {
			return toolError(err)
		}
		var b strings.Builder
		if err := report.Write(&b, out.Report, report.FormatText); err != nil {
			return mcperr.Wrapf(mcperr.AnalysisFailed, "render report: %v", err), nil
		}
		summary := fmt.Sprintf("run_id=%s cached=%v sections=%d", out.Report.RunID, out.Cached, len(out.Report.Entries))
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(b.String())}
		return res, nil
	}
}

func timelineHandler(svc *insights.Service) mcp.TypedToolHandlerFunc[insights.TimelineInput] {
	return func(ctx context.Context, req mcp.CallToolRequest, in insights.TimelineInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		out, err := svc.Timeline(ctx, in)
		if err != nil {
			return toolError(err)
		}
		text := out.Summary
		if out.Narration != "" {
			text += "\nDescription: " + out.Narration
		}
		res := mcp.NewToolResultStructured(out, out.Timeline.GroupID)
		res.Content = []mcp.Content{mcp.NewTextContent(text)}
		return res, nil
	}
}

func describeHandler(svc *insights.Service) mcp.TypedToolHandlerFunc[insights.DescribeInput] {
	return func(ctx context.Context, req mcp.CallToolRequest, in insights.DescribeInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		out, err := svc.Describe(ctx, in)
		if err != nil {
			return toolError(err)
		}
		all := append(append([]schema.Feasibility{}, out.Primary...), out.Mapped...)
		feasible := 0
		var notes []string
		for _, f := range all {
			if f.Feasible {
				feasible++
			} else {
				notes = append(notes, "- "+f.Note)
			}
		}
		summary := fmt.Sprintf("rows=%d resolved=%d missing=%d feasible=%d", out.Rows, len(out.Columns), len(out.Missing), feasible)
		lines := append([]string{summary}, notes...)
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(strings.Join(lines, "\n"))}
		return res, nil
	}
}

// toolError maps pipeline failures onto catalog codes. Deadline errors are
// returned as-is so the runtime middleware reports TIMEOUT.
func toolError(err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil, err
	}
	what := "input"
	var le *insights.LoadError
	if errors.As(err, &le) {
		what = fmt.Sprintf("%s table %q", le.Role, le.Path)
	}
	switch {
	case errors.Is(err, insights.ErrInvalidInput):
		return mcperr.New(mcperr.Validation, strings.TrimPrefix(err.Error(), insights.ErrInvalidInput.Error()+": ")), nil
	case errors.Is(err, insights.ErrNarrationUnavailable):
		return mcperr.New(mcperr.NarrationUnavailable, ""), nil
	case errors.Is(err, insights.ErrGroupNotFound):
		return mcperr.New(mcperr.InvalidGroup, strings.TrimPrefix(err.Error(), "insights: ")), nil
	case errors.Is(err, security.ErrNotAllowed):
		return mcperr.Wrapf(mcperr.PermissionDenied, "%s is outside the allowed directories", what), nil
	case errors.Is(err, security.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return mcperr.Wrapf(mcperr.InputNotFound, "%s not found", what), nil
	case errors.Is(err, security.ErrUnsupportedExtension), errors.Is(err, workbooks.ErrUnsupportedFormat):
		return mcperr.Wrapf(mcperr.UnsupportedFormat, "%s: %v", what, err), nil
	case errors.Is(err, workbooks.ErrTooLarge):
		return mcperr.Wrapf(mcperr.FileTooLarge, "%s: %v", what, err), nil
	case errors.Is(err, workbooks.ErrTooManyRows):
		return mcperr.Wrapf(mcperr.LimitExceeded, "%s: %v", what, err), nil
	case le != nil:
		return mcperr.Wrapf(mcperr.InputUnreadable, "%s: %v", what, le.Err), nil
	}
	return mcperr.Wrapf(mcperr.AnalysisFailed, "%v", err), nil
}
