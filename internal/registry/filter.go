package registry

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolFilter hides operator-disabled tools from tools/list.
type ToolFilter struct {
	disabled map[string]struct{}
}

// NewToolFilter hides the named tools; names are matched case-insensitively.
func NewToolFilter(names ...string) *ToolFilter {
	f := &ToolFilter{disabled: map[string]struct{}{}}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			f.disabled[n] = struct{}{}
		}
	}
	return f
}

// Enabled reports whether name survives the filter.
func (f *ToolFilter) Enabled(name string) bool {
	_, off := f.disabled[strings.ToLower(name)]
	return !off
}

// FilterTools implements server tool filtering semantics.
func (f *ToolFilter) FilterTools(ctx context.Context, tools []mcp.Tool) []mcp.Tool {
	if len(f.disabled) == 0 {
		return tools
	}
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		if f.Enabled(t.Name) {
			out = append(out, t)
		}
	}
	return out
}
