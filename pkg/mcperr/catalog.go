package mcperr

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Code defines a canonical MCP error code used across tools.
type Code string

const (
	// Validation & Input
	Validation    Code = "VALIDATION"
	InputNotFound Code = "INPUT_NOT_FOUND"
	InvalidGroup  Code = "INVALID_GROUP"

	// Resource & Limits
	BusyResource  Code = "BUSY_RESOURCE"
	Timeout       Code = "TIMEOUT"
	LimitExceeded Code = "LIMIT_EXCEEDED"
	FileTooLarge  Code = "FILE_TOO_LARGE"

	// IO & Formats
	InputUnreadable   Code = "INPUT_UNREADABLE"
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	PermissionDenied  Code = "PERMISSION_DENIED"

	// Analysis & Narration
	AnalysisFailed       Code = "ANALYSIS_FAILED"
	NarrationFailed      Code = "NARRATION_FAILED"
	NarrationUnavailable Code = "NARRATION_UNAVAILABLE"
)

// Entry documents a code's standard message, retry semantics, and next steps.
type Entry struct {
	Code      Code
	Message   string
	Retryable bool
	NextSteps []string
}

// catalog maps canonical codes to guidance. Messages can be overridden per error.
var catalog = map[Code]Entry{
	Validation:    {Code: Validation, Message: "invalid inputs", Retryable: true, NextSteps: []string{"Correct the inputs per schema and retry"}},
	InputNotFound: {Code: InputNotFound, Message: "input file not found", Retryable: true, NextSteps: []string{"Verify the path exists inside an allowed directory"}},
	InvalidGroup:  {Code: InvalidGroup, Message: "merged family group not found", Retryable: true, NextSteps: []string{"Omit group_id to use the most repeated group", "Check the group prefix"}},

	BusyResource:  {Code: BusyResource, Message: "concurrent request limit reached", Retryable: true, NextSteps: []string{"Retry after a short delay"}},
	Timeout:       {Code: Timeout, Message: "operation exceeded configured time limit", Retryable: true, NextSteps: []string{"Retry without narration or increase the timeout"}},
	LimitExceeded: {Code: LimitExceeded, Message: "input exceeded configured limits", Retryable: false, NextSteps: []string{"Split the ledger or raise max_rows"}},
	FileTooLarge:  {Code: FileTooLarge, Message: "file exceeds configured size", Retryable: false, NextSteps: []string{"Use a smaller file or increase the limit"}},

	InputUnreadable:   {Code: InputUnreadable, Message: "input could not be read", Retryable: false, NextSteps: []string{"Open the file in a spreadsheet tool and re-save it", "Check that the first row holds column headers"}},
	UnsupportedFormat: {Code: UnsupportedFormat, Message: "unsupported input format", Retryable: false, NextSteps: []string{"Convert to .xlsx or .csv and retry"}},
	PermissionDenied:  {Code: PermissionDenied, Message: "path is outside the allowed directories", Retryable: false, NextSteps: []string{"Move the file into an allowed directory"}},

	AnalysisFailed:       {Code: AnalysisFailed, Message: "analysis failed", Retryable: true, NextSteps: []string{"Call describe_schema to check which columns resolved"}},
	NarrationFailed:      {Code: NarrationFailed, Message: "narration failed", Retryable: true, NextSteps: []string{"Retry later or set narrate=false"}},
	NarrationUnavailable: {Code: NarrationUnavailable, Message: "no text-generation model configured", Retryable: false, NextSteps: []string{"Set OPENAI_API_KEY on the server or call with narrate=false"}},
}

// Lookup returns the catalog entry for code.
func Lookup(code Code) (Entry, bool) {
	e, ok := catalog[code]
	return e, ok
}

// Message builds "CODE: message | nextSteps: ..." for clients that surface
// only a message string. Unknown codes are preserved as-is.
func Message(code Code, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[code]
	if !ok {
		if base == "" {
			return string(code)
		}
		return fmt.Sprintf("%s: %s", code, base)
	}
	if base == "" {
		base = e.Message
	}
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return fmt.Sprintf("%s: %s%s", e.Code, base, guidance)
}

// FromText parses a "CODE: message" string, enriches it with catalog guidance,
// and returns an MCP tool error result.
func FromText(text string) *mcp.CallToolResult {
	t := strings.TrimSpace(text)
	if t == "" {
		return mcp.NewToolResultError(Message(Validation, ""))
	}
	code, msg, _ := strings.Cut(t, ":")
	return mcp.NewToolResultError(Message(Code(strings.TrimSpace(code)), msg))
}

// New returns an MCP error result for a given code and optional message override.
func New(code Code, message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(Message(code, message))
}

// Wrapf formats details and returns an MCP error result for the code.
func Wrapf(code Code, format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(Message(code, fmt.Sprintf(format, args...)))
}
