package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vinodismyname/ritualstats/internal/analysis"
	"github.com/vinodismyname/ritualstats/internal/narration"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" or "json", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("report: unknown format %q", s)
}

// Entry pairs a section with its narration, if one was requested.
type Entry struct {
	Section
	Narration string `json:"narration,omitempty"`
	Failed    bool   `json:"narration_failed,omitempty"`
}

// Report is the assembled output of one run.
type Report struct {
	RunID   string           `json:"run_id"`
	Entries []Entry          `json:"entries"`
	Result  *analysis.Result `json:"result"`
}

// Build assembles a report in Keys order. Narrations are matched by key;
// sections without one are left unnarrated.
func Build(runID string, res *analysis.Result, narrations []narration.Narration) *Report {
	byKey := make(map[string]narration.Narration, len(narrations))
	for _, n := range narrations {
		byKey[n.Key] = n
	}
	rep := &Report{RunID: runID, Result: res}
	for _, s := range Sections(res) {
		e := Entry{Section: s}
		if n, ok := byKey[s.Key]; ok {
			e.Narration, e.Failed = n.Text, n.Failed
		}
		rep.Entries = append(rep.Entries, e)
	}
	return rep
}

// Write renders rep to w.
func Write(w io.Writer, rep *Report, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("report: encode json: %w", err)
		}
		return nil
	default:
		return writeText(w, rep)
	}
}

func writeText(w io.Writer, rep *Report) error {
	for _, e := range rep.Entries {
		if e.Key == "group_timeline" {
			if _, err := fmt.Fprintf(w, "\n%s\n", e.Summary); err != nil {
				return err
			}
		} else if _, err := fmt.Fprintln(w, e.Summary); err != nil {
			return err
		}
		if e.Narration != "" {
			if _, err := fmt.Fprintf(w, "Description: %s\n", e.Narration); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
