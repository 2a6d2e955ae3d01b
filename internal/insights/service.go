// Package insights runs the load, analyze and narrate pipeline shared by the
// command line and the MCP tools.
package insights

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/vinodismyname/ritualstats/internal/analysis"
	"github.com/vinodismyname/ritualstats/internal/narration"
	"github.com/vinodismyname/ritualstats/internal/records"
	"github.com/vinodismyname/ritualstats/internal/report"
	"github.com/vinodismyname/ritualstats/internal/schema"
	"github.com/vinodismyname/ritualstats/internal/security"
	"github.com/vinodismyname/ritualstats/internal/session"
	"github.com/vinodismyname/ritualstats/internal/workbooks"
	"github.com/vinodismyname/ritualstats/pkg/validation"
)

var (
	// ErrInvalidInput wraps input validation failures.
	ErrInvalidInput = errors.New("insights: invalid input")
	// ErrNarrationUnavailable is returned when narration is requested but
	// no generator is configured.
	ErrNarrationUnavailable = errors.New("insights: no text-generation model configured")
	// ErrGroupNotFound is returned when a pinned merged group is absent.
	ErrGroupNotFound = errors.New("insights: merged family group not found")
)

// LoadError reports which input failed to load.
type LoadError struct {
	Role string
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("insights: load %s table %q: %v", e.Role, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Recorder observes cache and computation events, typically telemetry.
type Recorder interface {
	CacheLookup(hit bool)
	AnalysisComputed()
}

// Service holds dependencies for the pipeline. Narrator may be nil, in
// which case narration requests fail with ErrNarrationUnavailable.
type Service struct {
	Mgr      *workbooks.Manager
	Store    *session.Store
	Narrator *narration.Narrator
	Recorder Recorder
}

// AnalyzeInput selects the ledgers and options for a full run.
type AnalyzeInput struct {
	PrimaryPath string `json:"primary_path" validate:"required,ledger_ext" jsonschema_description:"Path to the primary ledger (.xlsx, .xlsm or .csv)"`
	MappedPath  string `json:"mapped_path,omitempty" validate:"omitempty,ledger_ext" jsonschema_description:"Optional path to the mapped ledger carrying merged family ids"`
	TopN        int    `json:"top_n,omitempty" validate:"omitempty,min=1,max=50" jsonschema_description:"Entries per ranking (default 5)"`
	GroupPrefix string `json:"group_prefix,omitempty" validate:"group_token" jsonschema_description:"Merged family id prefix (default GROUP)"`
	GroupID     string `json:"group_id,omitempty" validate:"group_token" jsonschema_description:"Pin the group timeline to this merged id instead of the most repeated group"`
	Narrate     bool   `json:"narrate,omitempty" jsonschema_description:"Generate a short description for every computed section"`
}

// AnalyzeOutput is the assembled report plus load metadata.
type AnalyzeOutput struct {
	Report       *report.Report `json:"report"`
	Cached       bool           `json:"cached"`
	PrimarySheet string         `json:"primary_sheet,omitempty"`
	MappedSheet  string         `json:"mapped_sheet,omitempty"`
	MappedNote   string         `json:"mapped_note,omitempty"`
}

// Analyze loads the ledgers, reuses a cached result when the inputs are
// unchanged, and optionally narrates every computed section. A mapped path
// that does not exist is reported as not available rather than failing.
func (s *Service) Analyze(ctx context.Context, in AnalyzeInput) (AnalyzeOutput, error) {
	var out AnalyzeOutput
	if err := validation.Struct(in); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.Narrate && s.Narrator == nil {
		return out, ErrNarrationUnavailable
	}
	log := zerolog.Ctx(ctx)

	primary, err := s.Mgr.Load(ctx, in.PrimaryPath)
	if err != nil {
		return out, &LoadError{Role: "primary", Path: in.PrimaryPath, Err: err}
	}
	out.PrimarySheet = primary.Sheet

	var mapped *workbooks.Handle
	if in.MappedPath != "" {
		mapped, err = s.Mgr.Load(ctx, in.MappedPath)
		switch {
		case err == nil:
			out.MappedSheet = mapped.Sheet
		case missing(err):
			log.Warn().Str("path", in.MappedPath).Msg("mapped table not found; linkage skipped")
			out.MappedNote = "Mapped data not available."
		default:
			return out, &LoadError{Role: "mapped", Path: in.MappedPath, Err: err}
		}
	}

	opts := analysis.Options{TopN: in.TopN, GroupPrefix: in.GroupPrefix, GroupID: in.GroupID}
	mappedDigest := ""
	var mappedTable *records.Table
	if mapped != nil {
		mappedDigest, mappedTable = mapped.Digest, mapped.Table
	}
	key := session.Key(primary.Digest, mappedDigest, opts)

	entry, hit := s.Store.Get(key)
	s.cacheLookup(hit)
	if !hit {
		res := analysis.Analyze(primary.Table, mappedTable, opts)
		if s.Recorder != nil {
			s.Recorder.AnalysisComputed()
		}
		entry = s.Store.Put(key, res)
		log.Info().Str("run_id", entry.ID).Msg("analysis computed")
	} else {
		log.Debug().Str("run_id", entry.ID).Msg("analysis cache hit")
	}
	out.Cached = hit

	var ns []narration.Narration
	if in.Narrate {
		ns, err = s.narrate(ctx, entry)
		if err != nil {
			return out, err
		}
	}
	out.Report = report.Build(entry.ID, entry.Result, ns)
	return out, nil
}

// narrate reuses cached narrations when every one of them succeeded.
func (s *Service) narrate(ctx context.Context, entry *session.Entry) ([]narration.Narration, error) {
	if prior := s.Store.NarrationsOf(entry); len(prior) > 0 {
		return prior, nil
	}
	items := report.Items(report.Sections(entry.Result), entry.Result)
	ns, err := s.Narrator.Narrate(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("insights: narrate: %w", err)
	}
	for _, n := range ns {
		if n.Failed {
			return ns, nil
		}
	}
	s.Store.SetNarrations(entry, ns)
	return ns, nil
}

// TimelineInput selects a mapped ledger and the group to reconstruct.
type TimelineInput struct {
	MappedPath  string `json:"mapped_path" validate:"required,ledger_ext" jsonschema_description:"Path to the mapped ledger carrying merged family ids"`
	GroupPrefix string `json:"group_prefix,omitempty" validate:"group_token" jsonschema_description:"Merged family id prefix (default GROUP)"`
	GroupID     string `json:"group_id,omitempty" validate:"group_token" jsonschema_description:"Merged id to reconstruct; defaults to the most repeated group"`
	Narrate     bool   `json:"narrate,omitempty" jsonschema_description:"Generate a short description of the timeline"`
}

// TimelineOutput carries the reconstructed group and its rendered text.
type TimelineOutput struct {
	Timeline        analysis.GroupTimeline `json:"timeline"`
	Summary         string                 `json:"summary"`
	Narration       string                 `json:"narration,omitempty"`
	NarrationFailed bool                   `json:"narration_failed,omitempty"`
	Sheet           string                 `json:"sheet,omitempty"`
}

// Timeline reconstructs one merged family group from the mapped ledger.
// A pinned group id the ledger does not carry yields ErrGroupNotFound.
func (s *Service) Timeline(ctx context.Context, in TimelineInput) (TimelineOutput, error) {
	var out TimelineOutput
	if err := validation.Struct(in); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.Narrate && s.Narrator == nil {
		return out, ErrNarrationUnavailable
	}

	mapped, err := s.Mgr.Load(ctx, in.MappedPath)
	if err != nil {
		return out, &LoadError{Role: "mapped", Path: in.MappedPath, Err: err}
	}
	out.Sheet = mapped.Sheet

	gt := analysis.Timeline(mapped.Table, analysis.Options{GroupPrefix: in.GroupPrefix, GroupID: in.GroupID})
	if gt.Unmatched() {
		return out, fmt.Errorf("%w: %s", ErrGroupNotFound, in.GroupID)
	}
	out.Timeline = gt
	out.Summary = report.Timeline(gt)

	if in.Narrate && gt.Computed {
		res := &analysis.Result{Timeline: gt}
		sec := report.Section{Key: "group_timeline", Summary: out.Summary, Computed: true}
		ns, err := s.Narrator.Narrate(ctx, []narration.Item{{Key: sec.Key, Prompt: report.Prompt(sec, res)}})
		if err != nil {
			return out, fmt.Errorf("insights: narrate: %w", err)
		}
		out.Narration, out.NarrationFailed = ns[0].Text, ns[0].Failed
	}
	return out, nil
}

// DescribeInput names one ledger to inspect.
type DescribeInput struct {
	Path string `json:"path" validate:"required,ledger_ext" jsonschema_description:"Path to a primary or mapped ledger"`
}

// DescribeOutput reports which logical fields resolved and which
// computations the ledger supports.
type DescribeOutput struct {
	Path    string               `json:"path"`
	Sheet   string               `json:"sheet,omitempty"`
	Rows    int                  `json:"rows"`
	Headers []string             `json:"headers"`
	Columns map[string]string    `json:"columns"`
	Missing []string             `json:"missing,omitempty"`
	Primary []schema.Feasibility `json:"primary"`
	Mapped  []schema.Feasibility `json:"mapped"`
}

// Describe resolves a ledger's headers against the alias table.
func (s *Service) Describe(ctx context.Context, in DescribeInput) (DescribeOutput, error) {
	var out DescribeOutput
	if err := validation.Struct(in); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	h, err := s.Mgr.Load(ctx, in.Path)
	if err != nil {
		return out, &LoadError{Role: "input", Path: in.Path, Err: err}
	}
	res := schema.Resolve(h.Table.Headers())

	out.Path = h.Path
	out.Sheet = h.Sheet
	out.Rows = h.Table.Len()
	out.Headers = h.Table.Headers()
	out.Columns = map[string]string{}
	for f, c := range res.Columns() {
		out.Columns[string(f)] = c
	}
	for f := range schema.Aliases {
		if !res.Has(f) {
			out.Missing = append(out.Missing, f.Canonical())
		}
	}
	sort.Strings(out.Missing)
	out.Primary = res.Check(schema.PrimaryRequirements)
	out.Mapped = res.Check(schema.MappedRequirements)
	return out, nil
}

func (s *Service) cacheLookup(hit bool) {
	if s.Recorder != nil {
		s.Recorder.CacheLookup(hit)
	}
}

func missing(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, security.ErrNotFound)
}
