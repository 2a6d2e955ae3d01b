package insights

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/ritualstats/internal/narration"
	"github.com/vinodismyname/ritualstats/internal/schema"
	"github.com/vinodismyname/ritualstats/internal/session"
	"github.com/vinodismyname/ritualstats/internal/workbooks"
	"github.com/xuri/excelize/v2"
)

func writePrimary(t *testing.T, dir string) string {
	t.Helper()
	f := excelize.NewFile()
	sh := "Sheet1"
	rows := [][]string{
		{"Individual ID", "Group ID", "Gender", "Village/City", "Caste", "Year", "Month", "Ritual Name 1"},
		{"i1", "g1", "पुरुष", "Amer", "Jat", "1990", "January", "Mundan"},
		{"i2", "g1", "महिला", "Amer", "Jat", "1990", "January", "Mundan"},
		{"i3", "g2", "पुरुष", "Tonk", "Meena", "1992", "March", "Jadula"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sh, cell, &r))
	}
	path := filepath.Join(dir, "primary.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func writeMapped(t *testing.T, dir string) string {
	t.Helper()
	body := strings.Join([]string{
		"Final Merged Family Id,Family Id,Individual ID,Group ID,Date of Ritual,Year,Village/City",
		"GROUP1,f1,i1,g1,5 January 1990,1990,Amer",
		"GROUP1,f2,i2,g2,10 March 1992,1992,Tonk",
		"GROUP2,f3,i3,g3,1 April 1980,1980,Sikar",
	}, "\n")
	path := filepath.Join(dir, "mapped.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

type countingRecorder struct {
	hits, misses, computed atomic.Int32
}

func (r *countingRecorder) CacheLookup(hit bool) {
	if hit {
		r.hits.Add(1)
		return
	}
	r.misses.Add(1)
}

func (r *countingRecorder) AnalysisComputed() { r.computed.Add(1) }

func newService(t *testing.T, gen narration.Generator) (*Service, *countingRecorder) {
	t.Helper()
	mgr := workbooks.NewManager(time.Minute, time.Minute, nil, nil)
	t.Cleanup(func() { _ = mgr.Close(context.Background()) })
	rec := &countingRecorder{}
	svc := &Service{Mgr: mgr, Store: session.NewStore(time.Hour, 0), Recorder: rec}
	if gen != nil {
		svc.Narrator = narration.NewNarrator(gen, narration.DefaultPolicy(), 2).
			WithSleep(func(context.Context, time.Duration) error { return nil })
	}
	return svc, rec
}

func TestAnalyze_PrimaryOnlyThenCached(t *testing.T) {
	dir := t.TempDir()
	svc, rec := newService(t, nil)
	in := AnalyzeInput{PrimaryPath: writePrimary(t, dir)}

	out, err := svc.Analyze(context.Background(), in)
	require.NoError(t, err)
	require.False(t, out.Cached)
	require.Equal(t, "Sheet1", out.PrimarySheet)
	require.Equal(t, 3, out.Report.Result.Individuals.Value)
	require.Equal(t, "Mapped data not available.", out.Report.Result.Repeated.Note)
	require.Len(t, out.Report.Entries, 10)

	again, err := svc.Analyze(context.Background(), in)
	require.NoError(t, err)
	require.True(t, again.Cached)
	require.Equal(t, out.Report.RunID, again.Report.RunID)
	require.Equal(t, int32(1), rec.computed.Load())
	require.Equal(t, int32(1), rec.hits.Load())
}

func TestAnalyze_WithMappedAndMissingMapped(t *testing.T) {
	dir := t.TempDir()
	svc, _ := newService(t, nil)
	primary := writePrimary(t, dir)

	out, err := svc.Analyze(context.Background(), AnalyzeInput{PrimaryPath: primary, MappedPath: writeMapped(t, dir)})
	require.NoError(t, err)
	require.Equal(t, 2, out.Report.Result.Repeated.Value)
	require.Equal(t, "GROUP1", out.Report.Result.Timeline.GroupID)

	out, err = svc.Analyze(context.Background(), AnalyzeInput{PrimaryPath: primary, MappedPath: filepath.Join(dir, "absent.csv")})
	require.NoError(t, err)
	require.Equal(t, "Mapped data not available.", out.MappedNote)
	require.False(t, out.Report.Result.Timeline.Computed)
}

func TestAnalyze_Errors(t *testing.T) {
	dir := t.TempDir()
	svc, _ := newService(t, nil)

	_, err := svc.Analyze(context.Background(), AnalyzeInput{PrimaryPath: "ledger.txt"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Analyze(context.Background(), AnalyzeInput{PrimaryPath: writePrimary(t, dir), Narrate: true})
	require.ErrorIs(t, err, ErrNarrationUnavailable)

	_, err = svc.Analyze(context.Background(), AnalyzeInput{PrimaryPath: filepath.Join(dir, "nope.xlsx")})
	var le *LoadError
	require.True(t, errors.As(err, &le))
	require.Equal(t, "primary", le.Role)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestAnalyze_NarratesComputedSectionsOnce(t *testing.T) {
	var calls atomic.Int32
	gen := narration.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		return "A short note.", nil
	})
	svc, _ := newService(t, gen)
	in := AnalyzeInput{PrimaryPath: writePrimary(t, t.TempDir()), Narrate: true}

	out, err := svc.Analyze(context.Background(), in)
	require.NoError(t, err)
	for _, e := range out.Report.Entries {
		if e.Computed {
			require.Equal(t, "A short note.", e.Narration, e.Key)
		} else {
			require.Empty(t, e.Narration, e.Key)
		}
	}
	first := calls.Load()
	require.Equal(t, int32(8), first)

	_, err = svc.Analyze(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, first, calls.Load())
}

func TestAnalyze_FailedNarrationsAreNotCached(t *testing.T) {
	var calls atomic.Int32
	gen := narration.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		return "", narration.ErrUnauthorized
	})
	svc, _ := newService(t, gen)
	in := AnalyzeInput{PrimaryPath: writePrimary(t, t.TempDir()), Narrate: true}

	out, err := svc.Analyze(context.Background(), in)
	require.NoError(t, err)
	require.True(t, out.Report.Entries[0].Failed)
	require.True(t, strings.HasPrefix(out.Report.Entries[0].Narration, "[Could not generate description:"))

	_, err = svc.Analyze(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, int32(16), calls.Load())
}

func TestTimeline(t *testing.T) {
	dir := t.TempDir()
	gen := narration.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		if !strings.Contains(prompt, "GROUP2") {
			return "", errors.New("unexpected prompt")
		}
		return "An old family.", nil
	})
	svc, _ := newService(t, gen)
	mapped := writeMapped(t, dir)

	out, err := svc.Timeline(context.Background(), TimelineInput{MappedPath: mapped, GroupID: "GROUP2", Narrate: true})
	require.NoError(t, err)
	require.True(t, out.Timeline.Pinned)
	require.Contains(t, out.Summary, "Selected GROUP is GROUP2 with 1 distinct families.")
	require.Equal(t, "An old family.", out.Narration)

	_, err = svc.Timeline(context.Background(), TimelineInput{MappedPath: mapped, GroupID: "GROUP9"})
	require.ErrorIs(t, err, ErrGroupNotFound)
}

func TestDescribe(t *testing.T) {
	svc, _ := newService(t, nil)
	out, err := svc.Describe(context.Background(), DescribeInput{Path: writeMapped(t, t.TempDir())})
	require.NoError(t, err)
	require.Equal(t, 3, out.Rows)
	require.Equal(t, "Final Merged Family Id", out.Columns[string(schema.MergedID)])
	require.Contains(t, out.Missing, "Gender")

	feasible := map[schema.Computation]bool{}
	for _, f := range append(out.Primary, out.Mapped...) {
		feasible[f.Computation] = f.Feasible
	}
	require.True(t, feasible[schema.GroupTimeline])
	require.True(t, feasible[schema.Individuals])
	require.False(t, feasible[schema.GenderSplit])
}
