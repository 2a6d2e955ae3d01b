package workbooks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/ritualstats/internal/runtime"
	"github.com/xuri/excelize/v2"
)

// fakeGate implements WorkbookGate for tests with counters.
type fakeGate struct {
	acquireErr error
	acquires   atomic.Int64
	releases   atomic.Int64
}

func (g *fakeGate) AcquireWorkbook(ctx context.Context) error {
	g.acquires.Add(1)
	return g.acquireErr
}
func (g *fakeGate) ReleaseWorkbook() { g.releases.Add(1) }

func createLedger(t *testing.T, dir string) string {
	t.Helper()
	f := excelize.NewFile()
	sh := "Ledger"
	f.SetSheetName("Sheet1", sh)
	require.NoError(t, f.SetSheetRow(sh, "A1", &[]string{" Individual ID", "Group ID ", "Gender", "Village/City"}))
	require.NoError(t, f.SetSheetRow(sh, "A2", &[]string{"A", "F1", "पुरुष", "Amer"}))
	require.NoError(t, f.SetSheetRow(sh, "A3", &[]string{"B", "F1", "महिला", "Amer"}))
	// second sheet is ignored
	_, err := f.NewSheet("Notes")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Notes", "A1", &[]string{"scratch"}))

	path := filepath.Join(dir, "ledger.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestLoad_FirstSheetAndCache(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(time.Minute, time.Minute, gate, time.Now)
	path := createLedger(t, t.TempDir())

	h, err := m.Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "Ledger", h.Sheet)
	require.Equal(t, []string{"Individual ID", "Group ID", "Gender", "Village/City"}, h.Table.Headers())
	require.Equal(t, 2, h.Table.Len())
	require.Equal(t, "महिला", h.Table.Value(1, "Gender"))
	require.Len(t, h.Digest, 64)

	again, err := m.Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, h.ID, again.ID)
	require.Equal(t, int64(1), gate.acquires.Load())
	require.Equal(t, 1, m.Count())
}

func TestLoad_ReloadsWhenContentChanges(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(time.Minute, time.Minute, gate, time.Now)
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.csv")
	require.NoError(t, os.WriteFile(path, []byte("\xef\xbb\xbfGroup ID,Caste\nF1,Jat\n"), 0o600))

	h1, err := m.Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, []string{"Group ID", "Caste"}, h1.Table.Headers())
	require.Empty(t, h1.Sheet)

	require.NoError(t, os.WriteFile(path, []byte("Group ID,Caste\nF1,Jat\nF2,Meena\n"), 0o600))
	h2, err := m.Load(context.Background(), path)
	require.NoError(t, err)
	require.NotEqual(t, h1.ID, h2.ID)
	require.NotEqual(t, h1.Digest, h2.Digest)
	require.Equal(t, 2, h2.Table.Len())

	// the stale handle was replaced and its slot released
	require.Equal(t, 1, m.Count())
	require.Equal(t, int64(2), gate.acquires.Load())
	require.Equal(t, int64(1), gate.releases.Load())
}

func TestTTLExpiryAndEviction(t *testing.T) {
	var now atomic.Int64
	now.Store(time.Now().UnixNano())
	clock := func() time.Time { return time.Unix(0, now.Load()) }

	gate := &fakeGate{}
	m := NewManager(50*time.Millisecond, 5*time.Millisecond, gate, clock)
	h, err := m.Load(context.Background(), createLedger(t, t.TempDir()))
	require.NoError(t, err)
	require.Equal(t, 1, m.Count())

	now.Store(time.Now().Add(200 * time.Millisecond).UnixNano())
	m.EvictExpired()

	require.Equal(t, 0, m.Count())
	require.Equal(t, int64(1), gate.releases.Load())
	_, ok := m.Get(h.ID)
	require.False(t, ok)
	require.ErrorIs(t, m.CloseHandle(h.ID), ErrHandleNotFound)
}

func TestLoad_UnsupportedFormatSkipsGate(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(time.Second, time.Second, gate, time.Now)

	_, err := m.Load(context.Background(), "notes.txt")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	require.Equal(t, int64(0), gate.acquires.Load())
}

func TestLoad_GateBusy(t *testing.T) {
	gate := &fakeGate{acquireErr: context.DeadlineExceeded}
	m := NewManager(time.Second, time.Second, gate, time.Now)

	_, err := m.Load(context.Background(), createLedger(t, t.TempDir()))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, int64(1), gate.acquires.Load())
	require.Equal(t, int64(0), gate.releases.Load())
}

type denyValidator struct{}

func (denyValidator) ValidateOpenPath(string) (string, error) { return "", fmt.Errorf("denied") }

func TestLoad_PathValidatorDenied(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(time.Second, time.Second, gate, time.Now).WithValidator(denyValidator{})

	_, err := m.Load(context.Background(), "ok.xlsx")
	require.EqualError(t, err, "denied")
	require.Equal(t, int64(0), gate.acquires.Load())
}

func TestLoad_Limits(t *testing.T) {
	dir := t.TempDir()
	path := createLedger(t, dir)

	m := NewManager(time.Second, time.Second, nil, time.Now).WithLimits(Limits{MaxBytes: 10})
	_, err := m.Load(context.Background(), path)
	require.ErrorIs(t, err, ErrTooLarge)

	gate := &fakeGate{}
	m = NewManager(time.Second, time.Second, gate, time.Now).WithLimits(Limits{MaxRows: 1})
	_, err = m.Load(context.Background(), path)
	require.ErrorIs(t, err, ErrTooManyRows)
	require.Equal(t, gate.acquires.Load(), gate.releases.Load())

	_, err = m.Load(context.Background(), filepath.Join(dir, "missing.xlsx"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLimitsFrom_RuntimeGuardrails(t *testing.T) {
	limits := runtime.NewLimits(1, 1)
	limits.MaxRows = 1
	require.Equal(t, Limits{MaxBytes: limits.MaxInputBytes, MaxRows: 1}, LimitsFrom(limits))

	m := NewManager(time.Second, time.Second, runtime.NewController(limits), time.Now).WithLimits(LimitsFrom(limits))
	_, err := m.Load(context.Background(), createLedger(t, t.TempDir()))
	require.ErrorIs(t, err, ErrTooManyRows)
}

func TestParse_EmptyCSV(t *testing.T) {
	_, _, err := Parse("empty.csv", nil)
	require.ErrorIs(t, err, ErrEmptyTable)

	tbl, _, err := Parse("short.csv", []byte("Group ID,Month\nF1\n"))
	require.NoError(t, err)
	require.Equal(t, "", tbl.Value(0, "Month"))
}

func TestClose_DropsHandles(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(time.Minute, time.Millisecond, gate, time.Now)
	m.Start()
	_, err := m.Load(context.Background(), createLedger(t, t.TempDir()))
	require.NoError(t, err)

	require.NoError(t, m.Close(context.Background()))
	require.Equal(t, 0, m.Count())
	require.Equal(t, int64(1), gate.releases.Load())
}
