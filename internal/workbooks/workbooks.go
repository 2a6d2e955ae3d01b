// Package workbooks loads ledger spreadsheets and CSV exports into tables
// and caches them by canonical path and content digest.
package workbooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vinodismyname/ritualstats/config"
	"github.com/vinodismyname/ritualstats/internal/records"
	"github.com/vinodismyname/ritualstats/internal/runtime"
)

// Handle is a loaded ledger table paired with its input identity and TTL
// metadata. The table is immutable; mu guards ExpiresAt only.
type Handle struct {
	ID        string
	Path      string
	Digest    string
	Sheet     string
	Table     *records.Table
	LoadedAt  time.Time
	ExpiresAt time.Time
	mu        sync.RWMutex
}

// WorkbookGate coordinates capacity for cached tables (backed by runtime.Controller).
type WorkbookGate interface {
	AcquireWorkbook(ctx context.Context) error
	ReleaseWorkbook()
}

// PathValidator abstracts filesystem path validation. Implementations
// return a canonical absolute path if allowed, or an error when denied.
type PathValidator interface {
	ValidateOpenPath(path string) (string, error)
}

// Manager loads ledger files into tables and caches them per canonical
// path until they go idle or the file content changes.
type Manager struct {
	mu           sync.RWMutex
	handles      map[string]*Handle
	byPath       map[string]string
	ttl          time.Duration
	cleanupEvery time.Duration
	clock        func() time.Time
	gate         WorkbookGate
	stopCh       chan struct{}
	stopOnce     sync.Once
	cleanupWG    sync.WaitGroup
	validator    PathValidator
	limits       Limits
}

// Limits bound a single load.
type Limits struct {
	MaxBytes int64
	MaxRows  int
}

var (
	// ErrHandleNotFound indicates an unknown or expired handle ID.
	ErrHandleNotFound = errors.New("workbooks: handle not found")
	// ErrTooLarge indicates the file exceeds the configured byte limit.
	ErrTooLarge = errors.New("workbooks: file too large")
	// ErrTooManyRows indicates the table exceeds the configured row limit.
	ErrTooManyRows = errors.New("workbooks: too many rows")
)

// LimitsFrom takes the input bounds from the runtime guardrails.
func LimitsFrom(l runtime.Limits) Limits {
	return Limits{MaxBytes: l.MaxInputBytes, MaxRows: l.MaxRows}
}

// NewManager constructs a loader with a TTL-bearing handle cache.
// Pass ttl or cleanupEvery <= 0 to use defaults from config.
// Gate can be nil for tests; clock defaults to time.Now when nil.
func NewManager(ttl, cleanupEvery time.Duration, gate WorkbookGate, clock func() time.Time) *Manager {
	if ttl <= 0 {
		ttl = config.DefaultWorkbookIdleTTL
	}
	if cleanupEvery <= 0 {
		cleanupEvery = config.DefaultWorkbookCleanupPeriod
	}
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		handles:      make(map[string]*Handle),
		byPath:       make(map[string]string),
		ttl:          ttl,
		cleanupEvery: cleanupEvery,
		clock:        clock,
		gate:         gate,
		stopCh:       make(chan struct{}),
		limits:       Limits{MaxBytes: config.DefaultMaxInputBytes, MaxRows: config.DefaultMaxRows},
	}
}

// WithValidator installs a path validator applied before every load.
func (m *Manager) WithValidator(v PathValidator) *Manager {
	m.validator = v
	return m
}

// WithLimits overrides the byte and row limits; zero fields keep defaults.
func (m *Manager) WithLimits(l Limits) *Manager {
	if l.MaxBytes > 0 {
		m.limits.MaxBytes = l.MaxBytes
	}
	if l.MaxRows > 0 {
		m.limits.MaxRows = l.MaxRows
	}
	return m
}

// Start launches periodic eviction of expired handles.
func (m *Manager) Start() {
	m.cleanupWG.Add(1)
	ticker := time.NewTicker(m.cleanupEvery)
	go func() {
		defer m.cleanupWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.EvictExpired()
			}
		}
	}()
}

// Close stops background cleanup and drops all handles.
func (m *Manager) Close(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	done := make(chan struct{})
	go func() { m.cleanupWG.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.handles {
		m.dropLocked(id)
	}
	return nil
}

// Load reads path into a table, reusing the cached handle when the file's
// digest has not changed. Capacity is held per cached handle via the gate.
func (m *Manager) Load(ctx context.Context, path string) (*Handle, error) {
	if _, err := formatOf(path); err != nil {
		return nil, err
	}
	if m.validator != nil {
		canonical, err := m.validator.ValidateOpenPath(path)
		if err != nil {
			return nil, err
		}
		path = canonical
	} else if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	data, err := m.read(path)
	if err != nil {
		return nil, err
	}
	digest := Digest(data)
	log := zerolog.Ctx(ctx).With().Str("path", path).Logger()

	if h, ok := m.cached(path, digest); ok {
		log.Debug().Str("handle", h.ID).Msg("table cache hit")
		return h, nil
	}

	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	tbl, sheet, err := Parse(path, data)
	if err != nil {
		m.release()
		return nil, err
	}
	if tbl.Len() > m.limits.MaxRows {
		m.release()
		return nil, fmt.Errorf("%w: %d rows (max %d)", ErrTooManyRows, tbl.Len(), m.limits.MaxRows)
	}

	now := m.clock()
	h := &Handle{
		ID:        uuid.NewString(),
		Path:      path,
		Digest:    digest,
		Sheet:     sheet,
		Table:     tbl,
		LoadedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
	m.mu.Lock()
	if old, ok := m.byPath[path]; ok {
		m.dropLocked(old)
	}
	m.handles[h.ID] = h
	m.byPath[path] = h.ID
	m.mu.Unlock()

	log.Info().Str("handle", h.ID).Int("rows", tbl.Len()).Str("sheet", sheet).Msg("table loaded")
	return h, nil
}

func (m *Manager) read(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("workbooks: stat %q: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("workbooks: %q is a directory", path)
	}
	if info.Size() > m.limits.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, info.Size(), m.limits.MaxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workbooks: read %q: %w", path, err)
	}
	return data, nil
}

func (m *Manager) cached(path, digest string) (*Handle, bool) {
	m.mu.RLock()
	id, ok := m.byPath[path]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	h, ok := m.Get(id)
	if !ok || h.Digest != digest {
		return nil, false
	}
	return h, true
}

// Get returns the handle when present and refreshes its TTL.
func (m *Manager) Get(id string) (*Handle, bool) {
	m.mu.RLock()
	h, ok := m.handles[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := m.clock()
	h.mu.Lock()
	h.ExpiresAt = now.Add(m.ttl)
	h.mu.Unlock()
	return h, true
}

// CloseHandle removes a handle by ID, releasing capacity via the gate.
func (m *Manager) CloseHandle(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.handles[id]; !ok {
		return ErrHandleNotFound
	}
	m.dropLocked(id)
	return nil
}

// EvictExpired drops handles idle past their TTL.
func (m *Manager) EvictExpired() {
	now := m.clock()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, h := range m.handles {
		if h.Expired(now) {
			m.dropLocked(id)
		}
	}
}

// Count returns the current number of cached handles.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handles)
}

func (m *Manager) dropLocked(id string) {
	h, ok := m.handles[id]
	if !ok {
		return
	}
	delete(m.handles, id)
	if m.byPath[h.Path] == id {
		delete(m.byPath, h.Path)
	}
	m.release()
}

func (m *Manager) acquire(ctx context.Context) error {
	if m.gate == nil {
		return nil
	}
	return m.gate.AcquireWorkbook(ctx)
}

func (m *Manager) release() {
	if m.gate == nil {
		return
	}
	m.gate.ReleaseWorkbook()
}

// Expired reports whether the handle has reached its TTL.
func (h *Handle) Expired(now time.Time) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return now.After(h.ExpiresAt)
}
