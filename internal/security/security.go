// Package security confines ledger loads in server mode to operator-approved
// directories and file types.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvAllowedDirs holds the allow-list as an OS path list.
const EnvAllowedDirs = "RITUALSTATS_ALLOWED_DIRS"

// DefaultExtensions are the ledger formats the loader reads.
var DefaultExtensions = []string{".xlsx", ".xlsm", ".csv"}

// Manager resolves allow-list roots to canonical absolute paths and
// validates that requested ledgers live inside them.
type Manager struct {
	allowedDirs []string
	allowedExts map[string]struct{}
}

var (
	// ErrNotAllowed indicates the requested path is outside the allow-list roots.
	ErrNotAllowed = errors.New("security: path not allowed")
	// ErrUnsupportedExtension indicates the requested file extension is not supported.
	ErrUnsupportedExtension = errors.New("security: unsupported file extension")
	// ErrNotFound indicates the requested file does not exist or is not accessible.
	ErrNotFound = errors.New("security: file not found")
	// ErrNoAllowedDirs indicates an empty allow-list.
	ErrNoAllowedDirs = errors.New("security: no allowed directories configured")
)

// NewManager canonicalizes allowDirs (absolute + EvalSymlinks) and the
// extension list (lowercase, leading dot). Empty extensions use the defaults.
func NewManager(allowDirs []string, extensions []string) (*Manager, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || !strings.HasPrefix(e, ".") {
			return nil, fmt.Errorf("security: invalid extension: %q", e)
		}
		exts[e] = struct{}{}
	}

	roots := make([]string, 0, len(allowDirs))
	for _, d := range allowDirs {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		real, err := canonical(d)
		if err != nil {
			return nil, fmt.Errorf("security: allow-list entry %q: %w", d, err)
		}
		info, err := os.Stat(real)
		if err != nil {
			return nil, fmt.Errorf("security: stat %q: %w", real, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("security: allow-list entry is not a directory: %q", real)
		}
		roots = append(roots, real)
	}
	return &Manager{allowedDirs: roots, allowedExts: exts}, nil
}

// NewManagerFromEnv reads EnvAllowedDirs. An unset variable yields an empty
// allow-list, which denies every path.
func NewManagerFromEnv() (*Manager, error) {
	return NewManager(SplitList(os.Getenv(EnvAllowedDirs)), nil)
}

// SplitList splits an OS path list, dropping empty entries.
func SplitList(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	var out []string
	for _, p := range filepath.SplitList(list) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AllowedDirectories returns the canonical allow-list roots.
func (m *Manager) AllowedDirectories() []string {
	out := make([]string, len(m.allowedDirs))
	copy(out, m.allowedDirs)
	return out
}

// ValidateConfig fails when no roots are configured, so server startup can
// refuse to expose file loading until an operator opts in.
func (m *Manager) ValidateConfig() error {
	if len(m.allowedDirs) == 0 {
		return ErrNoAllowedDirs
	}
	return nil
}

// ValidateOpenPath returns the canonical path of an existing ledger with an
// allowed extension inside one of the roots.
func (m *Manager) ValidateOpenPath(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", ErrNotAllowed
	}
	if _, ok := m.extFor(input); !ok {
		return "", ErrUnsupportedExtension
	}

	real, err := canonical(input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("security: resolve %q: %w", input, err)
	}
	info, err := os.Stat(real)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("security: stat: %w", err)
	}
	if info.IsDir() {
		return "", ErrNotAllowed
	}
	// a symlink target must carry an allowed extension too
	if _, ok := m.extFor(real); !ok {
		return "", ErrUnsupportedExtension
	}
	for _, root := range m.allowedDirs {
		if within(root, real) {
			return real, nil
		}
	}
	return "", ErrNotAllowed
}

func (m *Manager) extFor(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := m.allowedExts[ext]
	return ext, ok
}

func canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return filepath.Clean(real), nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
