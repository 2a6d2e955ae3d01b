// Package session caches analysis results keyed on the identity of their
// inputs so repeat requests over unchanged files skip recomputation.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vinodismyname/ritualstats/config"
	"github.com/vinodismyname/ritualstats/internal/analysis"
	"github.com/vinodismyname/ritualstats/internal/narration"
)

// Entry is one cached run. Result is never mutated after Put.
type Entry struct {
	ID         string
	Key        string
	Result     *analysis.Result
	Narrations []narration.Narration
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store is an in-memory TTL cache. It is not persisted and is safe for
// concurrent access.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewStore builds a store; ttl <= 0 uses the default and maxEntries <= 0
// means unbounded.
func NewStore(ttl time.Duration, maxEntries int) *Store {
	if ttl <= 0 {
		ttl = config.DefaultSessionTTL
	}
	return &Store{
		entries:    map[string]*Entry{},
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Key derives the cache key from input digests and the options that affect
// the result. An absent mapped table has an empty digest.
func Key(primaryDigest, mappedDigest string, opts analysis.Options) string {
	return fmt.Sprintf("%s|%s|%d|%s|%s", primaryDigest, mappedDigest, opts.TopN, opts.GroupPrefix, opts.GroupID)
}

// Get returns a live entry, dropping it when expired.
func (s *Store) Get(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.now().Sub(e.UpdatedAt) > s.ttl {
		delete(s.entries, key)
		return nil, false
	}
	return e, true
}

// Put caches res under key, replacing any previous entry.
func (s *Store) Put(key string, res *analysis.Result) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e := &Entry{ID: uuid.NewString(), Key: key, Result: res, CreatedAt: now, UpdatedAt: now}
	s.entries[key] = e
	s.evictLocked()
	return e
}

// SetNarrations attaches generated narrations to an entry.
func (s *Store) SetNarrations(e *Entry, ns []narration.Narration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Narrations = append([]narration.Narration(nil), ns...)
	e.UpdatedAt = s.now()
}

// NarrationsOf returns a copy of the narrations attached to e.
func (s *Store) NarrationsOf(e *Entry) []narration.Narration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]narration.Narration(nil), e.Narrations...)
}

// Sweep removes expired entries and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, e := range s.entries {
		if now.Sub(e.UpdatedAt) > s.ttl {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Len reports the number of cached entries, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// evictLocked drops the least recently updated entries above maxEntries.
func (s *Store) evictLocked() {
	if s.maxEntries <= 0 || len(s.entries) <= s.maxEntries {
		return
	}
	all := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.Before(all[j].UpdatedAt) })
	for _, e := range all[:len(all)-s.maxEntries] {
		delete(s.entries, e.Key)
	}
}
