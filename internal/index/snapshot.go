package index

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/mailmarks/internal/domain"
)

// Snapshot holds the result of the last successful rebuild for the preview
// server. It is replaced wholesale on every rebuild.
type Snapshot struct {
	mu          sync.RWMutex
	entries     []domain.Entry
	skipped     int
	lastRebuild time.Time
}

// NewSnapshot creates an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Replace swaps in the entries of a new rebuild
func (s *Snapshot) Replace(entries []domain.Entry, skipped int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append([]domain.Entry(nil), entries...)
	s.skipped = skipped
	s.lastRebuild = time.Now()
}

// All returns every entry, newest first
func (s *Snapshot) All() []domain.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// ByTag returns the entries carrying tag, newest first
func (s *Snapshot) ByTag(tag string) []domain.Entry {
	return s.filter(func(e domain.Entry) bool { return e.HasTag(tag) })
}

// ByDomain returns the entries whose display domain is d, newest first
func (s *Snapshot) ByDomain(d string) []domain.Entry {
	return s.filter(func(e domain.Entry) bool { return e.Domain == d })
}

func (s *Snapshot) filter(keep func(domain.Entry) bool) []domain.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of entries
func (s *Snapshot) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Skipped returns the number of files the last rebuild ignored
func (s *Snapshot) Skipped() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.skipped
}

// LastRebuild returns the time of the last rebuild, zero before the first one
func (s *Snapshot) LastRebuild() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastRebuild
}

// Ready reports whether at least one rebuild completed
func (s *Snapshot) Ready() bool {
	return !s.LastRebuild().IsZero()
}
