package index

import (
	"sync"
	"testing"

	"github.com/MrSnakeDoc/mailmarks/internal/domain"
)

func testEntries() []domain.Entry {
	return []domain.Entry{
		{Title: "a", URL: "https://github.com/a", Domain: "github.com", Tags: []string{"github"}},
		{Title: "b", URL: "https://www.youtube.com/b", Domain: "youtube.com", Tags: []string{"youtube"}},
		{Title: "c", URL: "https://github.com/c", Domain: "github.com", Tags: []string{"manual", "github"}},
	}
}

func TestNewSnapshot(t *testing.T) {
	s := NewSnapshot()
	if s.Count() != 0 {
		t.Errorf("NewSnapshot() should start empty, got %v entries", s.Count())
	}
	if s.Ready() {
		t.Error("NewSnapshot() should not be ready before the first rebuild")
	}
}

func TestReplace(t *testing.T) {
	s := NewSnapshot()
	s.Replace(testEntries(), 2)

	if s.Count() != 3 {
		t.Errorf("Replace() stored %v entries, want 3", s.Count())
	}
	if s.Skipped() != 2 {
		t.Errorf("Skipped() = %v, want 2", s.Skipped())
	}
	if !s.Ready() {
		t.Error("Ready() should be true after Replace()")
	}

	s.Replace(testEntries()[:1], 0)
	if s.Count() != 1 {
		t.Errorf("Replace() should overwrite, got %v entries want 1", s.Count())
	}
}

func TestAllKeepsOrder(t *testing.T) {
	s := NewSnapshot()
	s.Replace(testEntries(), 0)

	all := s.All()
	for i, want := range []string{"a", "b", "c"} {
		if all[i].Title != want {
			t.Errorf("All()[%d].Title = %q, want %q", i, all[i].Title, want)
		}
	}

	all[0].Title = "changed"
	if s.All()[0].Title != "a" {
		t.Error("All() should return a copy")
	}
}

func TestFilters(t *testing.T) {
	s := NewSnapshot()
	s.Replace(testEntries(), 0)

	tests := []struct {
		name string
		got  []domain.Entry
		want []string
	}{
		{"by tag github", s.ByTag("github"), []string{"a", "c"}},
		{"by tag manual", s.ByTag("manual"), []string{"c"}},
		{"by tag unknown", s.ByTag("nope"), nil},
		{"by domain", s.ByDomain("youtube.com"), []string{"b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.got) != len(tt.want) {
				t.Fatalf("got %v entries, want %v", len(tt.got), len(tt.want))
			}
			for i := range tt.want {
				if tt.got[i].Title != tt.want[i] {
					t.Errorf("entry %d = %q, want %q", i, tt.got[i].Title, tt.want[i])
				}
			}
		})
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewSnapshot()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.All()
			_ = s.ByTag("github")
		}()
		go func() {
			defer wg.Done()
			s.Replace(testEntries(), 0)
		}()
	}

	wg.Wait()

	if s.Count() != 3 {
		t.Errorf("Count() = %v, want 3", s.Count())
	}
}
