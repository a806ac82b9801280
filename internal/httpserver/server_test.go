package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/mailmarks/internal/domain"
	"github.com/MrSnakeDoc/mailmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mailmarks/internal/index"
	"github.com/MrSnakeDoc/mailmarks/internal/logger"
)

type fakeRebuilder struct {
	accept bool
	calls  int
}

func (f *fakeRebuilder) Trigger() bool {
	f.calls++
	return f.accept
}

type fakeLedger struct {
	count int64
	run   domain.IngestRun
	ok    bool
}

func (f fakeLedger) CountIngested(context.Context) (int64, error) { return f.count, nil }

func (f fakeLedger) LastRun(context.Context) (domain.IngestRun, bool, error) {
	return f.run, f.ok, nil
}

func testDeps(t *testing.T) deps.Deps {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"2024-03-02-go-1.md":   "---\nid: 2024-03-02-go-1\n---\n",
		"2024-03-01-tube-1.md": "---\nid: 2024-03-01-tube-1\n---\n",
		"notes.txt":            "not a bookmark",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	snapshot := index.NewSnapshot()
	snapshot.Replace([]domain.Entry{
		{
			Title: "Go release", URL: "https://go.dev/blog", Domain: "go.dev",
			Datetime: time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), DatetimeDisplay: "2024-03-02 10:00",
			Tags: []string{"go"}, Source: domain.SourceEmail,
			Path: filepath.Join(dir, "2024-03-02-go-1.md"), DetailsPath: "../vault/2024-03-02-go-1.md",
		},
		{
			Title: "Talk", URL: "https://www.youtube.com/watch?v=1", Domain: "youtube.com",
			Datetime: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), DatetimeDisplay: "2024-03-01 09:00",
			Tags: []string{"video", "youtube"}, Source: domain.SourceEmail,
			Path: filepath.Join(dir, "2024-03-01-tube-1.md"), DetailsPath: "../vault/2024-03-01-tube-1.md",
		},
	}, 0)

	return deps.Deps{
		Logger:     logger.NewNop(),
		StartTime:  time.Now(),
		Version:    "test",
		ContentDir: dir,
		Snapshot:   snapshot,
	}
}

func do(t *testing.T, d deps.Deps, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	NewRouter(d.Logger, d).ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := do(t, testDeps(t), http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want 200", rec.Code)
	}

	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Version != "test" {
		t.Errorf("GET /healthz body = %+v", body)
	}
}

func TestReadyz(t *testing.T) {
	d := testDeps(t)
	if rec := do(t, d, http.MethodGet, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("GET /readyz = %d, want 200", rec.Code)
	}

	d.Snapshot = index.NewSnapshot()
	if rec := do(t, d, http.MethodGet, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /readyz before first rebuild = %d, want 503", rec.Code)
	}
	if rec := do(t, d, http.MethodGet, "/"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET / before first rebuild = %d, want 503", rec.Code)
	}
}

func TestPage(t *testing.T) {
	d := testDeps(t)
	rec := do(t, d, http.MethodGet, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{"Go release", `href="/records/2024-03-02-go-1.md"`, "youtube.com"} {
		if !strings.Contains(body, want) {
			t.Errorf("page should contain %q", want)
		}
	}
	if strings.Contains(body, "../vault/") {
		t.Error("page should not keep file-relative details links")
	}
	if d.Snapshot.All()[0].DetailsPath != "../vault/2024-03-02-go-1.md" {
		t.Error("serving the page must not modify the snapshot")
	}
}

func TestEntries(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{"all", "/api/entries", []string{"Go release", "Talk"}},
		{"by tag", "/api/entries?tag=video", []string{"Talk"}},
		{"by domain", "/api/entries?domain=GO.dev", []string{"Go release"}},
		{"tag and domain", "/api/entries?tag=go&domain=youtube.com", []string{}},
		{"tag within domain", "/api/entries?tag=video&domain=youtube.com", []string{"Talk"}},
		{"unknown tag", "/api/entries?tag=nope", []string{}},
	}

	d := testDeps(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, d, http.MethodGet, tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("GET %s = %d", tt.target, rec.Code)
			}

			var body struct {
				Count   int            `json:"count"`
				Entries []domain.Entry `json:"entries"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Count != len(tt.want) || len(body.Entries) != len(tt.want) {
				t.Fatalf("GET %s returned %d entries, want %d", tt.target, body.Count, len(tt.want))
			}
			for i, title := range tt.want {
				if body.Entries[i].Title != title {
					t.Errorf("entry %d = %q, want %q", i, body.Entries[i].Title, title)
				}
				if !strings.HasPrefix(body.Entries[i].DetailsPath, "/records/") {
					t.Errorf("details_path = %q", body.Entries[i].DetailsPath)
				}
			}
		})
	}
}

func TestRecords(t *testing.T) {
	d := testDeps(t)

	rec := do(t, d, http.MethodGet, "/records/2024-03-02-go-1.md")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET record = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "id: 2024-03-02-go-1") {
		t.Errorf("unexpected record body %q", rec.Body.String())
	}

	for _, target := range []string{
		"/records/notes.txt",
		"/records/missing.md",
		"/records/.hidden.md",
		"/records/..%2F..%2Fetc%2Fpasswd.md",
	} {
		if rec := do(t, d, http.MethodGet, target); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", target, rec.Code)
		}
	}
}

func TestReload(t *testing.T) {
	d := testDeps(t)

	accepting := &fakeRebuilder{accept: true}
	d.Rebuilder = accepting
	if rec := do(t, d, http.MethodPost, "/reload"); rec.Code != http.StatusAccepted {
		t.Errorf("POST /reload = %d, want 202", rec.Code)
	}

	busy := &fakeRebuilder{accept: false}
	d.Rebuilder = busy
	if rec := do(t, d, http.MethodPost, "/reload"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("POST /reload while queued = %d, want 429", rec.Code)
	}

	// httptest requests come from 192.0.2.1.
	d.AllowedCIDRS = []string{"10.0.0.0/8"}
	if rec := do(t, d, http.MethodPost, "/reload"); rec.Code != http.StatusForbidden {
		t.Errorf("POST /reload from outside the allow list = %d, want 403", rec.Code)
	}
	if busy.calls != 1 {
		t.Errorf("rejected request should not trigger a rebuild, calls = %d", busy.calls)
	}

	d.AllowedCIDRS = []string{"192.0.2.0/24"}
	if rec := do(t, d, http.MethodPost, "/reload"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("POST /reload from the allow list = %d, want 429", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	d := testDeps(t)
	d.RedisClient = client
	d.Ledger = fakeLedger{count: 7, ok: true, run: domain.IngestRun{ID: "run-1", Processed: 3}}

	rec := do(t, d, http.MethodGet, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/status = %d", rec.Code)
	}

	var body struct {
		Mode       string `json:"mode"`
		Components map[string]struct {
			OK       bool              `json:"ok"`
			Entries  *int              `json:"entries"`
			Ingested *int64            `json:"ingested"`
			LastRun  *domain.IngestRun `json:"last_run"`
		} `json:"components"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}

	if body.Mode != "ok" {
		t.Errorf("mode = %q, want ok", body.Mode)
	}
	if idx := body.Components["index"]; !idx.OK || idx.Entries == nil || *idx.Entries != 2 {
		t.Errorf("index component = %+v", idx)
	}
	if !body.Components["redis"].OK {
		t.Error("redis component should be ok")
	}
	ledger := body.Components["ledger"]
	if ledger.Ingested == nil || *ledger.Ingested != 7 || ledger.LastRun == nil || ledger.LastRun.ID != "run-1" {
		t.Errorf("ledger component = %+v", ledger)
	}

	mr.Close()
	rec = do(t, d, http.MethodGet, "/api/status")
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Mode != "degraded" {
		t.Errorf("mode with redis down = %q, want degraded", body.Mode)
	}
}

func TestStatusWithoutRedis(t *testing.T) {
	d := testDeps(t)
	d.Snapshot = index.NewSnapshot()

	rec := do(t, d, http.MethodGet, "/api/status")
	var body struct {
		Mode       string `json:"mode"`
		Components map[string]struct {
			Mode string `json:"mode"`
		} `json:"components"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Mode != "starting" {
		t.Errorf("mode before first rebuild = %q, want starting", body.Mode)
	}
	if body.Components["redis"].Mode != "disabled" || body.Components["ledger"].Mode != "disabled" {
		t.Errorf("components = %+v", body.Components)
	}
}
