package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/mailmarks/internal/index"
	"github.com/MrSnakeDoc/mailmarks/internal/ingest"
	"github.com/MrSnakeDoc/mailmarks/internal/mail"
	"github.com/MrSnakeDoc/mailmarks/internal/mail/mailtest"
	"github.com/MrSnakeDoc/mailmarks/internal/transform"
	"github.com/MrSnakeDoc/mailmarks/internal/vault"
)

func htmlOnlyMessage(id, subject, date, body string) *mail.Message {
	return &mail.Message{
		ID: id,
		Headers: []mail.Header{
			{Name: "Subject", Value: subject},
			{Name: "Date", Value: date},
		},
		Payload: mail.Part{
			MimeType: "multipart/alternative",
			Parts: []mail.Part{
				{MimeType: "text/html", Data: mail.EncodeData([]byte(body))},
			},
		},
	}
}

// TestMailToIndexPage runs messages through ingestion, then renders the
// index page from the written files.
func TestMailToIndexPage(t *testing.T) {
	root := t.TempDir()
	contentDir := filepath.Join(root, "vault", "inbox")
	outputPath := filepath.Join(root, "docs", "index.html")
	clock := func() time.Time { return time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC) }

	box := mailtest.NewMailbox()
	box.Add(mailtest.TextMessage("m1", "Weekly reads", "Fri, 01 Mar 2024 09:00:00 +0000", "me@example.com",
		"first https://go.dev/blog/go1.22\nsecond https://substack.com/p/post"))
	box.Add(htmlOnlyMessage("m2", "Video", "Sat, 02 Mar 2024 18:15:00 +0000",
		`<p>Watch <a href="https://www.youtube.com/watch?v=abc">this</a></p>`))
	box.Add(mailtest.TextMessage("m3", "Undated", "", "", "https://example.org/undated"))
	box.Add(mailtest.TextMessage("m4", "Chat", "Sat, 02 Mar 2024 19:00:00 +0000", "", "no links at all"))

	pipeline, err := ingest.New(box, vault.NewWriter(contentDir), "Processed",
		ingest.WithTransformer(transform.New(transform.WithClock(clock))))
	if err != nil {
		t.Fatal(err)
	}

	run, err := pipeline.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if run.Listed != 4 || run.Processed != 4 || run.Failed != 0 || run.Bookmarks != 4 {
		t.Fatalf("RunBatch() = %+v", run)
	}

	for _, name := range []string{
		"2024-03-01-weekly-reads-1.md",
		"2024-03-01-weekly-reads-2.md",
		"2024-03-02-video-1.md",
		"2024-03-05-undated-1.md",
	} {
		if _, err := os.Stat(filepath.Join(contentDir, name)); err != nil {
			t.Errorf("expected bookmark file %s: %v", name, err)
		}
	}

	video, err := os.ReadFile(filepath.Join(contentDir, "2024-03-02-video-1.md"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"url: https://www.youtube.com/watch?v=abc", "youtube", "source: email"} {
		if !strings.Contains(string(video), want) {
			t.Errorf("video bookmark missing %q:\n%s", want, video)
		}
	}

	again, err := pipeline.RunBatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if again.Listed != 0 {
		t.Errorf("second batch listed %d messages, want 0", again.Listed)
	}

	snapshot := index.NewSnapshot()
	builder := index.NewBuilder(vault.NewLoader(contentDir), outputPath, snapshot, nil)
	res, err := builder.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if res.Entries != 4 || len(res.Skipped) != 0 {
		t.Fatalf("Rebuild() = %+v", res)
	}

	page, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	body := string(page)

	order := []string{"Undated", "Video", "Weekly reads (1/2)", "Weekly reads (2/2)"}
	last := -1
	for _, title := range order {
		i := strings.Index(body, title)
		if i < 0 {
			t.Fatalf("page is missing %q", title)
		}
		if i < last {
			t.Errorf("%q is out of order, want newest first", title)
		}
		last = i
	}

	if !strings.Contains(body, `href="../vault/inbox/2024-03-02-video-1.md"`) {
		t.Error("details link should be relative to the page")
	}
	if got := snapshot.ByTag("substack"); len(got) != 1 {
		t.Errorf("ByTag(substack) = %d entries, want 1", len(got))
	}
}
