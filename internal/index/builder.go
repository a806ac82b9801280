// Package index rebuilds the static index page from the content directory
// and keeps the latest result in memory for the preview server.
package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MrSnakeDoc/mailmarks/internal/domain"
	"github.com/MrSnakeDoc/mailmarks/internal/logger"
	"github.com/MrSnakeDoc/mailmarks/internal/render"
	"github.com/MrSnakeDoc/mailmarks/internal/vault"
)

const (
	// ViewsMarkdownFile and ViewsHTMLFile are written into the views directory.
	ViewsMarkdownFile = "views.md"
	ViewsHTMLFile     = "views.html"
)

// Result summarizes one rebuild.
type Result struct {
	OutputPath string
	Entries    int
	Skipped    []vault.Skipped
}

// Builder loads entries and writes the pages derived from them.
// Rebuilds are serialized.
type Builder struct {
	mu         sync.Mutex
	loader     *vault.Loader
	outputPath string
	snapshot   *Snapshot
	logger     logger.Logger
}

// NewBuilder creates a builder writing the index page to outputPath.
// snapshot may be nil when nothing serves the result.
func NewBuilder(loader *vault.Loader, outputPath string, snapshot *Snapshot, log logger.Logger) *Builder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Builder{
		loader:     loader,
		outputPath: outputPath,
		snapshot:   snapshot,
		logger:     log,
	}
}

// OutputPath returns where the index page is written.
func (b *Builder) OutputPath() string {
	return b.outputPath
}

// Rebuild regenerates the index page. The page is replaced atomically so a
// concurrent reader never sees a partial file.
func (b *Builder) Rebuild(ctx context.Context) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	entries, skipped, err := b.loader.Load()
	if err != nil {
		return Result{}, fmt.Errorf("failed to load entries: %w", err)
	}

	if err := linkDetails(entries, filepath.Dir(b.outputPath)); err != nil {
		return Result{}, err
	}

	page, err := render.RenderIndex(entries)
	if err != nil {
		return Result{}, err
	}

	if err := writeFileAtomic(b.outputPath, []byte(page)); err != nil {
		return Result{}, err
	}

	if b.snapshot != nil {
		b.snapshot.Replace(entries, len(skipped))
	}

	b.logger.Info("index rebuilt",
		logger.String("output", b.outputPath),
		logger.Int("entries", len(entries)),
		logger.Int("skipped", len(skipped)),
		logger.Time("newest", newest(entries)))

	return Result{OutputPath: b.outputPath, Entries: len(entries), Skipped: skipped}, nil
}

// BuildViews writes views.md and views.html into dir.
func (b *Builder) BuildViews(ctx context.Context, dir string) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	entries, skipped, err := b.loader.Load()
	if err != nil {
		return Result{}, fmt.Errorf("failed to load entries: %w", err)
	}

	if err := linkDetails(entries, dir); err != nil {
		return Result{}, err
	}

	md := render.RenderViewsMarkdown(entries)
	page, err := render.RenderViewsHTML(md)
	if err != nil {
		return Result{}, err
	}

	mdPath := filepath.Join(dir, ViewsMarkdownFile)
	if err := writeFileAtomic(mdPath, []byte(md)); err != nil {
		return Result{}, err
	}
	if err := writeFileAtomic(filepath.Join(dir, ViewsHTMLFile), []byte(page)); err != nil {
		return Result{}, err
	}

	b.logger.Info("views written",
		logger.String("dir", dir),
		logger.Int("entries", len(entries)))

	return Result{OutputPath: mdPath, Entries: len(entries), Skipped: skipped}, nil
}

// linkDetails points every entry's details link at its file, relative to
// the directory of the page that embeds it.
func linkDetails(entries []domain.Entry, pageDir string) error {
	base, err := filepath.Abs(pageDir)
	if err != nil {
		return fmt.Errorf("failed to resolve page directory: %w", err)
	}

	for i := range entries {
		target, err := filepath.Abs(entries[i].Path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", entries[i].Path, err)
		}
		rel, err := filepath.Rel(base, target)
		if err != nil {
			rel = target
		}
		entries[i].DetailsPath = filepath.ToSlash(rel)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// newest returns the datetime of the first entry, zero when there is none.
func newest(entries []domain.Entry) time.Time {
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Datetime
}
