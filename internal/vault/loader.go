package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/MrSnakeDoc/mailmarks/internal/domain"
	"github.com/MrSnakeDoc/mailmarks/internal/logger"
)

// Skipped describes a file the loader ignored and why.
type Skipped struct {
	Path   string
	Reason error
}

// Loader reads persisted bookmarks back as index entries.
type Loader struct {
	dir            string
	strictDatetime bool
	logger         logger.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithStrictDatetime makes a missing or malformed datetime abort the whole
// load instead of skipping the file.
func WithStrictDatetime(strict bool) LoaderOption {
	return func(l *Loader) { l.strictDatetime = strict }
}

// WithLogger sets the logger used to report skipped files.
func WithLogger(log logger.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.logger = log
		}
	}
}

// NewLoader creates a loader over the *.md files of dir (no recursion).
func NewLoader(dir string, opts ...LoaderOption) *Loader {
	l := &Loader{
		dir:    dir,
		logger: logger.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the entries of every valid file, newest first. Files with the
// same datetime keep file-name order. Invalid files are skipped and listed
// in the second return value.
func (l *Loader) Load() ([]domain.Entry, []Skipped, error) {
	paths, err := filepath.Glob(filepath.Join(l.dir, "*"+Extension))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list content directory: %w", err)
	}
	sort.Strings(paths)

	entries := make([]domain.Entry, 0, len(paths))
	var skipped []Skipped

	for _, path := range paths {
		entry, err := l.loadFile(path)
		if err != nil {
			if l.strictDatetime && isDatetimeErr(err) {
				return nil, skipped, fmt.Errorf("failed to load %s: %w", path, err)
			}
			l.logger.Warn("skipping bookmark file",
				logger.String("path", path),
				logger.Error(err))
			skipped = append(skipped, Skipped{Path: path, Reason: err})
			continue
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Datetime.After(entries[j].Datetime)
	})

	l.logger.Debug("loaded bookmark entries",
		logger.String("dir", l.dir),
		logger.Int("entries", len(entries)),
		logger.Int("skipped", len(skipped)))

	return entries, skipped, nil
}

func (l *Loader) loadFile(path string) (domain.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("failed to read file: %w", err)
	}

	fm, err := parseFrontMatter(string(data))
	if err != nil {
		return domain.Entry{}, err
	}

	url, err := stringField(fm.URL, "url")
	if err != nil {
		return domain.Entry{}, err
	}
	subject, err := stringField(fm.Subject, "subject")
	if err != nil {
		return domain.Entry{}, err
	}

	datetime, ok := scalarValue(fm.Datetime)
	if !ok {
		return domain.Entry{}, ErrBadDatetime
	}
	when, err := ParseDatetime(datetime)
	if err != nil {
		return domain.Entry{}, err
	}

	source, _ := scalarValue(fm.Source)

	return domain.Entry{
		Title:           subject,
		URL:             url,
		Domain:          domain.DisplayDomain(url),
		Datetime:        when,
		DatetimeDisplay: when.Format(domain.DisplayLayout),
		Tags:            tagList(fm.Tags),
		Source:          source,
		Path:            path,
		DetailsPath:     filepath.Base(path),
	}, nil
}

func isDatetimeErr(err error) bool {
	return errors.Is(err, ErrBadDatetime)
}
