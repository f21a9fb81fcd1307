package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"ScholarSnippets/internal/domain"
	"ScholarSnippets/internal/ports"
)

// LockFileName is created in the output directory while files are written.
const LockFileName = ".scholarsnippets.lock"

// ErrOutputLocked is returned when another run holds the output directory.
var ErrOutputLocked = errors.New("output directory is locked by another run")

// Files names the four generated documents. Relative names are resolved
// against the output directory.
type Files struct {
	Journals    string
	Conferences string
	Books       string
	Excluded    string
}

// DefaultFiles returns the standard file names.
func DefaultFiles() Files {
	return Files{
		Journals:    "snippet_journals.html",
		Conferences: "snippet_conferences.html",
		Books:       "snippet_books.html",
		Excluded:    "excluded.html",
	}
}

// Writer renders the aggregated output and replaces the files on disk.
type Writer struct {
	renderer *Renderer
	dir      string
	files    Files
	logger   *slog.Logger
}

var _ ports.OutputWriter = (*Writer)(nil)

// NewWriter builds a writer targeting dir.
func NewWriter(renderer *Renderer, dir string, files Files, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	def := DefaultFiles()
	if files.Journals == "" {
		files.Journals = def.Journals
	}
	if files.Conferences == "" {
		files.Conferences = def.Conferences
	}
	if files.Books == "" {
		files.Books = def.Books
	}
	if files.Excluded == "" {
		files.Excluded = def.Excluded
	}
	if dir == "" {
		dir = "."
	}
	return &Writer{renderer: renderer, dir: dir, files: files, logger: logger}
}

type document struct {
	path    string
	content []byte
}

// Write renders every document in memory first and only then touches the
// filesystem, so a rendering failure never leaves a partial set behind.
func (w *Writer) Write(ctx context.Context, out domain.AggregatedOutput) ([]string, error) {
	docs, err := w.render(out)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	lock := flock.New(filepath.Join(w.dir, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire output lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, w.dir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			w.logger.Warn("failed to release output lock", slog.Any("error", err))
		}
	}()

	paths := make([]string, 0, len(docs))
	for _, doc := range docs {
		if err := writeAtomic(doc.path, doc.content); err != nil {
			return paths, err
		}
		w.logger.Info("snippet written", slog.String("path", doc.path), slog.Int("bytes", len(doc.content)))
		paths = append(paths, doc.path)
	}
	return paths, nil
}

func (w *Writer) render(out domain.AggregatedOutput) ([]document, error) {
	if w.renderer == nil {
		return nil, errors.New("render: renderer is required")
	}

	var docs []document
	for _, c := range domain.Categories {
		content, err := w.renderer.Snippet(c, out.Bucket(c))
		if err != nil {
			return nil, err
		}
		docs = append(docs, document{path: w.path(c), content: content})
	}

	excluded, err := w.renderer.Excluded(out.Excluded)
	if err != nil {
		return nil, err
	}
	docs = append(docs, document{path: w.resolve(w.files.Excluded), content: excluded})
	return docs, nil
}

func (w *Writer) path(c domain.Category) string {
	switch c {
	case domain.CategoryConference:
		return w.resolve(w.files.Conferences)
	case domain.CategoryBook:
		return w.resolve(w.files.Books)
	default:
		return w.resolve(w.files.Journals)
	}
}

func (w *Writer) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(w.dir, name)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
