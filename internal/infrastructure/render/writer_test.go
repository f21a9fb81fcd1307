package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ScholarSnippets/internal/domain"
)

func sampleOutput() domain.AggregatedOutput {
	var out domain.AggregatedOutput
	out.Append(domain.Entry{Work: &domain.Work{Title: "Journal work", PublicationYear: 2021}, Classification: domain.ClassificationResult{Category: domain.CategoryJournal}})
	out.Append(domain.Entry{Work: &domain.Work{Title: "EGU abstract", PublicationYear: 2022}, Classification: domain.ClassificationResult{Category: domain.CategoryConference}})
	out.Excluded = append(out.Excluded, domain.ExcludedEntry{
		Entry:  domain.Entry{Work: &domain.Work{Title: "Off topic", PublicationYear: 2020}, Owner: owner},
		Reason: "no match (default exclude)",
	})
	return out
}

func TestWriterWritesAllDocuments(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	r, err := NewRenderer(DefaultOptions())
	require.NoError(t, err)

	abs := filepath.Join(t.TempDir(), "books.html")
	w := NewWriter(r, dir, Files{Books: abs}, nil)

	paths, err := w.Write(context.Background(), sampleOutput())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "snippet_journals.html"),
		filepath.Join(dir, "snippet_conferences.html"),
		abs,
		filepath.Join(dir, "excluded.html"),
	}, paths)

	journals, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(journals), "<strong>Journal work</strong>")
	assert.NotContains(t, string(journals), "EGU abstract")

	books, err := os.ReadFile(abs)
	require.NoError(t, err)
	assert.Contains(t, string(books), `<div class="art-list">`)
	assert.NotContains(t, string(books), `class="art-item"`)

	excluded, err := os.ReadFile(paths[3])
	require.NoError(t, err)
	assert.Contains(t, string(excluded), "Mario Rossi: no match (default exclude)")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
}

func TestWriterOverwritesPreviousRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r, err := NewRenderer(DefaultOptions())
	require.NoError(t, err)
	w := NewWriter(r, dir, Files{}, nil)

	_, err = w.Write(context.Background(), sampleOutput())
	require.NoError(t, err)
	_, err = w.Write(context.Background(), domain.AggregatedOutput{})
	require.NoError(t, err)

	journals, err := os.ReadFile(filepath.Join(dir, "snippet_journals.html"))
	require.NoError(t, err)
	assert.NotContains(t, string(journals), "Journal work")
}

func TestWriterRefusesLockedDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	held := flock.New(filepath.Join(dir, LockFileName))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	r, err := NewRenderer(DefaultOptions())
	require.NoError(t, err)

	_, err = NewWriter(r, dir, Files{}, nil).Write(context.Background(), sampleOutput())
	require.ErrorIs(t, err, ErrOutputLocked)

	_, statErr := os.Stat(filepath.Join(dir, "snippet_journals.html"))
	assert.True(t, os.IsNotExist(statErr))
}
