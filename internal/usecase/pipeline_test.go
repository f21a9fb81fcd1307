package usecase

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ScholarSnippets/internal/classify"
	"ScholarSnippets/internal/domain"
	"ScholarSnippets/internal/filter"
)

type fakeSource struct {
	mu      sync.Mutex
	results map[string][]fetched
	calls   []string
}

func (f *fakeSource) FetchWorks(_ context.Context, identifier string, maxResults int) iter.Seq2[domain.Work, error] {
	f.mu.Lock()
	f.calls = append(f.calls, identifier)
	items := f.results[identifier]
	f.mu.Unlock()

	if maxResults > 0 {
		var limited []fetched
		n := 0
		for _, it := range items {
			limited = append(limited, it)
			if it.err == nil {
				n++
			}
			if n == maxResults {
				break
			}
		}
		items = limited
	}
	return replay(items)
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func ok(w domain.Work) fetched { return fetched{work: w} }

func failed(err error) fetched { return fetched{err: err} }

var (
	mario = domain.RosterEntry{Identifier: "0000-0002-1825-0097", DisplayName: "Mario Rossi", FilterProfile: "none", Position: 0}
	luisa = domain.RosterEntry{Identifier: "0000-0001-5109-3700", DisplayName: "Luisa Bianchi", FilterProfile: "atmo", Position: 1}
	paolo = domain.RosterEntry{Identifier: "0000-0003-1234-5678", DisplayName: "Paolo Verdi", FilterProfile: "none", Position: 2}
)

func profiles(t *testing.T) map[string]*domain.FilterProfile {
	t.Helper()
	atmo, err := filter.Parse("atmo", filter.FormatYAML, []byte("mode: include_if_any\ninclude_title_keywords:\n  - aerosol\n"))
	require.NoError(t, err)
	return map[string]*domain.FilterProfile{"atmo": atmo}
}

func journal(id, title string) domain.Work {
	return domain.Work{WorkID: id, Title: title, Type: "journal-article", PublicationYear: 2021}
}

func newPipeline(src *fakeSource, concurrency int) *Pipeline {
	return NewPipeline(PipelineDeps{
		Source:      src,
		Classifier:  classify.New(classify.DefaultPolicy()),
		Concurrency: concurrency,
	})
}

func titles(entries []domain.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Work.Title)
	}
	return out
}

func TestRunBucketsInRosterOrder(t *testing.T) {
	t.Parallel()

	src := &fakeSource{results: map[string][]fetched{
		mario.Identifier: {
			ok(journal("W1", "Ocean heat content")),
			ok(domain.Work{WorkID: "W2", Title: "Dust plumes", SourceName: "EGU General Assembly 2021", Type: "journal-article"}),
			ok(domain.Work{WorkID: "W3", Title: "Handbook of clouds", Type: "book-chapter"}),
		},
		luisa.Identifier: {
			ok(journal("W4", "Aerosol optical depth")),
			ok(journal("W5", "Soil moisture")),
		},
		paolo.Identifier: {
			ok(journal("W6", "Sea ice")),
		},
	}}

	out, err := newPipeline(src, 1).Run(context.Background(), []domain.RosterEntry{mario, luisa, paolo}, profiles(t), 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"Ocean heat content", "Aerosol optical depth", "Sea ice"}, titles(out.Journals))
	assert.Equal(t, []string{"Dust plumes"}, titles(out.Conferences))
	assert.Equal(t, []string{"Handbook of clouds"}, titles(out.Books))

	require.Len(t, out.Excluded, 1)
	assert.Equal(t, "Soil moisture", out.Excluded[0].Work.Title)
	assert.Equal(t, "no match (default exclude)", out.Excluded[0].Reason)
	assert.Equal(t, luisa, out.Excluded[0].Owner)

	require.Len(t, out.Stats, 3)
	assert.Equal(t, 3, out.Stats[0].Included)
	assert.Equal(t, 1, out.Stats[1].Included)
	assert.Equal(t, 1, out.Stats[1].Excluded)
	assert.Empty(t, out.Failures())
}

func TestRunDeduplicatesAcrossMembers(t *testing.T) {
	t.Parallel()

	shared := journal("W1", "Shared aerosol paper")
	src := &fakeSource{results: map[string][]fetched{
		mario.Identifier: {ok(shared)},
		luisa.Identifier: {
			ok(shared),
			ok(domain.Work{WorkID: "W9", DOI: "https://doi.org/10.1/SAME", Title: "Aerosol preprint"}),
			ok(domain.Work{WorkID: "W10", DOI: "10.1/same", Title: "Aerosol published"}),
			ok(domain.Work{Title: "Aerosol untracked", PublicationYear: 2020}),
			ok(domain.Work{Title: "aerosol  UNTRACKED", PublicationYear: 2020}),
			ok(domain.Work{Title: "Aerosol untracked", PublicationYear: 2019}),
		},
	}}

	out, err := newPipeline(src, 1).Run(context.Background(), []domain.RosterEntry{mario, luisa}, profiles(t), 0)
	require.NoError(t, err)

	require.Len(t, out.Journals, 4)
	assert.Equal(t, mario, out.Journals[0].Owner)
	assert.Equal(t, []string{"Shared aerosol paper", "Aerosol preprint", "Aerosol untracked", "Aerosol untracked"}, titles(out.Journals))
	assert.Empty(t, out.Excluded, "duplicates are never reported as excluded")
	assert.Equal(t, 3, out.Stats[1].Duplicates)
	assert.Equal(t, 6, out.Stats[1].Fetched)
}

func TestRunDedupIsIdempotent(t *testing.T) {
	t.Parallel()

	w := journal("W1", "Repeated")
	src := &fakeSource{results: map[string][]fetched{
		mario.Identifier: {ok(w), ok(w), ok(w)},
	}}

	out, err := newPipeline(src, 1).Run(context.Background(), []domain.RosterEntry{mario}, nil, 0)
	require.NoError(t, err)
	assert.Len(t, out.Journals, 1)
	assert.Equal(t, 2, out.Stats[0].Duplicates)
}

func TestRunIsolatesRetrievalFailures(t *testing.T) {
	t.Parallel()

	boom := &domain.RetrievalError{Identifier: luisa.Identifier, Page: 2, Err: errors.New("http 503")}
	src := &fakeSource{results: map[string][]fetched{
		mario.Identifier: {ok(journal("W1", "First"))},
		luisa.Identifier: {ok(journal("W2", "Aerosol before failure")), failed(boom)},
		paolo.Identifier: {ok(journal("W3", "After failure"))},
	}}

	out, err := newPipeline(src, 1).Run(context.Background(), []domain.RosterEntry{mario, luisa, paolo}, profiles(t), 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"First", "Aerosol before failure", "After failure"}, titles(out.Journals))
	failures := out.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, luisa, failures[0].Owner)
	assert.ErrorIs(t, failures[0].Err, domain.ErrRetrieval)
}

func TestRunCountsMalformedRecords(t *testing.T) {
	t.Parallel()

	src := &fakeSource{results: map[string][]fetched{
		mario.Identifier: {
			failed(&domain.MalformedRecordError{Identifier: mario.Identifier, WorkID: "W0", Field: "title"}),
			ok(journal("W1", "Valid")),
		},
	}}

	out, err := newPipeline(src, 1).Run(context.Background(), []domain.RosterEntry{mario}, nil, 0)
	require.NoError(t, err)
	assert.Len(t, out.Journals, 1)
	assert.Equal(t, 1, out.Stats[0].Malformed)
	assert.NoError(t, out.Stats[0].Err)
}

func TestRunMissingProfileFetchesNothing(t *testing.T) {
	t.Parallel()

	src := &fakeSource{results: map[string][]fetched{}}
	stranger := domain.RosterEntry{Identifier: "0000-0003-1234-5678", DisplayName: "X", FilterProfile: "nope", Position: 1}

	_, err := newPipeline(src, 1).Run(context.Background(), []domain.RosterEntry{mario, stranger}, profiles(t), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "nope")
	assert.Zero(t, src.callCount())
}

func TestRunPassesMaxPerIdentifier(t *testing.T) {
	t.Parallel()

	src := &fakeSource{results: map[string][]fetched{
		mario.Identifier: {ok(journal("W1", "a")), ok(journal("W2", "b")), ok(journal("W3", "c"))},
	}}

	out, err := newPipeline(src, 1).Run(context.Background(), []domain.RosterEntry{mario}, nil, 2)
	require.NoError(t, err)
	assert.Len(t, out.Journals, 2)
}

func TestRunCanceledContext(t *testing.T) {
	t.Parallel()

	src := &fakeSource{results: map[string][]fetched{mario.Identifier: {ok(journal("W1", "a"))}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPipeline(src, 1).Run(ctx, []domain.RosterEntry{mario}, nil, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunConcurrentMatchesSequential(t *testing.T) {
	t.Parallel()

	shared := journal("W1", "Shared aerosol work")
	results := map[string][]fetched{
		mario.Identifier: {ok(journal("W0", "Mario only")), ok(shared)},
		luisa.Identifier: {ok(shared), ok(journal("W2", "Aerosol by Luisa")), ok(journal("W3", "Off topic"))},
		paolo.Identifier: {ok(journal("W4", "Paolo only")), failed(&domain.RetrievalError{Identifier: paolo.Identifier, Err: errors.New("reset")})},
	}
	roster := []domain.RosterEntry{mario, luisa, paolo}

	sequential, err := newPipeline(&fakeSource{results: results}, 1).Run(context.Background(), roster, profiles(t), 0)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		concurrent, err := newPipeline(&fakeSource{results: results}, 4).Run(context.Background(), roster, profiles(t), 0)
		require.NoError(t, err)
		if diff := cmp.Diff(sequential, concurrent, cmpopts.EquateErrors()); diff != "" {
			t.Fatalf("concurrent run differs (-sequential +concurrent):\n%s", diff)
		}
	}
}

func TestNewPipelineClampsConcurrency(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, NewPipeline(PipelineDeps{Concurrency: -3}).concurrency)
	assert.Equal(t, MaxConcurrency, NewPipeline(PipelineDeps{Concurrency: 64}).concurrency)
}

func TestValidateProfiles(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateProfiles([]domain.RosterEntry{mario, luisa}, profiles(t)))
	assert.ErrorIs(t, ValidateProfiles([]domain.RosterEntry{luisa}, nil), domain.ErrConfiguration)
}
