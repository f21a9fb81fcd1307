package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ScholarSnippets/internal/config"
	"ScholarSnippets/internal/domain"
	"ScholarSnippets/internal/logging"
)

const (
	orcidMario = "0000-0002-1825-0097"
	orcidLuisa = "0000-0001-5109-370X"
	orcidGone  = "0000-0003-1234-5678"
)

func fakeOpenAlex(t *testing.T) *httptest.Server {
	t.Helper()

	works := map[string][]map[string]any{
		orcidMario: {
			{"id": "https://openalex.org/W1", "title": "Aerosol vertical profiles", "publication_year": 2022, "type_crossref": "journal-article",
				"primary_location": map[string]any{"source": map[string]any{"display_name": "Atmospheric Research", "type": "journal"}}},
			{"id": "https://openalex.org/W2", "title": "Dust events", "publication_year": 2021, "type": "article",
				"primary_location": map[string]any{"source": map[string]any{"display_name": "EGU General Assembly 2021", "type": "conference"}}},
		},
		orcidLuisa: {
			{"id": "https://openalex.org/W1", "title": "Aerosol vertical profiles", "publication_year": 2022, "type_crossref": "journal-article"},
			{"id": "https://openalex.org/W3", "title": "Multi-echo MRI", "publication_year": 2020, "type_crossref": "journal-article"},
			{"id": "https://openalex.org/W4", "title": "Handbook of aerosol science", "publication_year": 2018, "type_crossref": "book-chapter"},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("filter")
		id := filter[strings.LastIndex(filter, "/")+1:]
		results, ok := works[id]
		if !ok {
			http.Error(w, "unknown author", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"meta":    map[string]any{"next_cursor": ""},
			"results": results,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, baseURL, rosterCSV string) config.Config {
	t.Helper()
	dir := t.TempDir()

	members := filepath.Join(dir, "members.csv")
	require.NoError(t, os.WriteFile(members, []byte(rosterCSV), 0o644))

	filters := filepath.Join(dir, "filters")
	require.NoError(t, os.Mkdir(filters, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(filters, "atmo.yaml"), []byte(
		"mode: include_if_any\ninclude_title_keywords: [aerosol]\nexclude_title_keywords: [multi-echo]\n"), 0o644))

	cfg := config.Default()
	cfg.OpenAlex.BaseURL = baseURL
	cfg.OpenAlex.RetryAttempts = 1
	cfg.OpenAlex.RequestsPerSecond = 0
	cfg.Input.Members = members
	cfg.Input.FiltersDir = filters
	cfg.Output.Dir = filepath.Join(dir, "out")
	return cfg
}

func TestRunGeneratesSnippets(t *testing.T) {
	t.Parallel()

	server := fakeOpenAlex(t)
	cfg := testConfig(t, server.URL,
		"orcid,name,filter_profile\n"+
			orcidMario+",Mario Rossi,none\n"+
			orcidGone+",Paolo Verdi,none\n"+
			orcidLuisa+",Luisa Bianchi,atmo\n")

	var logs bytes.Buffer
	application, err := New(cfg, logging.New("debug", "json", &logs))
	require.NoError(t, err)

	report, err := application.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, application.RunID(), report.RunID)
	assert.Len(t, report.Files, 4)
	assert.Contains(t, logs.String(), `"run_id":"`+report.RunID+`"`)

	out := report.Output
	require.Len(t, out.Journals, 1)
	assert.Equal(t, "Aerosol vertical profiles", out.Journals[0].Work.Title)
	assert.Equal(t, orcidMario, out.Journals[0].Owner.Identifier)
	require.Len(t, out.Conferences, 1)
	assert.Equal(t, "Dust events", out.Conferences[0].Work.Title)
	require.Len(t, out.Books, 1)
	require.Len(t, out.Excluded, 1)
	assert.Equal(t, "excluded keyword: multi-echo", out.Excluded[0].Reason)

	failures := out.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, orcidGone, failures[0].Owner.Identifier)
	assert.ErrorIs(t, failures[0].Err, domain.ErrRetrieval)

	journals, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "snippet_journals.html"))
	require.NoError(t, err)
	assert.Contains(t, string(journals), "<strong>Aerosol vertical profiles</strong> Atmospheric Research.")

	excluded, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "excluded.html"))
	require.NoError(t, err)
	assert.Contains(t, string(excluded), "Luisa Bianchi: excluded keyword: multi-echo")
}

func TestRunMissingProfileWritesNothing(t *testing.T) {
	t.Parallel()

	server := fakeOpenAlex(t)
	cfg := testConfig(t, server.URL, "orcid,name,filter_profile\n"+orcidMario+",Mario Rossi,ocean\n")

	application, err := New(cfg, logging.New("error", "text", &bytes.Buffer{}))
	require.NoError(t, err)

	_, err = application.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, statErr := os.Stat(cfg.Output.Dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCheckValidatesInputs(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1", "orcid,name,apply_filter\n"+orcidLuisa+",Luisa,atmo\n")
	application, err := New(cfg, logging.New("error", "text", &bytes.Buffer{}))
	require.NoError(t, err)

	inputs, err := application.Check()
	require.NoError(t, err)
	assert.Len(t, inputs.Roster, 1)
	assert.Contains(t, inputs.Profiles, "atmo")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Pipeline.Source = "scopus"
	_, err := New(cfg, logging.New("error", "text", &bytes.Buffer{}))
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	cfg = config.Default()
	cfg.Pipeline.Concurrency = 0
	_, err = New(cfg, logging.New("error", "text", &bytes.Buffer{}))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
