package main

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

	"ScholarSnippets/internal/domain"
)

func writeInputs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	members := filepath.Join(dir, "members.csv")
	content := "orcid,name,filter_profile\n0000-0002-1825-0097,Mario Rossi,atmo\n"
	if err := os.WriteFile(members, []byte(content), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}

	filters := filepath.Join(dir, "filters")
	if err := os.Mkdir(filters, 0o755); err != nil {
		t.Fatalf("mkdir filters: %v", err)
	}
	if err := os.WriteFile(filepath.Join(filters, "atmo.json"), []byte(`{"mode":"include_if_any","include_title_keywords":["aerosol"]}`), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return members, filters
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestCheckCommand(t *testing.T) {
	t.Setenv("SCHOLAR_SNIPPETS_CONFIG", "")
	members, filters := writeInputs(t)

	out, err := execute(t, "check", "--members", members, "--filters-dir", filters, "--log-level", "error")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !strings.Contains(out, "Mario Rossi") || !strings.Contains(out, "OK: 1 member(s), 1 filter profile(s)") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestCheckCommandReportsMissingProfile(t *testing.T) {
	t.Setenv("SCHOLAR_SNIPPETS_CONFIG", "")
	members, _ := writeInputs(t)

	_, err := execute(t, "check", "--members", members, "--filters-dir", t.TempDir(), "--log-level", "error")
	if err == nil {
		t.Fatalf("expected error for unknown profile")
	}
	if !strings.Contains(err.Error(), "atmo") {
		t.Fatalf("error should name the profile: %v", err)
	}
}

func TestGenerateCommand(t *testing.T) {
	t.Setenv("SCHOLAR_SNIPPETS_CONFIG", "")
	t.Setenv("OPENALEX_MAILTO", "")
	members, filters := writeInputs(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"meta": map[string]any{"next_cursor": ""},
			"results": []map[string]any{
				{"id": "https://openalex.org/W1", "title": "Aerosol closure", "publication_year": 2023, "type_crossref": "journal-article"},
				{"id": "https://openalex.org/W2", "title": "Glacier mass balance", "publication_year": 2022, "type_crossref": "journal-article"},
			},
		})
	}))
	defer server.Close()
	t.Setenv("OPENALEX_BASE_URL", server.URL)

	outDir := filepath.Join(t.TempDir(), "site")
	out, err := execute(t, "generate",
		"--members", members,
		"--filters-dir", filters,
		"--out-dir", outDir,
		"--out-journals", "articoli.html",
		"--hero-journals", "/img/custom.jpg",
		"--max", "50",
		"--log-level", "error",
	)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.Contains(out, "journals=1") || !strings.Contains(out, "excluded=1") {
		t.Fatalf("unexpected summary:\n%s", out)
	}

	raw, err := os.ReadFile(filepath.Join(outDir, "articoli.html"))
	if err != nil {
		t.Fatalf("read journals snippet: %v", err)
	}
	if !strings.Contains(string(raw), "/img/custom.jpg") || !strings.Contains(string(raw), "Aerosol closure") {
		t.Fatalf("unexpected snippet:\n%s", raw)
	}
	for _, name := range []string{"snippet_conferences.html", "snippet_books.html", "excluded.html"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestGenerateRejectsInvalidConcurrency(t *testing.T) {
	t.Setenv("SCHOLAR_SNIPPETS_CONFIG", "")
	members, filters := writeInputs(t)

	_, err := execute(t, "generate", "--members", members, "--filters-dir", filters, "--concurrency", "12")
	if err == nil {
		t.Fatalf("expected configuration error")
	}
	if !strings.Contains(err.Error(), domain.ErrConfiguration.Error()) {
		t.Fatalf("unexpected error: %v", err)
	}
}
