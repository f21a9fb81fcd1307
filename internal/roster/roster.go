package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"ScholarSnippets/internal/domain"
)

// Accepted header names, first match wins. apply_filter is a legacy synonym.
var (
	identifierColumns = []string{"orcid", "identifier"}
	nameColumns       = []string{"name", "display_name"}
	profileColumns    = []string{"filter_profile", "apply_filter"}
)

const defaultProfile = "none"

var orcidExpr = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)

// ValidIdentifier reports whether id has the ORCID shape.
func ValidIdentifier(id string) bool {
	return orcidExpr.MatchString(id)
}

// Load reads the roster CSV at path.
func Load(path string) ([]domain.RosterEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ConfigurationError{Source: path, Msg: "open roster", Err: err}
	}
	defer f.Close()

	entries, err := Parse(f)
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) && cfgErr.Source == "" {
			cfgErr.Source = path
		}
		return nil, err
	}
	return entries, nil
}

// Parse reads roster rows from r. Row order is preserved as processing order.
func Parse(r io.Reader) ([]domain.RosterEntry, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.Configurationf("", "roster is empty")
		}
		return nil, &domain.ConfigurationError{Msg: "read roster header", Err: err}
	}

	columns := indexColumns(header)
	idCol := column(columns, identifierColumns...)
	if idCol < 0 {
		return nil, domain.Configurationf("", "roster header lacks an identifier column (one of %v)", identifierColumns)
	}
	nameCol := column(columns, nameColumns...)

	var entries []domain.RosterEntry
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, &domain.ConfigurationError{Msg: fmt.Sprintf("read roster line %d", line), Err: err}
		}
		if blank(record) {
			continue
		}

		id := normalizeIdentifier(field(record, idCol))
		name := field(record, nameCol)
		if name == "" {
			name = id
		}
		profile := firstField(record, columns, profileColumns)
		if profile == "" {
			profile = defaultProfile
		}

		if !ValidIdentifier(id) {
			return nil, domain.Configurationf("", "line %d: invalid ORCID %q (name=%s)", line, id, name)
		}

		entries = append(entries, domain.RosterEntry{
			Identifier:    id,
			DisplayName:   name,
			FilterProfile: profile,
			Position:      len(entries),
		})
	}

	if len(entries) == 0 {
		return nil, domain.Configurationf("", "roster has no members")
	}
	return entries, nil
}

func indexColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, seen := columns[h]; !seen {
			columns[h] = i
		}
	}
	return columns
}

// column returns the index of the first present header among names, or -1.
func column(columns map[string]int, names ...string) int {
	for _, name := range names {
		if idx, ok := columns[name]; ok {
			return idx
		}
	}
	return -1
}

// firstField returns the first non-empty value among the named columns.
func firstField(record []string, columns map[string]int, names []string) string {
	for _, name := range names {
		if v := field(record, column(columns, name)); v != "" {
			return v
		}
	}
	return ""
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func normalizeIdentifier(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "https://orcid.org/")
	id = strings.TrimPrefix(id, "http://orcid.org/")
	return strings.ToUpper(id)
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
