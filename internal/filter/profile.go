package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"ScholarSnippets/internal/domain"
	"ScholarSnippets/internal/textnorm"
)

// Format identifies the encoding of a profile document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

var extensions = map[string]Format{
	".json": FormatJSON,
	".yaml": FormatYAML,
	".yml":  FormatYAML,
	".toml": FormatTOML,
}

var conceptIDExpr = regexp.MustCompile(`^c\d+$`)

// document mirrors the on-disk shape; pointers distinguish absent from zero.
type document struct {
	Mode                 *string  `json:"mode" yaml:"mode" toml:"mode"`
	MinConceptScore      *float64 `json:"min_concept_score" yaml:"min_concept_score" toml:"min_concept_score"`
	IncludeConcepts      []string `json:"include_concepts" yaml:"include_concepts" toml:"include_concepts"`
	IncludeTitleKeywords []string `json:"include_title_keywords" yaml:"include_title_keywords" toml:"include_title_keywords"`
	ExcludeTitleKeywords []string `json:"exclude_title_keywords" yaml:"exclude_title_keywords" toml:"exclude_title_keywords"`
	ExcludeDOIs          []string `json:"exclude_dois" yaml:"exclude_dois" toml:"exclude_dois"`
}

// LoadProfiles reads every profile document in dir, keyed by file stem.
// Files with other extensions are ignored.
func LoadProfiles(dir string) (map[string]*domain.FilterProfile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &domain.ConfigurationError{Source: dir, Msg: "read filters directory", Err: err}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	profiles := make(map[string]*domain.FilterProfile)
	origin := make(map[string]string)
	for _, name := range names {
		format, ok := extensions[strings.ToLower(filepath.Ext(name))]
		if !ok {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if prev, dup := origin[stem]; dup {
			return nil, domain.Configurationf(dir, "profile %q defined twice (%s, %s)", stem, prev, name)
		}

		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, &domain.ConfigurationError{Source: path, Msg: "read profile", Err: err}
		}
		profile, err := Parse(stem, format, raw)
		if err != nil {
			var cfgErr *domain.ConfigurationError
			if errors.As(err, &cfgErr) {
				cfgErr.Source = path
			}
			return nil, err
		}
		profiles[stem] = profile
		origin[stem] = name
	}

	return profiles, nil
}

// Parse decodes and validates a single profile document.
func Parse(name string, format Format, raw []byte) (*domain.FilterProfile, error) {
	var doc document
	if err := decodeStrict(format, raw, &doc); err != nil {
		return nil, &domain.ConfigurationError{Source: name, Msg: "decode " + string(format) + " profile", Err: err}
	}

	if doc.Mode == nil {
		return nil, domain.Configurationf(name, "field mode is required")
	}
	mode := domain.FilterMode(strings.TrimSpace(*doc.Mode))
	switch mode {
	case domain.FilterModeNone, domain.FilterModeIncludeIfAny:
	default:
		return nil, domain.Configurationf(name, "unsupported mode %q (want %q or %q)",
			*doc.Mode, domain.FilterModeNone, domain.FilterModeIncludeIfAny)
	}

	var minScore float64
	if doc.MinConceptScore != nil {
		minScore = *doc.MinConceptScore
		if minScore < 0 || minScore > 1 {
			return nil, domain.Configurationf(name, "min_concept_score %v outside [0,1]", minScore)
		}
	}

	p := &domain.FilterProfile{
		Name:                 name,
		Mode:                 mode,
		MinConceptScore:      minScore,
		IncludeConcepts:      doc.IncludeConcepts,
		IncludeTitleKeywords: doc.IncludeTitleKeywords,
		ExcludeTitleKeywords: doc.ExcludeTitleKeywords,
		ExcludeDOIs:          doc.ExcludeDOIs,
	}
	Compile(p)
	return p, nil
}

// Compile builds the match keys of p from its raw fields. Loaders call it;
// callers constructing profiles by hand must call it before Evaluate.
func Compile(p *domain.FilterProfile) {
	p.IncludeKeywords = keywords(p.IncludeTitleKeywords)
	p.ExcludeKeywords = keywords(p.ExcludeTitleKeywords)

	p.IncludeConceptKeys = make(map[string]struct{}, len(p.IncludeConcepts))
	for _, c := range p.IncludeConcepts {
		if id := conceptIDKey(c); id != "" {
			p.IncludeConceptKeys[id] = struct{}{}
			continue
		}
		if k := textnorm.MatchKey(c); k != "" {
			p.IncludeConceptKeys[k] = struct{}{}
		}
	}

	p.ExcludeDOISet = make(map[string]struct{}, len(p.ExcludeDOIs))
	for _, d := range p.ExcludeDOIs {
		if n := textnorm.NormalizeDOI(d); n != "" {
			p.ExcludeDOISet[n] = struct{}{}
		}
	}
}

// NoFilter is the implicit profile used when a roster entry names none.
func NoFilter() *domain.FilterProfile {
	p := &domain.FilterProfile{Name: string(domain.FilterModeNone), Mode: domain.FilterModeNone}
	Compile(p)
	return p
}

func keywords(raw []string) []domain.Keyword {
	out := make([]domain.Keyword, 0, len(raw))
	for _, r := range raw {
		key := textnorm.MatchKey(r)
		if key == "" {
			continue
		}
		out = append(out, domain.Keyword{Raw: strings.TrimSpace(r), Key: key})
	}
	return out
}

// conceptIDKey returns the short lower-case OpenAlex concept id ("c123") for
// values such as "C123" or "https://openalex.org/C123", or "" otherwise.
func conceptIDKey(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.TrimPrefix(v, "https://openalex.org/")
	if conceptIDExpr.MatchString(v) {
		return v
	}
	return ""
}

func decodeStrict(format Format, raw []byte, v *document) error {
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return err
		}
		if dec.More() {
			return errors.New("trailing data after profile object")
		}
		return nil
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("empty document")
			}
			return err
		}
		return nil
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		return dec.Decode(v)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
