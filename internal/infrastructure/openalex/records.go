package openalex

import (
	"strings"

	"ScholarSnippets/internal/domain"
	"ScholarSnippets/internal/textnorm"
)

type worksPage struct {
	Meta    pageMeta     `json:"meta"`
	Results []workRecord `json:"results"`
}

type pageMeta struct {
	Count      int    `json:"count"`
	NextCursor string `json:"next_cursor"`
}

type workRecord struct {
	ID              string          `json:"id"`
	DOI             string          `json:"doi"`
	Title           string          `json:"title"`
	DisplayName     string          `json:"display_name"`
	PublicationYear int             `json:"publication_year"`
	Type            string          `json:"type"`
	TypeCrossref    string          `json:"type_crossref"`
	PrimaryLocation *location       `json:"primary_location"`
	Concepts        []conceptRecord `json:"concepts"`
	Authorships     []authorship    `json:"authorships"`
}

type location struct {
	Source *sourceRecord `json:"source"`
}

type sourceRecord struct {
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

type conceptRecord struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}

type authorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

// toWork maps an API record to a Work. It reports false when the record has
// no usable title.
func (r workRecord) toWork() (domain.Work, bool) {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = strings.TrimSpace(r.DisplayName)
	}
	title = textnorm.StripMarkup(title)
	if title == "" {
		return domain.Work{}, false
	}

	// type_crossref keeps the finer distinction (proceedings-article vs article).
	workType := strings.TrimSpace(r.TypeCrossref)
	if workType == "" {
		workType = strings.TrimSpace(r.Type)
	}

	w := domain.Work{
		WorkID:          strings.TrimSpace(r.ID),
		Title:           title,
		DOI:             textnorm.NormalizeDOI(r.DOI),
		PublicationYear: r.PublicationYear,
		Type:            strings.ToLower(workType),
	}
	if r.PrimaryLocation != nil && r.PrimaryLocation.Source != nil {
		w.SourceName = strings.TrimSpace(r.PrimaryLocation.Source.DisplayName)
		w.SourceType = strings.ToLower(strings.TrimSpace(r.PrimaryLocation.Source.Type))
	}
	for _, c := range r.Concepts {
		w.Concepts = append(w.Concepts, domain.Concept{ID: c.ID, Name: c.DisplayName, Score: c.Score})
	}
	for _, a := range r.Authorships {
		if name := strings.TrimSpace(a.Author.DisplayName); name != "" {
			w.Authors = append(w.Authors, name)
		}
	}
	return w, true
}
