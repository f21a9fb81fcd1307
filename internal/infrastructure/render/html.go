package render

import (
	"bytes"
	"cmp"
	"fmt"
	"html/template"
	"slices"
	"strconv"
	"strings"

	"ScholarSnippets/internal/domain"
	"ScholarSnippets/internal/textnorm"
)

const (
	DefaultMaxItems    = 120
	DefaultMaxExcluded = 300
)

// Section is the wrapper shown around one category snippet.
type Section struct {
	Title     string
	HeroImage string
	Intro     string
}

// Options controls snippet wrappers and list caps.
type Options struct {
	Journals    Section
	Conferences Section
	Books       Section
	MaxItems    int
	MaxExcluded int
}

// DefaultOptions returns the wrappers used on the laboratory site.
func DefaultOptions() Options {
	return Options{
		Journals: Section{
			Title:     "Articoli",
			HeroImage: "/sites/st02/files/pubblicazioni-big.jpg",
			Intro:     "Articoli su riviste internazionali indicizzati su SCOPUS e/o WoS.",
		},
		Conferences: Section{
			Title:     "Conferenze",
			HeroImage: "/sites/st02/files/conferenze-big.jpg",
			Intro:     "Lavori presentati a conferenze nazionali e internazionali (incluse EGU).",
		},
		Books: Section{
			Title:     "Libri e capitoli di libri",
			HeroImage: "/sites/st02/files/libri-bg.jpg",
			Intro:     "Libri, capitoli e contributi editoriali associati ai membri del laboratorio.",
		},
		MaxItems:    DefaultMaxItems,
		MaxExcluded: DefaultMaxExcluded,
	}
}

// Section returns the wrapper for a category.
func (o Options) Section(c domain.Category) Section {
	switch c {
	case domain.CategoryConference:
		return o.Conferences
	case domain.CategoryBook:
		return o.Books
	default:
		return o.Journals
	}
}

const pageCSS = `.scheda-wrap{max-width:980px;margin:0 auto;}
.scheda-title{margin:0 0 12px;font-size:28px;font-weight:700;line-height:1.1;}
.scheda-hero{margin:0 0 16px;}
.scheda-hero img{display:block;width:100%;height:auto;border-radius:3px;}
.scheda-intro{margin:0 0 22px;font-size:13px;line-height:1.6;color:#333;}
.scheda-body{font-size:13px;line-height:1.75;color:#333;}
.art-list{margin:0;padding:0;}
.art-item{display:grid;grid-template-columns:56px 1fr;gap:16px;align-items:start;padding:10px 0;border-bottom:1px solid #eee;}
.art-num{width:44px;height:44px;border-radius:50%;background:#4a4a4a;color:#fff;display:flex;align-items:center;justify-content:center;font-weight:700;font-size:14px;line-height:1;}
.art-cit{font-size:13px;line-height:1.5;color:#333;}
.art-cit a{color:#1a73e8;text-decoration:none;}
.art-cit a:hover{text-decoration:underline;}
.art-why{font-size:12px;color:#888;}
@media (max-width:700px){
  .art-item{grid-template-columns:46px 1fr;}
  .art-num{width:38px;height:38px;font-size:13px;}
}`

const templates = `
{{define "list"}}<style>
{{css}}
</style>

<div class="art-list">
{{- range .}}
  <div class="art-item">
    <div class="art-num">{{.Number}}</div>
    <div class="art-txt">
      <div class="art-cit">{{template "citation" .Citation}}</div>
      {{- with .Why}}
      <div class="art-why">{{.}}</div>
      {{- end}}
    </div>
  </div>
{{- end}}
</div>
{{end}}

{{define "citation"}}{{with .Lead}}{{.}} {{end}}{{if .Title}}<strong>{{.Title}}</strong>{{end}}{{with .Venue}} {{.}}{{end}}{{if .Period}}.{{end}}{{with .DOI}} <a href="https://doi.org/{{.}}" target="_blank" rel="noopener">https://doi.org/{{.}}</a>{{end}}{{end}}

{{define "snippet"}}<div class="scheda-wrap">

  <h1 class="scheda-title">{{.Section.Title}}</h1>

  <figure class="scheda-hero">
    <img src="{{.Section.HeroImage}}" alt="{{.Section.Title}}">
  </figure>

  <p class="scheda-intro">
    {{.Section.Intro}}
  </p>

  <div class="scheda-body">
    {{template "list" .Items}}
  </div>

</div>
{{end}}
`

type citation struct {
	Lead   string
	Title  string
	Venue  string
	Period bool
	DOI    string
}

type item struct {
	Number   int
	Citation citation
	Why      string
}

// Renderer turns aggregated entries into HTML fragments.
type Renderer struct {
	opts Options
	tmpl *template.Template
}

// NewRenderer parses the templates once.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultMaxItems
	}
	if opts.MaxExcluded <= 0 {
		opts.MaxExcluded = DefaultMaxExcluded
	}
	tmpl, err := template.New("render").
		Funcs(template.FuncMap{"css": func() template.CSS { return template.CSS(pageCSS) }}).
		Parse(templates)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{opts: opts, tmpl: tmpl}, nil
}

// Snippet renders the wrapped, numbered list for one category.
func (r *Renderer) Snippet(c domain.Category, entries []domain.Entry) ([]byte, error) {
	works := make([]*domain.Work, 0, len(entries))
	for _, e := range entries {
		works = append(works, e.Work)
	}
	order := sortedIndexes(works)
	order = capped(order, r.opts.MaxItems)

	items := make([]item, len(order))
	for i, idx := range order {
		items[i] = item{Number: len(order) - i, Citation: formatCitation(works[idx])}
	}

	var buf bytes.Buffer
	data := struct {
		Section Section
		Items   []item
	}{Section: r.opts.Section(c), Items: items}
	if err := r.tmpl.ExecuteTemplate(&buf, "snippet", data); err != nil {
		return nil, fmt.Errorf("render %s snippet: %w", c, err)
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

// Excluded renders the exclusion report: a numbered list that also names the
// member whose profile dropped each work and why.
func (r *Renderer) Excluded(entries []domain.ExcludedEntry) ([]byte, error) {
	works := make([]*domain.Work, 0, len(entries))
	for _, e := range entries {
		works = append(works, e.Work)
	}
	order := capped(sortedIndexes(works), r.opts.MaxExcluded)

	items := make([]item, len(order))
	for i, idx := range order {
		e := entries[idx]
		items[i] = item{
			Number:   len(order) - i,
			Citation: formatCitation(e.Work),
			Why:      e.Owner.DisplayName + ": " + e.Reason,
		}
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "list", items); err != nil {
		return nil, fmt.Errorf("render excluded report: %w", err)
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

// sortedIndexes orders works by year descending (unknown years last), then
// by case-insensitive title.
func sortedIndexes(works []*domain.Work) []int {
	idx := make([]int, len(works))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		wa, wb := works[a], works[b]
		if c := cmp.Compare(yearKey(wb), yearKey(wa)); c != 0 {
			return c
		}
		return cmp.Compare(strings.ToLower(wa.Title), strings.ToLower(wb.Title))
	})
	return idx
}

func yearKey(w *domain.Work) int {
	if w.PublicationYear <= 0 {
		return -1
	}
	return w.PublicationYear
}

func capped(idx []int, limit int) []int {
	if limit > 0 && len(idx) > limit {
		return idx[:limit]
	}
	return idx
}

func formatCitation(w *domain.Work) citation {
	authors := strings.Join(w.Authors, ", ")
	year := ""
	if w.PublicationYear > 0 {
		year = strconv.Itoa(w.PublicationYear)
	}

	c := citation{Title: w.Title, Venue: w.SourceName, DOI: textnorm.NormalizeDOI(w.DOI)}
	switch {
	case authors != "" && year != "":
		c.Lead = authors + " (" + year + ")"
	case authors != "":
		c.Lead = authors
	case year != "":
		c.Lead = "(" + year + ")"
	}

	last := c.Venue
	if last == "" {
		last = c.Title
	}
	if last == "" {
		last = c.Lead
	}
	c.Period = last != "" && !strings.HasSuffix(last, ".")
	return c
}
