package classify

import (
	"ScholarSnippets/internal/domain"
	"ScholarSnippets/internal/textnorm"
)

// Policy holds the tunable parts of classification. Zero-valued lists fall back
// to DefaultPolicy when passed through New.
type Policy struct {
	ForcedConferenceVenues  []string
	ConferenceTitleKeywords []string
	BookTitleKeywords       []string
	DefaultCategory         domain.Category
}

// DefaultPolicy returns the built-in venue override and heuristic keywords.
func DefaultPolicy() Policy {
	return Policy{
		ForcedConferenceVenues:  []string{"egu", "european geosciences union", "general assembly"},
		ConferenceTitleKeywords: []string{"proceedings", "conference", "workshop", "symposium", "congress", "abstracts"},
		BookTitleKeywords:       []string{"chapter", "handbook", "book"},
		DefaultCategory:         domain.CategoryJournal,
	}
}

var (
	bookTypes = keySet(
		"book", "book-chapter", "edited-book", "monograph", "reference-book",
		"book-section", "book-part", "book-set", "book-series", "book series", "ebook platform",
	)
	conferenceTypes = keySet(
		"proceedings-article", "proceedings", "conference", "conference-paper", "paper-conference",
	)
	journalTypes = keySet(
		"journal-article", "article", "review", "letter", "editorial",
	)
)

// Classifier maps a work to exactly one category. It is safe for concurrent use.
type Classifier struct {
	venues     []string
	conference []string
	book       []string
	fallback   domain.Category
}

// New builds a classifier from policy.
func New(policy Policy) *Classifier {
	def := DefaultPolicy()
	if policy.ForcedConferenceVenues == nil {
		policy.ForcedConferenceVenues = def.ForcedConferenceVenues
	}
	if policy.ConferenceTitleKeywords == nil {
		policy.ConferenceTitleKeywords = def.ConferenceTitleKeywords
	}
	if policy.BookTitleKeywords == nil {
		policy.BookTitleKeywords = def.BookTitleKeywords
	}
	return &Classifier{
		venues:     matchKeys(policy.ForcedConferenceVenues),
		conference: matchKeys(policy.ConferenceTitleKeywords),
		book:       matchKeys(policy.BookTitleKeywords),
		fallback:   policy.DefaultCategory,
	}
}

// Classify applies the rules in order; the first match wins.
func (c *Classifier) Classify(w domain.Work) domain.ClassificationResult {
	venue := textnorm.MatchKey(w.SourceName)
	workType := textnorm.MatchKey(w.Type)
	sourceType := textnorm.MatchKey(w.SourceType)

	if kw, ok := firstContained(venue, c.venues); ok {
		return result(domain.CategoryConference, "forced venue: "+kw)
	}

	if _, ok := bookTypes[workType]; ok {
		return result(domain.CategoryBook, "book type: "+w.Type)
	}
	if _, ok := bookTypes[sourceType]; ok {
		return result(domain.CategoryBook, "book source type: "+w.SourceType)
	}

	if _, ok := conferenceTypes[workType]; ok {
		return result(domain.CategoryConference, "conference type: "+w.Type)
	}
	if _, ok := conferenceTypes[sourceType]; ok {
		return result(domain.CategoryConference, "conference source type: "+w.SourceType)
	}

	if _, ok := journalTypes[workType]; ok {
		return result(domain.CategoryJournal, "journal type: "+w.Type)
	}

	return c.heuristic(textnorm.MatchKey(w.Title), venue)
}

// heuristic handles works whose declared type is missing or unrecognized.
func (c *Classifier) heuristic(title, venue string) domain.ClassificationResult {
	for _, text := range []string{title, venue} {
		if kw, ok := firstContained(text, c.conference); ok {
			return result(domain.CategoryConference, "heuristic keyword: "+kw)
		}
	}
	for _, text := range []string{title, venue} {
		if kw, ok := firstContained(text, c.book); ok {
			return result(domain.CategoryBook, "heuristic keyword: "+kw)
		}
	}
	return result(c.fallback, "default category")
}

func result(category domain.Category, reason string) domain.ClassificationResult {
	return domain.ClassificationResult{Category: category, Reason: reason}
}

// firstContained matches keys at word starts, so "egu" hits "EGU2020" but not
// "Regulatory".
func firstContained(text string, keys []string) (string, bool) {
	if text == "" {
		return "", false
	}
	padded := " " + text
	for _, key := range keys {
		if textnorm.ContainsKey(padded, " "+key) {
			return key, true
		}
	}
	return "", false
}

func matchKeys(values []string) []string {
	keys := make([]string, 0, len(values))
	for _, v := range values {
		if k := textnorm.MatchKey(v); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func keySet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[textnorm.MatchKey(v)] = struct{}{}
	}
	return set
}
