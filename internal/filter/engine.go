package filter

import (
	"fmt"

	"ScholarSnippets/internal/domain"
	"ScholarSnippets/internal/textnorm"
)

const (
	reasonNoFilter = "no filter"
	reasonDOI      = "excluded DOI"
	reasonNoMatch  = "no match (default exclude)"
)

// Evaluate decides whether w is kept under profile p. Exclusion checks run
// before any inclusion check, so an explicit exclusion always wins.
func Evaluate(w domain.Work, p *domain.FilterProfile) domain.FilterDecision {
	if p == nil || p.Mode == domain.FilterModeNone {
		return include(reasonNoFilter)
	}

	if doi := textnorm.NormalizeDOI(w.DOI); doi != "" {
		if _, ok := p.ExcludeDOISet[doi]; ok {
			return exclude(reasonDOI)
		}
	}

	titleKey := textnorm.MatchKey(w.Title)
	for _, kw := range p.ExcludeKeywords {
		if textnorm.ContainsKey(titleKey, kw.Key) {
			return exclude("excluded keyword: " + kw.Raw)
		}
	}

	for _, kw := range p.IncludeKeywords {
		if textnorm.ContainsKey(titleKey, kw.Key) {
			return include("matched title keyword: " + kw.Raw)
		}
	}

	for _, c := range w.Concepts {
		if c.Score < p.MinConceptScore {
			continue
		}
		if conceptSelected(c, p.IncludeConceptKeys) {
			return include(fmt.Sprintf("matched concept: %s (%.2f)", c.Name, c.Score))
		}
	}

	return exclude(reasonNoMatch)
}

func conceptSelected(c domain.Concept, keys map[string]struct{}) bool {
	if len(keys) == 0 {
		return false
	}
	if _, ok := keys[textnorm.MatchKey(c.Name)]; ok && c.Name != "" {
		return true
	}
	if id := conceptIDKey(c.ID); id != "" {
		_, ok := keys[id]
		return ok
	}
	return false
}

func include(reason string) domain.FilterDecision {
	return domain.FilterDecision{Included: true, Reason: reason}
}

func exclude(reason string) domain.FilterDecision {
	return domain.FilterDecision{Included: false, Reason: reason}
}
