package usecase

import (
	"strconv"

	"ScholarSnippets/internal/domain"
	"ScholarSnippets/internal/textnorm"
)

// seenSet tracks works already retained during one run. A work counts as a
// duplicate when its id, its DOI or, failing both, its title and year were
// seen before.
type seenSet struct {
	ids    map[string]struct{}
	dois   map[string]struct{}
	titles map[string]struct{}
}

func newSeenSet() *seenSet {
	return &seenSet{
		ids:    map[string]struct{}{},
		dois:   map[string]struct{}{},
		titles: map[string]struct{}{},
	}
}

// add records w and reports whether it was new.
func (s *seenSet) add(w domain.Work) bool {
	id := w.WorkID
	doi := textnorm.NormalizeDOI(w.DOI)

	if id != "" {
		if _, ok := s.ids[id]; ok {
			return false
		}
	}
	if doi != "" {
		if _, ok := s.dois[doi]; ok {
			return false
		}
	}

	var titleKey string
	if id == "" && doi == "" {
		titleKey = textnorm.MatchKey(w.Title) + "|" + strconv.Itoa(w.PublicationYear)
		if _, ok := s.titles[titleKey]; ok {
			return false
		}
	}

	if id != "" {
		s.ids[id] = struct{}{}
	}
	if doi != "" {
		s.dois[doi] = struct{}{}
	}
	if titleKey != "" {
		s.titles[titleKey] = struct{}{}
	}
	return true
}
