package domain

import "fmt"

// Concept is a subject tag attached to a work by the metadata service.
type Concept struct {
	ID    string
	Name  string
	Score float64
}

// Work is a core entity describing one publication fetched from the metadata service.
type Work struct {
	WorkID          string
	Title           string
	DOI             string
	PublicationYear int
	Type            string
	SourceType      string
	SourceName      string
	Concepts        []Concept
	Authors         []string
}

// RosterEntry is one researcher to fetch works for.
type RosterEntry struct {
	Identifier    string
	DisplayName   string
	FilterProfile string
	// Position is the zero-based roster row; it defines processing order.
	Position int
}

// Category enumerates the output buckets. Every retained work maps to exactly one.
type Category int

const (
	CategoryJournal Category = iota
	CategoryConference
	CategoryBook
)

// Categories lists all categories in output order.
var Categories = []Category{CategoryJournal, CategoryConference, CategoryBook}

func (c Category) String() string {
	switch c {
	case CategoryJournal:
		return "journal"
	case CategoryConference:
		return "conference"
	case CategoryBook:
		return "book"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ParseCategory maps a configuration string to a Category.
func ParseCategory(value string) (Category, error) {
	switch value {
	case "journal":
		return CategoryJournal, nil
	case "conference":
		return CategoryConference, nil
	case "book":
		return CategoryBook, nil
	default:
		return 0, fmt.Errorf("unknown category %q", value)
	}
}

// ClassificationResult carries the assigned category; Reason is diagnostic only.
type ClassificationResult struct {
	Category Category
	Reason   string
}

// FilterDecision is the outcome of evaluating a work against a profile.
type FilterDecision struct {
	Included bool
	Reason   string
}

// Entry is a retained work together with the roster entry that first surfaced it.
type Entry struct {
	Work           *Work
	Owner          RosterEntry
	Classification ClassificationResult
}

// ExcludedEntry is a work dropped by the owner's filter profile.
type ExcludedEntry struct {
	Entry
	Reason string
}

// EntryStats counts what happened to one roster entry during a run.
type EntryStats struct {
	Owner      RosterEntry
	Fetched    int
	Included   int
	Excluded   int
	Duplicates int
	Malformed  int
	Err        error
}

// AggregatedOutput is the final, ordered result handed to rendering.
type AggregatedOutput struct {
	Journals    []Entry
	Conferences []Entry
	Books       []Entry
	Excluded    []ExcludedEntry
	Stats       []EntryStats
}

// Bucket returns the entries for a category.
func (o *AggregatedOutput) Bucket(c Category) []Entry {
	switch c {
	case CategoryConference:
		return o.Conferences
	case CategoryBook:
		return o.Books
	default:
		return o.Journals
	}
}

// Append adds an entry to the bucket for its classification.
func (o *AggregatedOutput) Append(e Entry) {
	switch e.Classification.Category {
	case CategoryConference:
		o.Conferences = append(o.Conferences, e)
	case CategoryBook:
		o.Books = append(o.Books, e)
	default:
		o.Journals = append(o.Journals, e)
	}
}

// Failures returns the stats of roster entries whose retrieval failed.
func (o *AggregatedOutput) Failures() []EntryStats {
	var failed []EntryStats
	for _, s := range o.Stats {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}
