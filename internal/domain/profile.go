package domain

// FilterMode selects how a profile treats works.
type FilterMode string

const (
	FilterModeNone         FilterMode = "none"
	FilterModeIncludeIfAny FilterMode = "include_if_any"
)

// Keyword keeps the configured spelling next to its match key.
type Keyword struct {
	Raw string
	Key string
}

// FilterProfile is a named, read-only rule set shared by every work evaluated with it.
type FilterProfile struct {
	Name                 string
	Mode                 FilterMode
	MinConceptScore      float64
	IncludeConcepts      []string
	IncludeTitleKeywords []string
	ExcludeTitleKeywords []string
	ExcludeDOIs          []string

	// Match keys, built once by the loader.
	IncludeConceptKeys map[string]struct{}
	IncludeKeywords    []Keyword
	ExcludeKeywords    []Keyword
	ExcludeDOISet      map[string]struct{}
}
