package models

// Filter values shared by list and session selection.
const (
	FilterAll          = "all"
	FilterUnclassified = "unclassified"
	FilterUnset        = "unset"
)

// Sort orders for GrammarFilter.
const (
	SortOldest = "oldest"
	SortNewest = "newest"
	SortAZ     = "az"
	SortZA     = "za"
)

// GrammarFilter selects and orders entries for the list view.
type GrammarFilter struct {
	Query  string
	Status string
	Level  string
	Sort   string
}

// ImportDecision resolves a duplicate found during import.
type ImportDecision string

const (
	DecisionSkip   ImportDecision = "skip"
	DecisionAdd    ImportDecision = "add"
	DecisionUpdate ImportDecision = "update"
)

// Valid reports whether d is one of the known decisions.
func (d ImportDecision) Valid() bool {
	switch d {
	case DecisionSkip, DecisionAdd, DecisionUpdate:
		return true
	}
	return false
}

// ImportCandidate is an incoming entry together with the existing entry it
// collides with, if any.
type ImportCandidate struct {
	Index    int           `json:"index"`
	Entry    GrammarEntry  `json:"entry"`
	Existing *GrammarEntry `json:"existing,omitempty"`
}

// ImportPlan lists the items of a pending import.
type ImportPlan struct {
	Token      string            `json:"token"`
	Items      []ImportCandidate `json:"items"`
	Duplicates int               `json:"duplicates"`
}

// ImportResult reports what an applied import did.
type ImportResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}
