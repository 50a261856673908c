package store

// ItemKind is the kind of practice content an attempt refers to.
type ItemKind string

const (
	ItemKindCase     ItemKind = "case"
	ItemKindQuestion ItemKind = "question"
)

func (k ItemKind) String() string {
	return string(k)
}

// ContextType identifies what a revision context resolves from.
type ContextType string

const (
	ContextTypeCase     ContextType = "case"
	ContextTypeQuestion ContextType = "question"
	// ContextTypeCategory encodes the key directly in the identifier as
	// "specialty|difficulty|clusterKey", with "any" meaning unset.
	ContextTypeCategory ContextType = "category"
)

func (t ContextType) String() string {
	return string(t)
}

// MatchedBy records how a context was resolved to a cluster.
type MatchedBy string

const (
	MatchedByMetadata  MatchedBy = "metadata"
	MatchedByHeuristic MatchedBy = "heuristic"
	MatchedByCached    MatchedBy = "cached"
)

// Difficulty levels for practice content.
const (
	DifficultyFoundation   = "foundation"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)
