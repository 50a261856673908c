// Package resolver maps raw content items and category identifiers to
// the (specialty, difficulty, clusterKey) context that the scheduler
// and the note cache share.
package resolver

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	apperrors "github.com/medrecall/medrecall/server/internal/errors"
	"github.com/medrecall/medrecall/store"
)

// Store is the slice of the store the resolver needs.
type Store interface {
	GetContextClusterMapping(ctx context.Context, find *store.FindContextClusterMapping) (*store.ContextClusterMapping, error)
	UpsertContextClusterMapping(ctx context.Context, upsert *store.ContextClusterMapping) (*store.ContextClusterMapping, error)
	ListClusterTaxonomyEntries(ctx context.Context, find *store.FindClusterTaxonomyEntry) ([]*store.ClusterTaxonomyEntry, error)
	GetCase(ctx context.Context, find *store.FindCase) (*store.Case, error)
	GetQuestion(ctx context.Context, find *store.FindQuestion) (*store.Question, error)
}

// ResolvedContext is the abstract key both subsystems operate on.
type ResolvedContext struct {
	Specialty  string
	Difficulty *string
	ClusterKey *string
	MatchedBy  store.MatchedBy
}

// Service resolves contexts with permanent memoization.
type Service struct {
	store Store
}

// NewService creates a resolver service.
func NewService(s Store) *Service {
	return &Service{store: s}
}

// Resolve resolves a context to its (specialty, difficulty, clusterKey)
// triple. Results are memoized permanently in the mapping table; a
// memoized entry is returned verbatim without recomputation.
func (s *Service) Resolve(ctx context.Context, contextType store.ContextType, contextID string) (*ResolvedContext, error) {
	mapping, err := s.store.GetContextClusterMapping(ctx, &store.FindContextClusterMapping{
		ContextType: contextType,
		ContextID:   contextID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "get context mapping")
	}
	if mapping != nil {
		return &ResolvedContext{
			Specialty:  mapping.Specialty,
			Difficulty: mapping.Difficulty,
			ClusterKey: mapping.ClusterKey,
			MatchedBy:  store.MatchedByCached,
		}, nil
	}

	var resolved *ResolvedContext
	switch contextType {
	case store.ContextTypeCase, store.ContextTypeQuestion:
		resolved, err = s.resolveItem(ctx, contextType, contextID)
	case store.ContextTypeCategory:
		resolved, err = s.resolveCategory(ctx, contextID)
	default:
		return nil, apperrors.InvalidInputf("unknown context type %q", contextType)
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.store.UpsertContextClusterMapping(ctx, &store.ContextClusterMapping{
		ContextType: contextType,
		ContextID:   contextID,
		Specialty:   resolved.Specialty,
		Difficulty:  resolved.Difficulty,
		ClusterKey:  resolved.ClusterKey,
		MatchedBy:   resolved.MatchedBy,
		UpdatedTs:   time.Now().Unix(),
	}); err != nil {
		return nil, errors.Wrap(err, "persist context mapping")
	}

	return resolved, nil
}

// resolveItem resolves a case or question from its declared metadata,
// falling back to keyword scoring over its free text.
func (s *Service) resolveItem(ctx context.Context, contextType store.ContextType, contextID string) (*ResolvedContext, error) {
	itemID, err := strconv.ParseInt(contextID, 10, 32)
	if err != nil {
		return nil, apperrors.InvalidInputf("malformed %s id %q", contextType, contextID)
	}
	id := int32(itemID)

	var specialty, difficulty, freeText string
	var tagged *string

	switch contextType {
	case store.ContextTypeCase:
		item, err := s.store.GetCase(ctx, &store.FindCase{ID: &id})
		if err != nil {
			return nil, errors.Wrap(err, "get case")
		}
		if item == nil {
			return nil, apperrors.NotFoundf("case %d", id)
		}
		specialty, difficulty, tagged = item.Specialty, item.Difficulty, item.ClusterKey
		freeText = item.Title + " " + item.Description
	case store.ContextTypeQuestion:
		item, err := s.store.GetQuestion(ctx, &store.FindQuestion{ID: &id})
		if err != nil {
			return nil, errors.Wrap(err, "get question")
		}
		if item == nil {
			return nil, apperrors.NotFoundf("question %d", id)
		}
		specialty, difficulty, tagged = item.Specialty, item.Difficulty, item.ClusterKey
		freeText = item.Stem + " " + item.Explanation
	}

	entries, err := s.store.ListClusterTaxonomyEntries(ctx, &store.FindClusterTaxonomyEntry{Specialty: &specialty})
	if err != nil {
		return nil, errors.Wrap(err, "list taxonomy")
	}

	// An author-tagged cluster wins if the taxonomy knows it.
	if tagged != nil {
		for _, entry := range entries {
			if entry.ClusterKey == *tagged {
				return &ResolvedContext{
					Specialty:  specialty,
					Difficulty: &difficulty,
					ClusterKey: tagged,
					MatchedBy:  store.MatchedByMetadata,
				}, nil
			}
		}
	}

	clusterKey := matchCluster(entries, freeText)
	return &ResolvedContext{
		Specialty:  specialty,
		Difficulty: &difficulty,
		ClusterKey: clusterKey,
		MatchedBy:  store.MatchedByHeuristic,
	}, nil
}

// resolveCategory parses a "specialty|difficulty|clusterKey" identifier.
// The difficulty and cluster segments may be omitted or "any", meaning
// unset. A named cluster is validated against the taxonomy.
func (s *Service) resolveCategory(ctx context.Context, contextID string) (*ResolvedContext, error) {
	parts := strings.Split(contextID, "|")
	specialty := strings.TrimSpace(parts[0])
	if specialty == "" {
		return nil, apperrors.InvalidInputf("malformed category id %q", contextID)
	}

	segment := func(i int) *string {
		if i >= len(parts) {
			return nil
		}
		v := strings.TrimSpace(parts[i])
		if v == "" || v == "any" {
			return nil
		}
		return &v
	}
	difficulty := segment(1)
	clusterKey := segment(2)

	if clusterKey != nil {
		entries, err := s.store.ListClusterTaxonomyEntries(ctx, &store.FindClusterTaxonomyEntry{Specialty: &specialty})
		if err != nil {
			return nil, errors.Wrap(err, "list taxonomy")
		}
		found := false
		for _, entry := range entries {
			if entry.ClusterKey == *clusterKey {
				found = true
				break
			}
		}
		if !found {
			return nil, apperrors.NotFoundf("cluster %q in specialty %q", *clusterKey, specialty)
		}
	}

	return &ResolvedContext{
		Specialty:  specialty,
		Difficulty: difficulty,
		ClusterKey: clusterKey,
		MatchedBy:  store.MatchedByMetadata,
	}, nil
}

// matchCluster scores each taxonomy entry by case-insensitive keyword
// occurrences in the free text and returns the best key. Ties and zero
// scores fall back to the first entry in stored order; an empty
// taxonomy yields nil (specialty-level granularity only).
func matchCluster(entries []*store.ClusterTaxonomyEntry, freeText string) *string {
	if len(entries) == 0 {
		return nil
	}

	text := strings.ToLower(freeText)
	best := entries[0]
	bestScore := 0
	for _, entry := range entries {
		score := 0
		for _, keyword := range entry.Keywords {
			score += strings.Count(text, strings.ToLower(keyword))
		}
		if score > bestScore {
			best = entry
			bestScore = score
		}
	}
	return &best.ClusterKey
}
