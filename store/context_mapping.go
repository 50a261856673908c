package store

import (
	"context"
	"fmt"
)

// ContextClusterMapping memoizes the resolution of a raw content item (or a
// category identifier) to its (specialty, difficulty, clusterKey) context.
// Entries never expire; they are only recomputed when absent.
type ContextClusterMapping struct {
	ID          int32
	ContextType ContextType
	ContextID   string
	Specialty   string
	Difficulty  *string
	ClusterKey  *string
	MatchedBy   MatchedBy
	UpdatedTs   int64
}

// FindContextClusterMapping is the find condition for context mappings.
type FindContextClusterMapping struct {
	ContextType ContextType
	ContextID   string
}

func mappingCacheKey(contextType ContextType, contextID string) string {
	return fmt.Sprintf("%s:%s", contextType, contextID)
}

// GetContextClusterMapping returns the memoized mapping, or nil if the
// context has never been resolved.
func (s *Store) GetContextClusterMapping(ctx context.Context, find *FindContextClusterMapping) (*ContextClusterMapping, error) {
	key := mappingCacheKey(find.ContextType, find.ContextID)
	if v, ok := s.mappingCache.Get(key); ok {
		return v.(*ContextClusterMapping), nil
	}

	mapping, err := s.driver.GetContextClusterMapping(ctx, find)
	if err != nil {
		return nil, err
	}
	if mapping != nil {
		s.mappingCache.Set(key, mapping)
	}
	return mapping, nil
}

// UpsertContextClusterMapping persists a resolved mapping, overwriting any
// previous entry for the same (contextType, contextID).
func (s *Store) UpsertContextClusterMapping(ctx context.Context, upsert *ContextClusterMapping) (*ContextClusterMapping, error) {
	mapping, err := s.driver.UpsertContextClusterMapping(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.mappingCache.Set(mappingCacheKey(mapping.ContextType, mapping.ContextID), mapping)
	return mapping, nil
}
