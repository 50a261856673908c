package store

import (
	"context"
	"fmt"
)

// ClusterTaxonomyEntry is one sub-topic cluster within a specialty. The
// taxonomy is seeded at migration time and read-only at runtime; the resolver
// depends on the stored order (position, then id) for its tie-break.
type ClusterTaxonomyEntry struct {
	ID         int32
	Specialty  string
	ClusterKey string
	Label      string
	Keywords   []string
	Position   int32
}

// FindClusterTaxonomyEntry is the find condition for taxonomy entries.
type FindClusterTaxonomyEntry struct {
	Specialty  *string
	ClusterKey *string
}

func taxonomyCacheKey(specialty string) string {
	return fmt.Sprintf("taxonomy:%s", specialty)
}

// ListClusterTaxonomyEntries lists taxonomy entries in stored order.
// Per-specialty lookups are cached.
func (s *Store) ListClusterTaxonomyEntries(ctx context.Context, find *FindClusterTaxonomyEntry) ([]*ClusterTaxonomyEntry, error) {
	if find.Specialty != nil && find.ClusterKey == nil {
		if v, ok := s.taxonomyCache.Get(taxonomyCacheKey(*find.Specialty)); ok {
			return v.([]*ClusterTaxonomyEntry), nil
		}
	}

	list, err := s.driver.ListClusterTaxonomyEntries(ctx, find)
	if err != nil {
		return nil, err
	}
	if find.Specialty != nil && find.ClusterKey == nil {
		s.taxonomyCache.Set(taxonomyCacheKey(*find.Specialty), list)
	}
	return list, nil
}

// UpsertClusterTaxonomyEntry upserts a taxonomy entry (seeding path).
func (s *Store) UpsertClusterTaxonomyEntry(ctx context.Context, upsert *ClusterTaxonomyEntry) (*ClusterTaxonomyEntry, error) {
	entry, err := s.driver.UpsertClusterTaxonomyEntry(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.taxonomyCache.Delete(taxonomyCacheKey(entry.Specialty))
	return entry, nil
}
