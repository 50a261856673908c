package store

import (
	"context"
)

// Case is a clinical case scenario. Cases are scored numerically; negative
// scores are possible (unsafe management decisions).
type Case struct {
	ID          int32
	UID         string
	Title       string
	Description string
	Specialty   string
	Difficulty  string
	// ClusterKey is an optional author-tagged cluster. It is validated
	// against the taxonomy at resolution time.
	ClusterKey *string
	CreatedTs  int64
	UpdatedTs  int64
}

// FindCase is the find condition for cases.
type FindCase struct {
	ID        *int32
	UID       *string
	Specialty *string
	Limit     *int
}

// CreateCase creates a new case.
func (s *Store) CreateCase(ctx context.Context, create *Case) (*Case, error) {
	return s.driver.CreateCase(ctx, create)
}

// GetCase returns the matching case, or nil if none exists.
func (s *Store) GetCase(ctx context.Context, find *FindCase) (*Case, error) {
	list, err := s.driver.ListCases(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListCases lists cases with filter.
func (s *Store) ListCases(ctx context.Context, find *FindCase) ([]*Case, error) {
	return s.driver.ListCases(ctx, find)
}
