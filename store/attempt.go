package store

import (
	"context"
)

// AttemptRecord is the immutable fact of one practice attempt. Exactly one of
// Score (case attempts) or Correct (question attempts) is set. Rows are never
// mutated or deleted.
type AttemptRecord struct {
	ID         int32
	UID        string
	UserID     int32
	ItemID     int32
	ItemKind   ItemKind
	Specialty  string
	Difficulty string
	Score      *int32
	Correct    *bool
	CreatedTs  int64
}

// IsFailure reports whether the attempt represents a failed outcome.
func (a *AttemptRecord) IsFailure() bool {
	if a.Score != nil {
		return *a.Score <= 0
	}
	if a.Correct != nil {
		return !*a.Correct
	}
	return false
}

// FindAttemptRecord is the find condition for attempt records.
type FindAttemptRecord struct {
	UserID     *int32
	ItemID     *int32
	ItemKind   *ItemKind
	Specialty  *string
	Difficulty *string
	// ClusterKey filters by the item's resolved cluster via the
	// context_cluster_mapping table.
	ClusterKey *string

	// OrderByCreatedTsDesc returns newest attempts first.
	OrderByCreatedTsDesc bool
	Limit                *int
}

// CreateAttemptRecord creates a new attempt record.
func (s *Store) CreateAttemptRecord(ctx context.Context, create *AttemptRecord) (*AttemptRecord, error) {
	return s.driver.CreateAttemptRecord(ctx, create)
}

// ListAttemptRecords lists attempt records with filter.
func (s *Store) ListAttemptRecords(ctx context.Context, find *FindAttemptRecord) ([]*AttemptRecord, error) {
	return s.driver.ListAttemptRecords(ctx, find)
}
