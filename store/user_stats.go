package store

import (
	"context"
)

// Stat scopes. Every attempt updates one row per scope: the overall row, the
// per-specialty row, and the per-difficulty row — all within the attempt's
// practice mode (item kind).
type StatScope string

const (
	StatScopeOverall    StatScope = "overall"
	StatScopeSpecialty  StatScope = "specialty"
	StatScopeDifficulty StatScope = "difficulty"
)

// UserStat is an incrementally maintained aggregate row keyed by
// (user, item kind, scope, scope key). Case rows accumulate TotalScore;
// question rows accumulate TotalCorrect. AverageScore is recomputed inside
// the upsert statement, never from scratch.
type UserStat struct {
	ID             int32
	UserID         int32
	ItemKind       ItemKind
	Scope          StatScope
	ScopeKey       string
	TotalAttempts  int32
	TotalScore     int32
	TotalCorrect   int32
	AverageScore   int32
	LastActivityTs int64
}

// IncrementUserStat is one atomic aggregate update: attempts +1 and the
// outcome delta folded into the matching row.
type IncrementUserStat struct {
	UserID       int32
	ItemKind     ItemKind
	Scope        StatScope
	ScopeKey     string
	ScoreDelta   int32
	CorrectDelta int32
	ActivityTs   int64
}

// FindUserStat is the find condition for aggregate rows.
type FindUserStat struct {
	UserID   *int32
	ItemKind *ItemKind
	Scope    *StatScope
	ScopeKey *string
}

// IncrementUserStat applies one attempt to an aggregate row atomically
// (insert-or-increment in a single statement, no read-modify-write).
func (s *Store) IncrementUserStat(ctx context.Context, increment *IncrementUserStat) error {
	return s.driver.IncrementUserStat(ctx, increment)
}

// GetUserStat returns the matching aggregate row, or nil if none exists.
func (s *Store) GetUserStat(ctx context.Context, find *FindUserStat) (*UserStat, error) {
	list, err := s.driver.ListUserStats(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListUserStats lists aggregate rows with filter.
func (s *Store) ListUserStats(ctx context.Context, find *FindUserStat) ([]*UserStat, error) {
	return s.driver.ListUserStats(ctx, find)
}
