// Package performance maintains the incremental per-user aggregates
// and computes live snapshots for the note staleness check.
package performance

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/medrecall/medrecall/store"
)

// Store is the slice of the store the aggregator needs.
type Store interface {
	IncrementUserStat(ctx context.Context, increment *store.IncrementUserStat) error
	GetUserStat(ctx context.Context, find *store.FindUserStat) (*store.UserStat, error)
	ListUserStats(ctx context.Context, find *store.FindUserStat) ([]*store.UserStat, error)
	ListAttemptRecords(ctx context.Context, find *store.FindAttemptRecord) ([]*store.AttemptRecord, error)
}

// Snapshot is the live performance figure for one resolved key.
type Snapshot struct {
	AverageScore  int32
	TotalAttempts int32
}

// SnapshotKey scopes a live snapshot. Nil fields widen the scope.
type SnapshotKey struct {
	Specialty  string
	Difficulty *string
	ClusterKey *string
}

// Service owns the aggregate rows and snapshot arithmetic.
type Service struct {
	store Store
}

// NewService creates a performance aggregator service.
func NewService(s Store) *Service {
	return &Service{store: s}
}

// RecordOutcome folds one attempt into the three aggregate rows
// (overall, per-specialty, per-difficulty) for the attempt's practice
// mode. Each increment is a single atomic statement; the rows are
// updated independently and each update is retry-safe.
func (s *Service) RecordOutcome(ctx context.Context, attempt *store.AttemptRecord) error {
	var scoreDelta, correctDelta int32
	if attempt.Score != nil {
		scoreDelta = *attempt.Score
	}
	if attempt.Correct != nil && *attempt.Correct {
		correctDelta = 1
	}

	increments := []*store.IncrementUserStat{
		{Scope: store.StatScopeOverall, ScopeKey: ""},
		{Scope: store.StatScopeSpecialty, ScopeKey: attempt.Specialty},
		{Scope: store.StatScopeDifficulty, ScopeKey: attempt.Difficulty},
	}
	for _, inc := range increments {
		inc.UserID = attempt.UserID
		inc.ItemKind = attempt.ItemKind
		inc.ScoreDelta = scoreDelta
		inc.CorrectDelta = correctDelta
		inc.ActivityTs = attempt.CreatedTs
		if err := s.store.IncrementUserStat(ctx, inc); err != nil {
			return errors.Wrapf(err, "increment %s stat", inc.Scope)
		}
	}
	return nil
}

// Snapshot recomputes the user's performance for the given key live
// from attempt history, not from the coarser aggregate rows. Case
// attempts contribute their scores; question attempts contribute
// 100/0 for correct/incorrect. The two modes are merged
// attempt-weighted.
func (s *Service) Snapshot(ctx context.Context, userID int32, key *SnapshotKey) (*Snapshot, error) {
	find := &store.FindAttemptRecord{
		UserID:     &userID,
		Difficulty: key.Difficulty,
		ClusterKey: key.ClusterKey,
	}
	if key.Specialty != "" {
		find.Specialty = &key.Specialty
	}

	attempts, err := s.store.ListAttemptRecords(ctx, find)
	if err != nil {
		return nil, errors.Wrap(err, "list attempts")
	}

	var total int64
	for _, attempt := range attempts {
		switch {
		case attempt.Score != nil:
			total += int64(*attempt.Score)
		case attempt.Correct != nil && *attempt.Correct:
			total += 100
		}
	}

	snapshot := &Snapshot{TotalAttempts: int32(len(attempts))}
	if snapshot.TotalAttempts > 0 {
		snapshot.AverageScore = int32(math.Round(float64(total) / float64(snapshot.TotalAttempts)))
	}
	return snapshot, nil
}

// UserStats returns the user's aggregate rows, optionally filtered by
// scope.
func (s *Service) UserStats(ctx context.Context, userID int32, scope *store.StatScope) ([]*store.UserStat, error) {
	return s.store.ListUserStats(ctx, &store.FindUserStat{
		UserID: &userID,
		Scope:  scope,
	})
}

// MergeAverages combines independently maintained averages into one
// attempt-weighted figure: sum(avg x attempts) / sum(attempts). It is
// the merge rule for combining the case and question practice modes
// into a single leaderboard or staleness view.
func MergeAverages(stats []*store.UserStat) Snapshot {
	var weighted, attempts int64
	for _, stat := range stats {
		weighted += int64(stat.AverageScore) * int64(stat.TotalAttempts)
		attempts += int64(stat.TotalAttempts)
	}

	merged := Snapshot{TotalAttempts: int32(attempts)}
	if attempts > 0 {
		merged.AverageScore = int32(math.Round(float64(weighted) / float64(attempts)))
	}
	return merged
}
