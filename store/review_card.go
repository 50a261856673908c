package store

import (
	"context"
)

// ReviewCard is the per-(user, item) scheduling record. It is created lazily
// on the first attempt and mutated on every subsequent attempt.
//
// Invariants: EaseFactor >= 1300 (stored x1000), IntervalDays >= 1, and
// NextReviewTs equals LastReviewedTs plus IntervalDays days after any update.
type ReviewCard struct {
	ID             int32
	UserID         int32
	ItemID         int32
	ItemKind       ItemKind
	Repetitions    int32
	EaseFactor     int32
	IntervalDays   int32
	NextReviewTs   int64
	LastReviewedTs *int64
	CreatedTs      int64
	UpdatedTs      int64
}

// FindReviewCard is the find condition for review cards.
type FindReviewCard struct {
	UserID   *int32
	ItemID   *int32
	ItemKind *ItemKind
	// DueBeforeTs selects cards with next_review_ts <= the given timestamp.
	// Results are always ordered by next_review_ts ascending.
	DueBeforeTs *int64
	Limit       *int
}

// UpsertReviewCard upserts a review card keyed by (user_id, item_id, item_kind).
func (s *Store) UpsertReviewCard(ctx context.Context, upsert *ReviewCard) (*ReviewCard, error) {
	return s.driver.UpsertReviewCard(ctx, upsert)
}

// GetReviewCard returns the matching review card or nil if none exists.
func (s *Store) GetReviewCard(ctx context.Context, find *FindReviewCard) (*ReviewCard, error) {
	list, err := s.driver.ListReviewCards(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListReviewCards lists review cards with filter.
func (s *Store) ListReviewCards(ctx context.Context, find *FindReviewCard) ([]*ReviewCard, error) {
	return s.driver.ListReviewCards(ctx, find)
}
