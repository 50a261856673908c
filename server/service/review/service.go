// Package review owns the per-(user, item) scheduling records and the
// spaced-repetition update rule applied on every attempt.
package review

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/medrecall/medrecall/store"
)

const lockStripes = 64

// Store is the slice of the store the scheduler needs.
type Store interface {
	GetReviewCard(ctx context.Context, find *store.FindReviewCard) (*store.ReviewCard, error)
	UpsertReviewCard(ctx context.Context, upsert *store.ReviewCard) (*store.ReviewCard, error)
	ListReviewCards(ctx context.Context, find *store.FindReviewCard) ([]*store.ReviewCard, error)
}

// Schedule is the outcome of recording a review: when the item comes
// up next.
type Schedule struct {
	IntervalDays int32
	NextReviewTs int64
	Repetitions  int32
	EaseFactor   int32
}

// Service updates review cards from attempt outcomes. Card updates are
// read-modify-write; concurrent attempts on the same card are
// serialized through striped locks keyed by (user, item).
type Service struct {
	store Store
	locks [lockStripes]sync.Mutex
	now   func() time.Time
}

// NewService creates a review scheduler service.
func NewService(s Store) *Service {
	return &Service{store: s, now: time.Now}
}

func (s *Service) lockFor(userID, itemID int32, kind store.ItemKind) *sync.Mutex {
	h := fnv.New32a()
	fmt.Fprintf(h, "%d:%d:%s", userID, itemID, kind)
	return &s.locks[h.Sum32()%lockStripes]
}

// RecordOutcome applies one attempt of the given quality to the user's
// card for the item, creating the card on the first attempt. The
// first attempt always schedules a next-day review regardless of
// quality; the update rule applies from the second attempt onward.
func (s *Service) RecordOutcome(ctx context.Context, userID, itemID int32, kind store.ItemKind, quality int32) (*Schedule, error) {
	mu := s.lockFor(userID, itemID, kind)
	mu.Lock()
	defer mu.Unlock()

	card, err := s.store.GetReviewCard(ctx, &store.FindReviewCard{
		UserID:   &userID,
		ItemID:   &itemID,
		ItemKind: &kind,
	})
	if err != nil {
		return nil, errors.Wrap(err, "get review card")
	}

	now := s.now().Unix()
	if card == nil {
		card = &store.ReviewCard{
			UserID:       userID,
			ItemID:       itemID,
			ItemKind:     kind,
			Repetitions:  0,
			EaseFactor:   initialEaseFactor,
			IntervalDays: 1,
		}
	} else {
		card.Repetitions, card.EaseFactor, card.IntervalDays = advance(card.Repetitions, card.EaseFactor, card.IntervalDays, quality)
	}
	card.LastReviewedTs = &now
	card.NextReviewTs = now + int64(card.IntervalDays)*86400

	updated, err := s.store.UpsertReviewCard(ctx, card)
	if err != nil {
		return nil, errors.Wrap(err, "upsert review card")
	}

	return &Schedule{
		IntervalDays: updated.IntervalDays,
		NextReviewTs: updated.NextReviewTs,
		Repetitions:  updated.Repetitions,
		EaseFactor:   updated.EaseFactor,
	}, nil
}

// DueItems returns the user's cards due at or before now, soonest
// first.
func (s *Service) DueItems(ctx context.Context, userID int32, limit int) ([]*store.ReviewCard, error) {
	now := s.now().Unix()
	find := &store.FindReviewCard{
		UserID:      &userID,
		DueBeforeTs: &now,
	}
	if limit > 0 {
		find.Limit = &limit
	}

	cards, err := s.store.ListReviewCards(ctx, find)
	if err != nil {
		return nil, errors.Wrap(err, "list due cards")
	}
	return cards, nil
}
