package review

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrecall/medrecall/store"
)

type fakeStore struct {
	cards  map[string]*store.ReviewCard
	nextID int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{cards: map[string]*store.ReviewCard{}}
}

func cardKey(userID, itemID int32, kind store.ItemKind) string {
	return fmt.Sprintf("%s:%d:%d", kind, userID, itemID)
}

func (f *fakeStore) GetReviewCard(_ context.Context, find *store.FindReviewCard) (*store.ReviewCard, error) {
	card, ok := f.cards[cardKey(*find.UserID, *find.ItemID, *find.ItemKind)]
	if !ok {
		return nil, nil
	}
	copied := *card
	return &copied, nil
}

func (f *fakeStore) UpsertReviewCard(_ context.Context, upsert *store.ReviewCard) (*store.ReviewCard, error) {
	key := cardKey(upsert.UserID, upsert.ItemID, upsert.ItemKind)
	if existing, ok := f.cards[key]; ok {
		upsert.ID = existing.ID
	} else {
		f.nextID++
		upsert.ID = f.nextID
	}
	copied := *upsert
	f.cards[key] = &copied
	return upsert, nil
}

func (f *fakeStore) ListReviewCards(_ context.Context, find *store.FindReviewCard) ([]*store.ReviewCard, error) {
	list := []*store.ReviewCard{}
	for _, card := range f.cards {
		if find.UserID != nil && card.UserID != *find.UserID {
			continue
		}
		if find.DueBeforeTs != nil && card.NextReviewTs > *find.DueBeforeTs {
			continue
		}
		copied := *card
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].NextReviewTs < list[j].NextReviewTs })
	if find.Limit != nil && len(list) > *find.Limit {
		list = list[:*find.Limit]
	}
	return list, nil
}

func TestQualityMapping(t *testing.T) {
	tests := []struct {
		score   int32
		quality int32
	}{
		{25, 5},
		{21, 5},
		{20, 4},
		{11, 4},
		{10, 3},
		{1, 3},
		{0, 2},
		{-9, 2},
		{-10, 1},
		{-19, 1},
		{-20, 0},
		{-50, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.quality, QualityFromScore(tt.score), "score %d", tt.score)
	}

	assert.Equal(t, int32(5), QualityFromCorrect(true))
	assert.Equal(t, int32(2), QualityFromCorrect(false))
}

func TestRecordOutcome(t *testing.T) {
	ctx := context.Background()

	t.Run("first attempt creates a next-day card regardless of quality", func(t *testing.T) {
		fs := newFakeStore()
		svc := NewService(fs)
		now := time.Now()
		svc.now = func() time.Time { return now }

		schedule, err := svc.RecordOutcome(ctx, 1, 100, store.ItemKindCase, 0)
		require.NoError(t, err)
		assert.Equal(t, int32(1), schedule.IntervalDays)
		assert.Equal(t, int32(0), schedule.Repetitions)
		assert.Equal(t, int32(2500), schedule.EaseFactor)
		assert.Equal(t, now.Unix()+86400, schedule.NextReviewTs)
	})

	t.Run("success streak grows interval 1, 6, round(6 x ease/1000)", func(t *testing.T) {
		fs := newFakeStore()
		svc := NewService(fs)
		now := time.Now()
		svc.now = func() time.Time { return now }

		// First attempt: card created, no update rule applied.
		first, err := svc.RecordOutcome(ctx, 1, 100, store.ItemKindQuestion, 5)
		require.NoError(t, err)
		assert.Equal(t, int32(1), first.IntervalDays)

		// Second attempt: repetitions 0 -> 1, interval 1.
		second, err := svc.RecordOutcome(ctx, 1, 100, store.ItemKindQuestion, 5)
		require.NoError(t, err)
		assert.Equal(t, int32(1), second.Repetitions)
		assert.Equal(t, int32(1), second.IntervalDays)
		assert.Equal(t, int32(2860), second.EaseFactor)

		// Third attempt: repetitions 2, interval 6.
		third, err := svc.RecordOutcome(ctx, 1, 100, store.ItemKindQuestion, 5)
		require.NoError(t, err)
		assert.Equal(t, int32(2), third.Repetitions)
		assert.Equal(t, int32(6), third.IntervalDays)

		// Fourth attempt: interval = round(6 x ease/1000) with the
		// pre-update ease factor.
		fourth, err := svc.RecordOutcome(ctx, 1, 100, store.ItemKindQuestion, 5)
		require.NoError(t, err)
		assert.Equal(t, int32(3), fourth.Repetitions)
		assert.Equal(t, int32(19), fourth.IntervalDays) // round(6 x 3220/1000)
		assert.Greater(t, fourth.EaseFactor, third.EaseFactor)
	})

	t.Run("failure resets repetitions and interval but not ease", func(t *testing.T) {
		fs := newFakeStore()
		svc := NewService(fs)

		_, err := svc.RecordOutcome(ctx, 1, 100, store.ItemKindCase, 5)
		require.NoError(t, err)
		_, err = svc.RecordOutcome(ctx, 1, 100, store.ItemKindCase, 5)
		require.NoError(t, err)
		before, err := svc.RecordOutcome(ctx, 1, 100, store.ItemKindCase, 5)
		require.NoError(t, err)

		after, err := svc.RecordOutcome(ctx, 1, 100, store.ItemKindCase, 1)
		require.NoError(t, err)
		assert.Equal(t, int32(0), after.Repetitions)
		assert.Equal(t, int32(1), after.IntervalDays)
		assert.Equal(t, before.EaseFactor, after.EaseFactor)
	})

	t.Run("ease factor stays at or above 1300", func(t *testing.T) {
		// Every success raises ease (quality 3 adds the smallest
		// increment, +336), so successes keep ease monotonically
		// non-decreasing.
		repetitions, ease, interval := int32(0), int32(1400), int32(1)
		for i := 0; i < 10; i++ {
			previous := ease
			repetitions, ease, interval = advance(repetitions, ease, interval, 3)
			assert.GreaterOrEqual(t, ease, previous)
			assert.GreaterOrEqual(t, ease, int32(1300))
		}

		// The floor only binds on a card already sitting at or below it.
		_, clamped, _ := advance(0, 900, 1, 3)
		assert.Equal(t, int32(1300), clamped)

		_, atFloor, _ := advance(0, 1300, 1, 3)
		assert.GreaterOrEqual(t, atFloor, int32(1300))
	})

	t.Run("next review date equals last reviewed plus interval days", func(t *testing.T) {
		fs := newFakeStore()
		svc := NewService(fs)
		now := time.Now()
		svc.now = func() time.Time { return now }

		for _, quality := range []int32{5, 5, 1, 4, 3} {
			_, err := svc.RecordOutcome(ctx, 7, 42, store.ItemKindCase, quality)
			require.NoError(t, err)

			card := fs.cards[cardKey(7, 42, store.ItemKindCase)]
			require.NotNil(t, card.LastReviewedTs)
			assert.Equal(t, *card.LastReviewedTs+int64(card.IntervalDays)*86400, card.NextReviewTs)
		}
	})

	t.Run("foundation item scenario", func(t *testing.T) {
		fs := newFakeStore()
		svc := NewService(fs)

		// First attempt creates the card.
		first, err := svc.RecordOutcome(ctx, 3, 9, store.ItemKindCase, QualityFromScore(15))
		require.NoError(t, err)
		assert.Equal(t, int32(1), first.IntervalDays)
		assert.Equal(t, int32(2500), first.EaseFactor)

		// Second attempt scores +15 (quality 4).
		second, err := svc.RecordOutcome(ctx, 3, 9, store.ItemKindCase, QualityFromScore(15))
		require.NoError(t, err)
		assert.Equal(t, int32(1), second.Repetitions)
		assert.Equal(t, int32(1), second.IntervalDays)

		// Third attempt scores +15 again.
		third, err := svc.RecordOutcome(ctx, 3, 9, store.ItemKindCase, QualityFromScore(15))
		require.NoError(t, err)
		assert.Equal(t, int32(2), third.Repetitions)
		assert.Equal(t, int32(6), third.IntervalDays)
	})
}

func TestDueItems(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	svc := NewService(fs)
	now := time.Now().Unix()

	fs.cards["a"] = &store.ReviewCard{ID: 1, UserID: 1, ItemID: 1, ItemKind: store.ItemKindCase, NextReviewTs: now - 100}
	fs.cards["b"] = &store.ReviewCard{ID: 2, UserID: 1, ItemID: 2, ItemKind: store.ItemKindCase, NextReviewTs: now - 500}
	fs.cards["c"] = &store.ReviewCard{ID: 3, UserID: 1, ItemID: 3, ItemKind: store.ItemKindCase, NextReviewTs: now + 86400}
	fs.cards["d"] = &store.ReviewCard{ID: 4, UserID: 2, ItemID: 4, ItemKind: store.ItemKindCase, NextReviewTs: now - 50}

	due, err := svc.DueItems(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, int32(2), due[0].ItemID)
	assert.Equal(t, int32(1), due[1].ItemID)

	limited, err := svc.DueItems(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, int32(2), limited[0].ItemID)
}
