// Package practice orchestrates attempt recording: validate the
// submission, persist the immutable attempt, fold it into the
// aggregates, and reschedule the item.
package practice

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/medrecall/medrecall/internal/util"
	apperrors "github.com/medrecall/medrecall/server/internal/errors"
	"github.com/medrecall/medrecall/server/service/resolver"
	"github.com/medrecall/medrecall/server/service/review"
	"github.com/medrecall/medrecall/store"
)

// Store is the slice of the store the orchestrator needs.
type Store interface {
	GetCase(ctx context.Context, find *store.FindCase) (*store.Case, error)
	GetQuestion(ctx context.Context, find *store.FindQuestion) (*store.Question, error)
	CreateAttemptRecord(ctx context.Context, create *store.AttemptRecord) (*store.AttemptRecord, error)
}

// Resolver resolves items to their context.
type Resolver interface {
	Resolve(ctx context.Context, contextType store.ContextType, contextID string) (*resolver.ResolvedContext, error)
}

// Aggregator folds attempts into the incremental stats.
type Aggregator interface {
	RecordOutcome(ctx context.Context, attempt *store.AttemptRecord) error
}

// Scheduler updates the review card for an attempt.
type Scheduler interface {
	RecordOutcome(ctx context.Context, userID, itemID int32, kind store.ItemKind, quality int32) (*review.Schedule, error)
}

// Outcome is one submitted attempt result. Exactly one of Score (case
// attempts) or OptionKey (question attempts) must be set.
type Outcome struct {
	Score     *int32
	OptionKey *string
}

// Result is what the caller gets back from recording an attempt.
type Result struct {
	AttemptUID   string
	Correct      *bool
	IntervalDays int32
	NextReviewTs int64
}

// Service orchestrates attempt recording.
type Service struct {
	store     Store
	resolver  Resolver
	perf      Aggregator
	scheduler Scheduler
	now       func() time.Time
}

// NewService creates a practice orchestration service.
func NewService(s Store, r Resolver, perf Aggregator, scheduler Scheduler) *Service {
	return &Service{
		store:     s,
		resolver:  r,
		perf:      perf,
		scheduler: scheduler,
		now:       time.Now,
	}
}

// RecordAttempt records one genuine attempt. Validation happens before
// any mutation: an unknown item or an option not belonging to the
// question rejects the whole attempt.
func (s *Service) RecordAttempt(ctx context.Context, userID, itemID int32, kind store.ItemKind, outcome *Outcome) (*Result, error) {
	attempt, quality, err := s.validate(ctx, userID, itemID, kind, outcome)
	if err != nil {
		return nil, err
	}

	created, err := s.store.CreateAttemptRecord(ctx, attempt)
	if err != nil {
		return nil, errors.Wrap(err, "create attempt")
	}

	// Resolving here warms the mapping table so aggregate snapshots
	// and note evidence can scope by cluster.
	if _, err := s.resolver.Resolve(ctx, store.ContextType(kind), strconv.Itoa(int(itemID))); err != nil {
		return nil, errors.Wrap(err, "resolve context")
	}

	if err := s.perf.RecordOutcome(ctx, created); err != nil {
		return nil, errors.Wrap(err, "update aggregates")
	}

	schedule, err := s.scheduler.RecordOutcome(ctx, userID, itemID, kind, quality)
	if err != nil {
		return nil, errors.Wrap(err, "update review card")
	}

	return &Result{
		AttemptUID:   created.UID,
		Correct:      created.Correct,
		IntervalDays: schedule.IntervalDays,
		NextReviewTs: schedule.NextReviewTs,
	}, nil
}

// validate checks the submission against the item and builds the
// attempt record and its recall quality. Nothing is written.
func (s *Service) validate(ctx context.Context, userID, itemID int32, kind store.ItemKind, outcome *Outcome) (*store.AttemptRecord, int32, error) {
	attempt := &store.AttemptRecord{
		UID:       util.GenUUID(),
		UserID:    userID,
		ItemID:    itemID,
		ItemKind:  kind,
		CreatedTs: s.now().Unix(),
	}

	switch kind {
	case store.ItemKindCase:
		if outcome.Score == nil {
			return nil, 0, apperrors.InvalidInputf("case attempt requires a score")
		}
		item, err := s.store.GetCase(ctx, &store.FindCase{ID: &itemID})
		if err != nil {
			return nil, 0, errors.Wrap(err, "get case")
		}
		if item == nil {
			return nil, 0, apperrors.NotFoundf("case %d", itemID)
		}
		attempt.Specialty = item.Specialty
		attempt.Difficulty = item.Difficulty
		attempt.Score = outcome.Score
		return attempt, review.QualityFromScore(*outcome.Score), nil

	case store.ItemKindQuestion:
		if outcome.OptionKey == nil {
			return nil, 0, apperrors.InvalidInputf("question attempt requires an option key")
		}
		item, err := s.store.GetQuestion(ctx, &store.FindQuestion{ID: &itemID})
		if err != nil {
			return nil, 0, errors.Wrap(err, "get question")
		}
		if item == nil {
			return nil, 0, apperrors.NotFoundf("question %d", itemID)
		}
		if !item.HasOption(*outcome.OptionKey) {
			return nil, 0, apperrors.InvalidInputf("option %q does not belong to question %d", *outcome.OptionKey, itemID)
		}
		correct := item.IsCorrectOption(*outcome.OptionKey)
		attempt.Specialty = item.Specialty
		attempt.Difficulty = item.Difficulty
		attempt.Correct = &correct
		return attempt, review.QualityFromCorrect(correct), nil

	default:
		return nil, 0, apperrors.InvalidInputf("unknown item kind %q", kind)
	}
}
