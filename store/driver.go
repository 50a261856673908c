package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// AttemptRecord model related methods.
	CreateAttemptRecord(ctx context.Context, create *AttemptRecord) (*AttemptRecord, error)
	ListAttemptRecords(ctx context.Context, find *FindAttemptRecord) ([]*AttemptRecord, error)

	// ReviewCard model related methods.
	UpsertReviewCard(ctx context.Context, upsert *ReviewCard) (*ReviewCard, error)
	ListReviewCards(ctx context.Context, find *FindReviewCard) ([]*ReviewCard, error)

	// RevisionNote model related methods.
	UpsertRevisionNote(ctx context.Context, upsert *RevisionNote) (*RevisionNote, error)
	GetRevisionNote(ctx context.Context, find *FindRevisionNote) (*RevisionNote, error)
	MarkRevisionNoteStale(ctx context.Context, id int32, staleTs int64) error
	TouchRevisionNoteServed(ctx context.Context, id int32, servedTs int64) error

	// ContextClusterMapping model related methods.
	GetContextClusterMapping(ctx context.Context, find *FindContextClusterMapping) (*ContextClusterMapping, error)
	UpsertContextClusterMapping(ctx context.Context, upsert *ContextClusterMapping) (*ContextClusterMapping, error)

	// ClusterTaxonomyEntry model related methods.
	ListClusterTaxonomyEntries(ctx context.Context, find *FindClusterTaxonomyEntry) ([]*ClusterTaxonomyEntry, error)
	UpsertClusterTaxonomyEntry(ctx context.Context, upsert *ClusterTaxonomyEntry) (*ClusterTaxonomyEntry, error)

	// UserStat model related methods.
	IncrementUserStat(ctx context.Context, increment *IncrementUserStat) error
	ListUserStats(ctx context.Context, find *FindUserStat) ([]*UserStat, error)

	// Case model related methods.
	CreateCase(ctx context.Context, create *Case) (*Case, error)
	ListCases(ctx context.Context, find *FindCase) ([]*Case, error)

	// Question model related methods.
	CreateQuestion(ctx context.Context, create *Question) (*Question, error)
	ListQuestions(ctx context.Context, find *FindQuestion) ([]*Question, error)
}
