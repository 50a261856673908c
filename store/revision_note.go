package store

import (
	"context"
)

// Evidence source types.
const (
	EvidenceSourceCaseAttempt  = "case_attempt"
	EvidenceSourceUKMLAAttempt = "ukmla_attempt"
)

// RevisionNote is a cached personalized note keyed by
// (user, specialty, difficulty, clusterKey). Difficulty and ClusterKey may be
// nil: a nil field only ever matches a stored nil, giving coarser-grained
// notes their own rows rather than wildcard semantics.
type RevisionNote struct {
	ID         int32
	UID        string
	UserID     int32
	Specialty  string
	Difficulty *string
	ClusterKey *string

	Title          string
	Summary        string
	KeyConcepts    []string
	CommonMistakes []string
	RapidChecklist []string
	PracticePlan   []string
	SourceVersion  string

	// Performance snapshot captured at generation time, compared against the
	// live snapshot to detect staleness.
	AverageScore  int32
	TotalAttempts int32
	SnapshotTs    int64

	StaleTs         *int64
	LastGeneratedTs int64
	LastServedTs    int64
	UpdatedTs       int64

	Evidence []*RevisionNoteEvidence
}

// RevisionNoteEvidence links a note to one attempt that justified its
// generation. Evidence rows are replaced wholesale on every regeneration.
type RevisionNoteEvidence struct {
	ID         int32
	NoteID     int32
	SourceType string
	SourceID   int32
	Weight     int32
}

// FindRevisionNote is the find condition for revision notes. Nil Difficulty
// or ClusterKey matches only rows where the stored field is NULL.
type FindRevisionNote struct {
	UserID     int32
	Specialty  string
	Difficulty *string
	ClusterKey *string
}

// UpsertRevisionNote upserts the note at its exact key and replaces its
// evidence rows wholesale within a single transaction.
func (s *Store) UpsertRevisionNote(ctx context.Context, upsert *RevisionNote) (*RevisionNote, error) {
	return s.driver.UpsertRevisionNote(ctx, upsert)
}

// GetRevisionNote returns the note at the exact key, or nil if none exists.
func (s *Store) GetRevisionNote(ctx context.Context, find *FindRevisionNote) (*RevisionNote, error) {
	return s.driver.GetRevisionNote(ctx, find)
}

// MarkRevisionNoteStale sets the note's stale_ts.
func (s *Store) MarkRevisionNoteStale(ctx context.Context, id int32, staleTs int64) error {
	return s.driver.MarkRevisionNoteStale(ctx, id, staleTs)
}

// TouchRevisionNoteServed updates the note's last_served_ts.
func (s *Store) TouchRevisionNoteServed(ctx context.Context, id int32, servedTs int64) error {
	return s.driver.TouchRevisionNoteServed(ctx, id, servedTs)
}
