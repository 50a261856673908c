// Package revision owns the personalized note cache: hierarchical
// fallback lookup, multi-signal staleness, and stale-while-revalidate
// background regeneration.
package revision

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/medrecall/medrecall/plugin/ai/notegen"
	"github.com/medrecall/medrecall/server/service/performance"
	"github.com/medrecall/medrecall/server/service/resolver"
	"github.com/medrecall/medrecall/store"
)

// CacheStatus describes how a note request was satisfied.
type CacheStatus string

const (
	// CacheHit is a fresh note served straight from the cache.
	CacheHit CacheStatus = "hit"
	// CacheStaleHit is an outdated note served immediately while a
	// background regeneration runs.
	CacheStaleHit CacheStatus = "stale_hit"
	// CacheMiss is a note generated synchronously for this request.
	CacheMiss CacheStatus = "miss"
)

// Staleness thresholds.
const (
	staleScoreDelta    = 10
	staleAttemptsDelta = 5
	staleMaxAge        = 30 * 24 * time.Hour
)

// Store is the slice of the store the note cache needs.
type Store interface {
	GetRevisionNote(ctx context.Context, find *store.FindRevisionNote) (*store.RevisionNote, error)
	UpsertRevisionNote(ctx context.Context, upsert *store.RevisionNote) (*store.RevisionNote, error)
	MarkRevisionNoteStale(ctx context.Context, id int32, staleTs int64) error
	TouchRevisionNoteServed(ctx context.Context, id int32, servedTs int64) error
	ListAttemptRecords(ctx context.Context, find *store.FindAttemptRecord) ([]*store.AttemptRecord, error)
	ListClusterTaxonomyEntries(ctx context.Context, find *store.FindClusterTaxonomyEntry) ([]*store.ClusterTaxonomyEntry, error)
}

// Resolver resolves contexts to their abstract key.
type Resolver interface {
	Resolve(ctx context.Context, contextType store.ContextType, contextID string) (*resolver.ResolvedContext, error)
}

// Snapshotter computes live performance snapshots.
type Snapshotter interface {
	Snapshot(ctx context.Context, userID int32, key *performance.SnapshotKey) (*performance.Snapshot, error)
}

// Service serves revision notes with fallback, staleness detection,
// and stale-while-revalidate refresh.
type Service struct {
	store     Store
	resolver  Resolver
	perf      Snapshotter
	generator notegen.Generator
	queue     *RefreshQueue
	now       func() time.Time
}

// NewService creates a revision note service.
func NewService(s Store, r Resolver, perf Snapshotter, generator notegen.Generator, queue *RefreshQueue) *Service {
	return &Service{
		store:     s,
		resolver:  r,
		perf:      perf,
		generator: generator,
		queue:     queue,
		now:       time.Now,
	}
}

// Queue exposes the refresh queue, mainly so callers can flush or
// close it on shutdown.
func (s *Service) Queue() *RefreshQueue {
	return s.queue
}

// GetNote resolves the context and serves the best cached note for it.
//
// Lookup walks the fallback chain most specific first; a nil key field
// matches only stored nils. A miss or a forced refresh regenerates
// synchronously at the exact key. A stale hit serves the old content
// immediately, marks the note stale, and regenerates in the
// background.
func (s *Service) GetNote(ctx context.Context, userID int32, contextType store.ContextType, contextID string, forceRefresh bool) (*store.RevisionNote, CacheStatus, error) {
	resolved, err := s.resolver.Resolve(ctx, contextType, contextID)
	if err != nil {
		return nil, "", err
	}

	key := noteKey{
		userID:     userID,
		specialty:  resolved.Specialty,
		difficulty: resolved.Difficulty,
		clusterKey: resolved.ClusterKey,
	}

	if forceRefresh {
		note, err := s.regenerate(ctx, key)
		if err != nil {
			return nil, "", err
		}
		return note, CacheMiss, nil
	}

	note, err := s.lookup(ctx, key)
	if err != nil {
		return nil, "", errors.Wrap(err, "lookup note")
	}
	if note == nil {
		note, err := s.regenerate(ctx, key)
		if err != nil {
			return nil, "", err
		}
		return note, CacheMiss, nil
	}

	snapshot, err := s.perf.Snapshot(ctx, userID, &performance.SnapshotKey{
		Specialty:  note.Specialty,
		Difficulty: note.Difficulty,
		ClusterKey: note.ClusterKey,
	})
	if err != nil {
		return nil, "", errors.Wrap(err, "snapshot performance")
	}

	now := s.now()
	if !s.isStale(note, snapshot, now) {
		if err := s.store.TouchRevisionNoteServed(ctx, note.ID, now.Unix()); err != nil {
			return nil, "", errors.Wrap(err, "touch note")
		}
		note.LastServedTs = now.Unix()
		return note, CacheHit, nil
	}

	// Serve the stale content immediately and refresh behind the
	// response. The regeneration must never block or fail this
	// request.
	if err := s.store.MarkRevisionNoteStale(ctx, note.ID, now.Unix()); err != nil {
		return nil, "", errors.Wrap(err, "mark note stale")
	}
	staleTs := now.Unix()
	note.StaleTs = &staleTs

	enqueued := s.queue.Enqueue(func(ctx context.Context) {
		if _, err := s.regenerate(ctx, key); err != nil {
			slog.Error("background note regeneration failed",
				"user_id", key.userID,
				"specialty", key.specialty,
				"error", err)
		}
	})
	if !enqueued {
		slog.Warn("refresh queue saturated, dropping regeneration",
			"user_id", key.userID,
			"specialty", key.specialty)
	}

	return note, CacheStaleHit, nil
}

// lookup walks the fallback chain: exact key, then
// (specialty, difficulty, nil), then (specialty, nil, nil).
func (s *Service) lookup(ctx context.Context, key noteKey) (*store.RevisionNote, error) {
	chain := []*store.FindRevisionNote{
		{UserID: key.userID, Specialty: key.specialty, Difficulty: key.difficulty, ClusterKey: key.clusterKey},
	}
	if key.clusterKey != nil {
		chain = append(chain, &store.FindRevisionNote{UserID: key.userID, Specialty: key.specialty, Difficulty: key.difficulty})
	}
	if key.difficulty != nil {
		chain = append(chain, &store.FindRevisionNote{UserID: key.userID, Specialty: key.specialty})
	}

	for _, find := range chain {
		note, err := s.store.GetRevisionNote(ctx, find)
		if err != nil {
			return nil, err
		}
		if note != nil {
			return note, nil
		}
	}
	return nil, nil
}

// isStale applies the staleness predicate: the live average drifted by
// >= 10, or >= 5 attempts happened since generation, or the note is
// >= 30 days old, or it was already marked stale.
func (s *Service) isStale(note *store.RevisionNote, snapshot *performance.Snapshot, now time.Time) bool {
	scoreDelta := snapshot.AverageScore - note.AverageScore
	if scoreDelta < 0 {
		scoreDelta = -scoreDelta
	}
	if scoreDelta >= staleScoreDelta {
		return true
	}
	if snapshot.TotalAttempts-note.TotalAttempts >= staleAttemptsDelta {
		return true
	}
	if now.Sub(time.Unix(note.LastGeneratedTs, 0)) >= staleMaxAge {
		return true
	}
	if note.StaleTs != nil && *note.StaleTs <= now.Unix() {
		return true
	}
	return false
}
