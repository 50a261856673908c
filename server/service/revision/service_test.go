package revision

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrecall/medrecall/plugin/ai/notegen"
	"github.com/medrecall/medrecall/server/service/performance"
	"github.com/medrecall/medrecall/server/service/resolver"
	"github.com/medrecall/medrecall/store"
)

type fakeStore struct {
	notes    map[string]*store.RevisionNote
	attempts []*store.AttemptRecord
	// clusters maps "kind:itemID" to a cluster key, standing in for the
	// context mapping join the real driver does.
	clusters map[string]string
	taxonomy []*store.ClusterTaxonomyEntry
	nextID   int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		notes:    map[string]*store.RevisionNote{},
		clusters: map[string]string{},
	}
}

func clusterMapKey(kind store.ItemKind, itemID int32) string {
	return fmt.Sprintf("%s:%d", kind, itemID)
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func noteMapKey(userID int32, specialty string, difficulty, clusterKey *string) string {
	return fmt.Sprintf("%d|%s|%s|%s", userID, specialty, deref(difficulty), deref(clusterKey))
}

func (f *fakeStore) GetRevisionNote(_ context.Context, find *store.FindRevisionNote) (*store.RevisionNote, error) {
	note, ok := f.notes[noteMapKey(find.UserID, find.Specialty, find.Difficulty, find.ClusterKey)]
	if !ok {
		return nil, nil
	}
	copied := *note
	return &copied, nil
}

func (f *fakeStore) UpsertRevisionNote(_ context.Context, upsert *store.RevisionNote) (*store.RevisionNote, error) {
	key := noteMapKey(upsert.UserID, upsert.Specialty, upsert.Difficulty, upsert.ClusterKey)
	if existing, ok := f.notes[key]; ok {
		upsert.ID = existing.ID
	} else {
		f.nextID++
		upsert.ID = f.nextID
	}
	copied := *upsert
	f.notes[key] = &copied
	return upsert, nil
}

func (f *fakeStore) MarkRevisionNoteStale(_ context.Context, id int32, staleTs int64) error {
	for _, note := range f.notes {
		if note.ID == id {
			ts := staleTs
			note.StaleTs = &ts
		}
	}
	return nil
}

func (f *fakeStore) TouchRevisionNoteServed(_ context.Context, id int32, servedTs int64) error {
	for _, note := range f.notes {
		if note.ID == id {
			note.LastServedTs = servedTs
		}
	}
	return nil
}

func (f *fakeStore) ListAttemptRecords(_ context.Context, find *store.FindAttemptRecord) ([]*store.AttemptRecord, error) {
	list := []*store.AttemptRecord{}
	for _, attempt := range f.attempts {
		if find.UserID != nil && attempt.UserID != *find.UserID {
			continue
		}
		if find.ItemKind != nil && attempt.ItemKind != *find.ItemKind {
			continue
		}
		if find.Specialty != nil && attempt.Specialty != *find.Specialty {
			continue
		}
		if find.Difficulty != nil && attempt.Difficulty != *find.Difficulty {
			continue
		}
		if find.ClusterKey != nil && f.clusters[clusterMapKey(attempt.ItemKind, attempt.ItemID)] != *find.ClusterKey {
			continue
		}
		list = append(list, attempt)
		if find.Limit != nil && len(list) == *find.Limit {
			break
		}
	}
	return list, nil
}

func (f *fakeStore) ListClusterTaxonomyEntries(_ context.Context, find *store.FindClusterTaxonomyEntry) ([]*store.ClusterTaxonomyEntry, error) {
	list := []*store.ClusterTaxonomyEntry{}
	for _, entry := range f.taxonomy {
		if find.Specialty != nil && entry.Specialty != *find.Specialty {
			continue
		}
		if find.ClusterKey != nil && entry.ClusterKey != *find.ClusterKey {
			continue
		}
		list = append(list, entry)
	}
	return list, nil
}

type fakeResolver struct {
	resolved *resolver.ResolvedContext
}

func (f *fakeResolver) Resolve(_ context.Context, _ store.ContextType, _ string) (*resolver.ResolvedContext, error) {
	return f.resolved, nil
}

type fakeSnapshotter struct {
	snapshot performance.Snapshot
}

func (f *fakeSnapshotter) Snapshot(_ context.Context, _ int32, _ *performance.SnapshotKey) (*performance.Snapshot, error) {
	copied := f.snapshot
	return &copied, nil
}

func strPtr(s string) *string { return &s }
func int32Ptr(v int32) *int32 { return &v }
func boolPtr(v bool) *bool    { return &v }

type fixture struct {
	store     *fakeStore
	snapshots *fakeSnapshotter
	generator *notegen.MockGenerator
	svc       *Service
}

func newFixture(resolved *resolver.ResolvedContext) *fixture {
	fs := newFakeStore()
	snapshots := &fakeSnapshotter{}
	generator := notegen.NewMockGenerator()
	svc := NewService(fs, &fakeResolver{resolved: resolved}, snapshots, generator, NewRefreshQueue(2))
	return &fixture{store: fs, snapshots: snapshots, generator: generator, svc: svc}
}

func acsContext() *resolver.ResolvedContext {
	return &resolver.ResolvedContext{
		Specialty:  "cardiology",
		Difficulty: strPtr("foundation"),
		ClusterKey: strPtr("acs"),
	}
}

func TestGetNoteMiss(t *testing.T) {
	ctx := context.Background()

	t.Run("miss generates synchronously at the exact key", func(t *testing.T) {
		f := newFixture(acsContext())
		f.snapshots.snapshot = performance.Snapshot{AverageScore: 35, TotalAttempts: 3}

		note, status, err := f.svc.GetNote(ctx, 1, store.ContextTypeCase, "1", false)
		require.NoError(t, err)
		assert.Equal(t, CacheMiss, status)
		assert.Equal(t, 1, f.generator.CallCount())

		stored := f.store.notes[noteMapKey(1, "cardiology", strPtr("foundation"), strPtr("acs"))]
		require.NotNil(t, stored)
		assert.Equal(t, note.Title, stored.Title)
		assert.Nil(t, stored.StaleTs)
		assert.Equal(t, int32(35), stored.AverageScore)
		assert.Equal(t, int32(3), stored.TotalAttempts)
	})

	t.Run("generator failure yields the fallback note", func(t *testing.T) {
		f := newFixture(acsContext())
		f.generator.Err = errors.New("upstream unavailable")
		f.store.taxonomy = []*store.ClusterTaxonomyEntry{
			{Specialty: "cardiology", ClusterKey: "acs", Label: "Acute coronary syndromes"},
		}

		note, status, err := f.svc.GetNote(ctx, 1, store.ContextTypeCase, "1", false)
		require.NoError(t, err)
		assert.Equal(t, CacheMiss, status)
		assert.Equal(t, fallbackSourceVersion, note.SourceVersion)
		assert.Contains(t, note.Title, "Acute coronary syndromes")

		stored := f.store.notes[noteMapKey(1, "cardiology", strPtr("foundation"), strPtr("acs"))]
		require.NotNil(t, stored)
		assert.Equal(t, fallbackSourceVersion, stored.SourceVersion)
	})
}

func TestGetNoteHit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(acsContext())
	now := time.Now()

	f.store.notes[noteMapKey(1, "cardiology", strPtr("foundation"), strPtr("acs"))] = &store.RevisionNote{
		ID: 1, UserID: 1, Specialty: "cardiology", Difficulty: strPtr("foundation"), ClusterKey: strPtr("acs"),
		Title: "Existing note", AverageScore: 50, TotalAttempts: 10,
		LastGeneratedTs: now.Unix() - 3600,
	}
	f.snapshots.snapshot = performance.Snapshot{AverageScore: 52, TotalAttempts: 11}

	note, status, err := f.svc.GetNote(ctx, 1, store.ContextTypeCase, "1", false)
	require.NoError(t, err)
	assert.Equal(t, CacheHit, status)
	assert.Equal(t, "Existing note", note.Title)
	assert.Zero(t, f.generator.CallCount())

	stored := f.store.notes[noteMapKey(1, "cardiology", strPtr("foundation"), strPtr("acs"))]
	assert.NotZero(t, stored.LastServedTs)
}

func TestGetNoteStaleHit(t *testing.T) {
	ctx := context.Background()

	t.Run("score drift serves old content and regenerates in background", func(t *testing.T) {
		f := newFixture(acsContext())
		now := time.Now()

		f.store.notes[noteMapKey(1, "cardiology", strPtr("foundation"), strPtr("acs"))] = &store.RevisionNote{
			ID: 1, UserID: 1, Specialty: "cardiology", Difficulty: strPtr("foundation"), ClusterKey: strPtr("acs"),
			Title: "Old content", AverageScore: 40, TotalAttempts: 10,
			LastGeneratedTs: now.Unix() - 3600,
		}
		f.snapshots.snapshot = performance.Snapshot{AverageScore: 55, TotalAttempts: 11}

		note, status, err := f.svc.GetNote(ctx, 1, store.ContextTypeCase, "1", false)
		require.NoError(t, err)
		assert.Equal(t, CacheStaleHit, status)
		assert.Equal(t, "Old content", note.Title)
		require.NotNil(t, note.StaleTs)

		f.svc.Queue().Flush()
		assert.Equal(t, 1, f.generator.CallCount())

		stored := f.store.notes[noteMapKey(1, "cardiology", strPtr("foundation"), strPtr("acs"))]
		assert.Equal(t, "Mock note", stored.Title)
		assert.Nil(t, stored.StaleTs)
		assert.Equal(t, int32(55), stored.AverageScore)
	})

	t.Run("attempt delta triggers staleness", func(t *testing.T) {
		f := newFixture(acsContext())
		now := time.Now()
		f.store.notes[noteMapKey(1, "cardiology", strPtr("foundation"), strPtr("acs"))] = &store.RevisionNote{
			ID: 1, UserID: 1, Specialty: "cardiology", Difficulty: strPtr("foundation"), ClusterKey: strPtr("acs"),
			AverageScore: 50, TotalAttempts: 10, LastGeneratedTs: now.Unix() - 3600,
		}
		f.snapshots.snapshot = performance.Snapshot{AverageScore: 51, TotalAttempts: 15}

		_, status, err := f.svc.GetNote(ctx, 1, store.ContextTypeCase, "1", false)
		require.NoError(t, err)
		assert.Equal(t, CacheStaleHit, status)
		f.svc.Queue().Flush()
	})

	t.Run("age triggers staleness", func(t *testing.T) {
		f := newFixture(acsContext())
		now := time.Now()
		f.store.notes[noteMapKey(1, "cardiology", strPtr("foundation"), strPtr("acs"))] = &store.RevisionNote{
			ID: 1, UserID: 1, Specialty: "cardiology", Difficulty: strPtr("foundation"), ClusterKey: strPtr("acs"),
			AverageScore: 50, TotalAttempts: 10,
			LastGeneratedTs: now.Add(-31 * 24 * time.Hour).Unix(),
		}
		f.snapshots.snapshot = performance.Snapshot{AverageScore: 50, TotalAttempts: 10}

		_, status, err := f.svc.GetNote(ctx, 1, store.ContextTypeCase, "1", false)
		require.NoError(t, err)
		assert.Equal(t, CacheStaleHit, status)
		f.svc.Queue().Flush()
	})
}

func TestGetNoteForceRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(acsContext())
	now := time.Now()

	staleTs := now.Unix() - 60
	f.store.notes[noteMapKey(1, "cardiology", strPtr("foundation"), strPtr("acs"))] = &store.RevisionNote{
		ID: 1, UserID: 1, Specialty: "cardiology", Difficulty: strPtr("foundation"), ClusterKey: strPtr("acs"),
		Title: "Old content", AverageScore: 50, TotalAttempts: 10,
		LastGeneratedTs: now.Unix() - 3600, StaleTs: &staleTs,
	}
	f.snapshots.snapshot = performance.Snapshot{AverageScore: 50, TotalAttempts: 10}

	note, status, err := f.svc.GetNote(ctx, 1, store.ContextTypeCase, "1", true)
	require.NoError(t, err)
	assert.Equal(t, CacheMiss, status)
	assert.Equal(t, "Mock note", note.Title)
	assert.Nil(t, note.StaleTs)
	assert.Equal(t, 1, f.generator.CallCount())
}

func TestFallbackChain(t *testing.T) {
	ctx := context.Background()

	t.Run("exact key beats specialty-only note", func(t *testing.T) {
		f := newFixture(acsContext())
		now := time.Now()
		fresh := func(title string, difficulty, clusterKey *string) *store.RevisionNote {
			return &store.RevisionNote{
				ID: f.store.nextID + 1, UserID: 1, Specialty: "cardiology",
				Difficulty: difficulty, ClusterKey: clusterKey,
				Title: title, AverageScore: 50, TotalAttempts: 10,
				LastGeneratedTs: now.Unix() - 60,
			}
		}
		f.store.notes[noteMapKey(1, "cardiology", strPtr("foundation"), strPtr("acs"))] = fresh("Exact", strPtr("foundation"), strPtr("acs"))
		f.store.notes[noteMapKey(1, "cardiology", nil, nil)] = fresh("Specialty-wide", nil, nil)
		f.snapshots.snapshot = performance.Snapshot{AverageScore: 50, TotalAttempts: 10}

		note, status, err := f.svc.GetNote(ctx, 1, store.ContextTypeCase, "1", false)
		require.NoError(t, err)
		assert.Equal(t, CacheHit, status)
		assert.Equal(t, "Exact", note.Title)
	})

	t.Run("falls through to coarser keys in order", func(t *testing.T) {
		f := newFixture(acsContext())
		now := time.Now()
		f.store.notes[noteMapKey(1, "cardiology", strPtr("foundation"), nil)] = &store.RevisionNote{
			ID: 1, UserID: 1, Specialty: "cardiology", Difficulty: strPtr("foundation"),
			Title: "Difficulty-wide", AverageScore: 50, TotalAttempts: 10,
			LastGeneratedTs: now.Unix() - 60,
		}
		f.snapshots.snapshot = performance.Snapshot{AverageScore: 50, TotalAttempts: 10}

		note, status, err := f.svc.GetNote(ctx, 1, store.ContextTypeCase, "1", false)
		require.NoError(t, err)
		assert.Equal(t, CacheHit, status)
		assert.Equal(t, "Difficulty-wide", note.Title)
	})

	t.Run("nil in the resolved key does not match stored values", func(t *testing.T) {
		// Resolved context is specialty-only; a note stored at a
		// difficulty-specific key must not be returned.
		f := newFixture(&resolver.ResolvedContext{Specialty: "cardiology"})
		now := time.Now()
		f.store.notes[noteMapKey(1, "cardiology", strPtr("foundation"), nil)] = &store.RevisionNote{
			ID: 1, UserID: 1, Specialty: "cardiology", Difficulty: strPtr("foundation"),
			Title: "Difficulty-specific", LastGeneratedTs: now.Unix(),
		}
		f.snapshots.snapshot = performance.Snapshot{}

		_, status, err := f.svc.GetNote(ctx, 1, store.ContextTypeCategory, "cardiology", false)
		require.NoError(t, err)
		assert.Equal(t, CacheMiss, status)
	})
}

func TestGatherEvidence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(acsContext())

	// An attempt resolved to a different cluster never becomes
	// evidence, even when it would otherwise top the list.
	f.store.attempts = append(f.store.attempts, &store.AttemptRecord{
		ID: 200, UserID: 1, ItemID: 200, ItemKind: store.ItemKindCase,
		Specialty: "cardiology", Difficulty: "foundation", Score: int32Ptr(-30),
	})
	f.store.clusters[clusterMapKey(store.ItemKindCase, 200)] = "arrhythmia"

	for i := 0; i < 12; i++ {
		score := int32(10)
		if i%2 == 0 {
			score = -5
		}
		f.store.attempts = append(f.store.attempts, &store.AttemptRecord{
			ID: int32(i + 1), UserID: 1, ItemID: int32(i + 1), ItemKind: store.ItemKindCase,
			Specialty: "cardiology", Difficulty: "foundation", Score: int32Ptr(score),
		})
		f.store.clusters[clusterMapKey(store.ItemKindCase, int32(i+1))] = "acs"
	}
	f.store.attempts = append(f.store.attempts, &store.AttemptRecord{
		ID: 100, UserID: 1, ItemID: 100, ItemKind: store.ItemKindQuestion,
		Specialty: "cardiology", Difficulty: "foundation", Correct: boolPtr(false),
	})
	f.store.clusters[clusterMapKey(store.ItemKindQuestion, 100)] = "acs"

	evidence, rows, err := f.svc.gatherEvidence(ctx, noteKey{
		userID: 1, specialty: "cardiology", difficulty: strPtr("foundation"), clusterKey: strPtr("acs"),
	})
	require.NoError(t, err)

	// Case evidence is capped at the window; the one question attempt
	// rides along.
	require.Len(t, evidence, evidenceWindow+1)
	require.Len(t, rows, evidenceWindow+1)

	for _, ev := range evidence {
		assert.NotEqual(t, int32(200), ev.SourceID, "other-cluster attempt leaked into evidence")
		if ev.SourceType == store.EvidenceSourceUKMLAAttempt {
			assert.Equal(t, int32(failureWeight), ev.Weight)
			continue
		}
		if ev.SourceID%2 == 1 {
			// Odd IDs scored -5.
			assert.Equal(t, int32(failureWeight), ev.Weight)
		} else {
			assert.Equal(t, int32(1), ev.Weight)
		}
	}
}

func TestRefreshQueue(t *testing.T) {
	t.Run("saturated queue rejects without blocking", func(t *testing.T) {
		q := NewRefreshQueue(1)
		defer q.Close()

		release := make(chan struct{})
		started := make(chan struct{})
		ok := q.Enqueue(func(ctx context.Context) {
			close(started)
			<-release
		})
		require.True(t, ok)
		<-started

		assert.False(t, q.Enqueue(func(ctx context.Context) {}))
		close(release)
		q.Flush()

		assert.True(t, q.Enqueue(func(ctx context.Context) {}))
		q.Flush()
	})

	t.Run("closed queue rejects", func(t *testing.T) {
		q := NewRefreshQueue(1)
		q.Close()
		assert.False(t, q.Enqueue(func(ctx context.Context) {}))
	})
}
