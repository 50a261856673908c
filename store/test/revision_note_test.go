package teststore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrecall/medrecall/store"
)

func strPtr(s string) *string { return &s }

func baseNote(userID int32, difficulty, clusterKey *string) *store.RevisionNote {
	now := time.Now().Unix()
	return &store.RevisionNote{
		UID:             "note-" + time.Now().Format("150405.000000000"),
		UserID:          userID,
		Specialty:       "cardiology",
		Difficulty:      difficulty,
		ClusterKey:      clusterKey,
		Title:           "ACS essentials",
		Summary:         "Focus on ECG territories and troponin interpretation.",
		KeyConcepts:     []string{"STEMI criteria", "troponin kinetics"},
		CommonMistakes:  []string{"missing posterior MI"},
		RapidChecklist:  []string{"12-lead within 10 minutes"},
		PracticePlan:    []string{"review 5 ECGs"},
		SourceVersion:   "gpt-4o-mini",
		AverageScore:    42,
		TotalAttempts:   9,
		SnapshotTs:      now,
		LastGeneratedTs: now,
		LastServedTs:    now,
	}
}

func TestRevisionNoteStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	t.Run("null key fields match only stored nulls", func(t *testing.T) {
		note := baseNote(1, nil, nil)
		note.Evidence = []*store.RevisionNoteEvidence{
			{SourceType: store.EvidenceSourceCaseAttempt, SourceID: 11, Weight: 2},
			{SourceType: store.EvidenceSourceUKMLAAttempt, SourceID: 12, Weight: 1},
		}
		created, err := ts.UpsertRevisionNote(ctx, note)
		require.NoError(t, err)
		require.NotZero(t, created.ID)

		found, err := ts.GetRevisionNote(ctx, &store.FindRevisionNote{UserID: 1, Specialty: "cardiology"})
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "ACS essentials", found.Title)
		assert.Equal(t, []string{"STEMI criteria", "troponin kinetics"}, found.KeyConcepts)
		require.Len(t, found.Evidence, 2)
		assert.Equal(t, created.ID, found.Evidence[0].NoteID)

		// A difficulty-specific lookup must not match the NULL row.
		miss, err := ts.GetRevisionNote(ctx, &store.FindRevisionNote{
			UserID: 1, Specialty: "cardiology", Difficulty: strPtr("foundation"),
		})
		require.NoError(t, err)
		assert.Nil(t, miss)
	})

	t.Run("upsert overwrites in place and replaces evidence", func(t *testing.T) {
		first := baseNote(2, strPtr("foundation"), strPtr("acs"))
		first.Evidence = []*store.RevisionNoteEvidence{
			{SourceType: store.EvidenceSourceCaseAttempt, SourceID: 21, Weight: 1},
			{SourceType: store.EvidenceSourceCaseAttempt, SourceID: 22, Weight: 2},
		}
		created, err := ts.UpsertRevisionNote(ctx, first)
		require.NoError(t, err)

		second := baseNote(2, strPtr("foundation"), strPtr("acs"))
		second.Title = "ACS essentials, revised"
		second.AverageScore = 55
		second.Evidence = []*store.RevisionNoteEvidence{
			{SourceType: store.EvidenceSourceUKMLAAttempt, SourceID: 23, Weight: 2},
		}
		updated, err := ts.UpsertRevisionNote(ctx, second)
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)

		found, err := ts.GetRevisionNote(ctx, &store.FindRevisionNote{
			UserID: 2, Specialty: "cardiology", Difficulty: strPtr("foundation"), ClusterKey: strPtr("acs"),
		})
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "ACS essentials, revised", found.Title)
		assert.Equal(t, int32(55), found.AverageScore)
		require.Len(t, found.Evidence, 1)
		assert.Equal(t, int32(23), found.Evidence[0].SourceID)
	})

	t.Run("mark stale and touch served", func(t *testing.T) {
		note, err := ts.UpsertRevisionNote(ctx, baseNote(3, nil, nil))
		require.NoError(t, err)

		staleTs := time.Now().Unix()
		require.NoError(t, ts.MarkRevisionNoteStale(ctx, note.ID, staleTs))

		found, err := ts.GetRevisionNote(ctx, &store.FindRevisionNote{UserID: 3, Specialty: "cardiology"})
		require.NoError(t, err)
		require.NotNil(t, found.StaleTs)
		assert.Equal(t, staleTs, *found.StaleTs)

		require.NoError(t, ts.TouchRevisionNoteServed(ctx, note.ID, staleTs+5))
		found, err = ts.GetRevisionNote(ctx, &store.FindRevisionNote{UserID: 3, Specialty: "cardiology"})
		require.NoError(t, err)
		assert.Equal(t, staleTs+5, found.LastServedTs)
	})

	t.Run("difficulty-only and cluster rows coexist per user", func(t *testing.T) {
		_, err := ts.UpsertRevisionNote(ctx, baseNote(4, strPtr("foundation"), nil))
		require.NoError(t, err)
		_, err = ts.UpsertRevisionNote(ctx, baseNote(4, strPtr("foundation"), strPtr("acs")))
		require.NoError(t, err)

		broad, err := ts.GetRevisionNote(ctx, &store.FindRevisionNote{
			UserID: 4, Specialty: "cardiology", Difficulty: strPtr("foundation"),
		})
		require.NoError(t, err)
		require.NotNil(t, broad)
		assert.Nil(t, broad.ClusterKey)

		exact, err := ts.GetRevisionNote(ctx, &store.FindRevisionNote{
			UserID: 4, Specialty: "cardiology", Difficulty: strPtr("foundation"), ClusterKey: strPtr("acs"),
		})
		require.NoError(t, err)
		require.NotNil(t, exact)
		require.NotNil(t, exact.ClusterKey)
		assert.NotEqual(t, broad.ID, exact.ID)
	})
}
