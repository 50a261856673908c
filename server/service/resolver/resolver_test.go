package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/medrecall/medrecall/server/internal/errors"
	"github.com/medrecall/medrecall/store"
)

type fakeStore struct {
	mappings  map[string]*store.ContextClusterMapping
	taxonomy  []*store.ClusterTaxonomyEntry
	cases     map[int32]*store.Case
	questions map[int32]*store.Question

	upserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		mappings:  map[string]*store.ContextClusterMapping{},
		cases:     map[int32]*store.Case{},
		questions: map[int32]*store.Question{},
	}
}

func (f *fakeStore) GetContextClusterMapping(_ context.Context, find *store.FindContextClusterMapping) (*store.ContextClusterMapping, error) {
	return f.mappings[find.ContextType.String()+":"+find.ContextID], nil
}

func (f *fakeStore) UpsertContextClusterMapping(_ context.Context, upsert *store.ContextClusterMapping) (*store.ContextClusterMapping, error) {
	f.upserts++
	f.mappings[upsert.ContextType.String()+":"+upsert.ContextID] = upsert
	return upsert, nil
}

func (f *fakeStore) ListClusterTaxonomyEntries(_ context.Context, find *store.FindClusterTaxonomyEntry) ([]*store.ClusterTaxonomyEntry, error) {
	list := []*store.ClusterTaxonomyEntry{}
	for _, entry := range f.taxonomy {
		if find.Specialty != nil && entry.Specialty != *find.Specialty {
			continue
		}
		list = append(list, entry)
	}
	return list, nil
}

func (f *fakeStore) GetCase(_ context.Context, find *store.FindCase) (*store.Case, error) {
	return f.cases[*find.ID], nil
}

func (f *fakeStore) GetQuestion(_ context.Context, find *store.FindQuestion) (*store.Question, error) {
	return f.questions[*find.ID], nil
}

func cardiologyTaxonomy() []*store.ClusterTaxonomyEntry {
	return []*store.ClusterTaxonomyEntry{
		{ID: 1, Specialty: "cardiology", ClusterKey: "acs", Label: "Acute coronary syndromes", Keywords: []string{"chest pain", "troponin", "STEMI"}, Position: 1},
		{ID: 2, Specialty: "cardiology", ClusterKey: "arrhythmia", Label: "Arrhythmias", Keywords: []string{"palpitations", "atrial fibrillation", "ECG"}, Position: 2},
	}
}

func TestResolveCase(t *testing.T) {
	ctx := context.Background()

	t.Run("keyword scoring picks the highest-scoring cluster", func(t *testing.T) {
		fs := newFakeStore()
		fs.taxonomy = cardiologyTaxonomy()
		fs.cases[1] = &store.Case{
			ID: 1, Specialty: "cardiology", Difficulty: store.DifficultyFoundation,
			Title:       "Crushing chest pain in a 60-year-old",
			Description: "Troponin raised, ECG shows ST elevation. Chest pain ongoing.",
		}

		svc := NewService(fs)
		resolved, err := svc.Resolve(ctx, store.ContextTypeCase, "1")
		require.NoError(t, err)

		assert.Equal(t, "cardiology", resolved.Specialty)
		require.NotNil(t, resolved.ClusterKey)
		assert.Equal(t, "acs", *resolved.ClusterKey)
		assert.Equal(t, store.MatchedByHeuristic, resolved.MatchedBy)
		require.NotNil(t, resolved.Difficulty)
		assert.Equal(t, store.DifficultyFoundation, *resolved.Difficulty)
	})

	t.Run("zero score falls back to first entry in stored order", func(t *testing.T) {
		fs := newFakeStore()
		fs.taxonomy = cardiologyTaxonomy()
		fs.cases[2] = &store.Case{
			ID: 2, Specialty: "cardiology", Difficulty: store.DifficultyAdvanced,
			Title: "An unusual presentation", Description: "No matching words here.",
		}

		svc := NewService(fs)
		resolved, err := svc.Resolve(ctx, store.ContextTypeCase, "2")
		require.NoError(t, err)
		require.NotNil(t, resolved.ClusterKey)
		assert.Equal(t, "acs", *resolved.ClusterKey)
	})

	t.Run("valid tagged cluster wins over keywords", func(t *testing.T) {
		fs := newFakeStore()
		fs.taxonomy = cardiologyTaxonomy()
		tagged := "arrhythmia"
		fs.cases[3] = &store.Case{
			ID: 3, Specialty: "cardiology", Difficulty: store.DifficultyIntermediate,
			Title: "Chest pain with troponin rise", ClusterKey: &tagged,
		}

		svc := NewService(fs)
		resolved, err := svc.Resolve(ctx, store.ContextTypeCase, "3")
		require.NoError(t, err)
		require.NotNil(t, resolved.ClusterKey)
		assert.Equal(t, "arrhythmia", *resolved.ClusterKey)
		assert.Equal(t, store.MatchedByMetadata, resolved.MatchedBy)
	})

	t.Run("invalid tagged cluster falls back to scoring", func(t *testing.T) {
		fs := newFakeStore()
		fs.taxonomy = cardiologyTaxonomy()
		tagged := "no-such-cluster"
		fs.cases[4] = &store.Case{
			ID: 4, Specialty: "cardiology", Difficulty: store.DifficultyIntermediate,
			Title: "Palpitations and an irregular ECG", ClusterKey: &tagged,
		}

		svc := NewService(fs)
		resolved, err := svc.Resolve(ctx, store.ContextTypeCase, "4")
		require.NoError(t, err)
		require.NotNil(t, resolved.ClusterKey)
		assert.Equal(t, "arrhythmia", *resolved.ClusterKey)
		assert.Equal(t, store.MatchedByHeuristic, resolved.MatchedBy)
	})

	t.Run("specialty without taxonomy yields nil cluster", func(t *testing.T) {
		fs := newFakeStore()
		fs.cases[5] = &store.Case{ID: 5, Specialty: "dermatology", Difficulty: store.DifficultyFoundation, Title: "Rash"}

		svc := NewService(fs)
		resolved, err := svc.Resolve(ctx, store.ContextTypeCase, "5")
		require.NoError(t, err)
		assert.Nil(t, resolved.ClusterKey)
		assert.Equal(t, "dermatology", resolved.Specialty)
	})

	t.Run("unknown item returns not found without persisting", func(t *testing.T) {
		fs := newFakeStore()
		svc := NewService(fs)
		_, err := svc.Resolve(ctx, store.ContextTypeCase, "99")
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.Zero(t, fs.upserts)
	})
}

func TestResolveMemoization(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.taxonomy = cardiologyTaxonomy()
	fs.questions[10] = &store.Question{
		ID: 10, Specialty: "cardiology", Difficulty: store.DifficultyFoundation,
		Stem: "A patient presents with palpitations.", Explanation: "Atrial fibrillation on ECG.",
	}

	svc := NewService(fs)

	first, err := svc.Resolve(ctx, store.ContextTypeQuestion, "10")
	require.NoError(t, err)
	assert.Equal(t, store.MatchedByHeuristic, first.MatchedBy)
	assert.Equal(t, 1, fs.upserts)

	// Mutate the backing item; the memoized mapping must still be
	// returned verbatim.
	fs.questions[10].Stem = "Crushing chest pain with raised troponin."

	second, err := svc.Resolve(ctx, store.ContextTypeQuestion, "10")
	require.NoError(t, err)
	assert.Equal(t, store.MatchedByCached, second.MatchedBy)
	require.NotNil(t, second.ClusterKey)
	assert.Equal(t, *first.ClusterKey, *second.ClusterKey)
	assert.Equal(t, 1, fs.upserts)
}

func TestResolveCategory(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.taxonomy = cardiologyTaxonomy()
	svc := NewService(fs)

	t.Run("full key", func(t *testing.T) {
		resolved, err := svc.Resolve(ctx, store.ContextTypeCategory, "cardiology|advanced|acs")
		require.NoError(t, err)
		assert.Equal(t, "cardiology", resolved.Specialty)
		require.NotNil(t, resolved.Difficulty)
		assert.Equal(t, "advanced", *resolved.Difficulty)
		require.NotNil(t, resolved.ClusterKey)
		assert.Equal(t, "acs", *resolved.ClusterKey)
	})

	t.Run("any segments mean unset", func(t *testing.T) {
		resolved, err := svc.Resolve(ctx, store.ContextTypeCategory, "cardiology|any|any")
		require.NoError(t, err)
		assert.Nil(t, resolved.Difficulty)
		assert.Nil(t, resolved.ClusterKey)
	})

	t.Run("specialty-only id", func(t *testing.T) {
		resolved, err := svc.Resolve(ctx, store.ContextTypeCategory, "cardiology")
		require.NoError(t, err)
		assert.Nil(t, resolved.Difficulty)
		assert.Nil(t, resolved.ClusterKey)
	})

	t.Run("unknown cluster is not found", func(t *testing.T) {
		_, err := svc.Resolve(ctx, store.ContextTypeCategory, "cardiology|any|valves")
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("empty specialty is invalid", func(t *testing.T) {
		_, err := svc.Resolve(ctx, store.ContextTypeCategory, "|any|any")
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}
