package revision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/medrecall/medrecall/plugin/ai/notegen"
	"github.com/medrecall/medrecall/server/service/performance"
	"github.com/medrecall/medrecall/store"
)

const (
	// evidenceWindow caps how many attempts of each kind feed one
	// regeneration.
	evidenceWindow = 8
	// failureWeight marks failed attempts as stronger evidence than
	// successful ones.
	failureWeight = 2

	// fallbackSourceVersion is recorded on notes built from static
	// taxonomy text when the generator is unavailable.
	fallbackSourceVersion = "fallback-v1"
)

// noteKey is the exact cache key a note is generated at.
type noteKey struct {
	userID     int32
	specialty  string
	difficulty *string
	clusterKey *string
}

// regenerate builds a fresh note at the exact key and persists it,
// replacing the previous content and evidence. Generator failures are
// recovered locally with a deterministic fallback note; this function
// only fails on store errors.
func (s *Service) regenerate(ctx context.Context, key noteKey) (*store.RevisionNote, error) {
	evidence, attempts, err := s.gatherEvidence(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "gather evidence")
	}

	snapshot, err := s.perf.Snapshot(ctx, key.userID, &performance.SnapshotKey{
		Specialty:  key.specialty,
		Difficulty: key.difficulty,
		ClusterKey: key.clusterKey,
	})
	if err != nil {
		return nil, errors.Wrap(err, "snapshot performance")
	}

	label := s.clusterLabel(ctx, key)

	content, sourceVersion := s.generateContent(ctx, key, label, snapshot, evidence)

	now := s.now().Unix()
	note := &store.RevisionNote{
		UID:        shortuuid.New(),
		UserID:     key.userID,
		Specialty:  key.specialty,
		Difficulty: key.difficulty,
		ClusterKey: key.clusterKey,

		Title:          content.Title,
		Summary:        content.Summary,
		KeyConcepts:    content.KeyConcepts,
		CommonMistakes: content.CommonMistakes,
		RapidChecklist: content.RapidChecklist,
		PracticePlan:   content.PracticePlan,
		SourceVersion:  sourceVersion,

		AverageScore:  snapshot.AverageScore,
		TotalAttempts: snapshot.TotalAttempts,
		SnapshotTs:    now,

		StaleTs:         nil,
		LastGeneratedTs: now,
		LastServedTs:    now,

		Evidence: attempts,
	}

	upserted, err := s.store.UpsertRevisionNote(ctx, note)
	if err != nil {
		return nil, errors.Wrap(err, "upsert revision note")
	}
	return upserted, nil
}

// generateContent calls the generator and falls back to deterministic
// static content on any failure.
func (s *Service) generateContent(ctx context.Context, key noteKey, label string, snapshot *performance.Snapshot, evidence []notegen.Evidence) (*notegen.NoteContent, string) {
	content, err := s.generator.GenerateNote(ctx, &notegen.Request{
		Specialty:     key.specialty,
		Difficulty:    key.difficulty,
		ClusterKey:    key.clusterKey,
		ClusterLabel:  label,
		AverageScore:  snapshot.AverageScore,
		TotalAttempts: snapshot.TotalAttempts,
		Evidence:      evidence,
	})
	if err != nil {
		slog.Warn("note generation failed, using fallback content",
			"specialty", key.specialty,
			"error", err)
		return fallbackNote(key, label), fallbackSourceVersion
	}
	return content, s.generator.Version()
}

// gatherEvidence collects the most recent case and question attempts
// scoped to the key, capped per kind, with failures weighted up.
func (s *Service) gatherEvidence(ctx context.Context, key noteKey) ([]notegen.Evidence, []*store.RevisionNoteEvidence, error) {
	limit := evidenceWindow
	evidence := []notegen.Evidence{}
	rows := []*store.RevisionNoteEvidence{}

	for _, kind := range []store.ItemKind{store.ItemKindCase, store.ItemKindQuestion} {
		kind := kind
		find := &store.FindAttemptRecord{
			UserID:               &key.userID,
			ItemKind:             &kind,
			Difficulty:           key.difficulty,
			ClusterKey:           key.clusterKey,
			OrderByCreatedTsDesc: true,
			Limit:                &limit,
		}
		if key.specialty != "" {
			find.Specialty = &key.specialty
		}

		attempts, err := s.store.ListAttemptRecords(ctx, find)
		if err != nil {
			return nil, nil, err
		}

		sourceType := store.EvidenceSourceCaseAttempt
		if kind == store.ItemKindQuestion {
			sourceType = store.EvidenceSourceUKMLAAttempt
		}

		for _, attempt := range attempts {
			weight := int32(1)
			if attempt.IsFailure() {
				weight = failureWeight
			}
			evidence = append(evidence, notegen.Evidence{
				SourceType: sourceType,
				SourceID:   attempt.ID,
				Summary:    summarizeAttempt(attempt),
				Weight:     weight,
			})
			rows = append(rows, &store.RevisionNoteEvidence{
				SourceType: sourceType,
				SourceID:   attempt.ID,
				Weight:     weight,
			})
		}
	}

	return evidence, rows, nil
}

func summarizeAttempt(attempt *store.AttemptRecord) string {
	when := time.Unix(attempt.CreatedTs, 0).UTC().Format("2006-01-02")
	switch {
	case attempt.Score != nil:
		return fmt.Sprintf("Case attempt on %s scored %d (%s, %s).", when, *attempt.Score, attempt.Specialty, attempt.Difficulty)
	case attempt.Correct != nil && *attempt.Correct:
		return fmt.Sprintf("Question on %s answered correctly (%s, %s).", when, attempt.Specialty, attempt.Difficulty)
	default:
		return fmt.Sprintf("Question on %s answered incorrectly (%s, %s).", when, attempt.Specialty, attempt.Difficulty)
	}
}

// clusterLabel resolves the human-readable label for the key's cluster.
// Missing taxonomy entries are not an error; the label stays empty.
func (s *Service) clusterLabel(ctx context.Context, key noteKey) string {
	if key.clusterKey == nil {
		return ""
	}
	entries, err := s.store.ListClusterTaxonomyEntries(ctx, &store.FindClusterTaxonomyEntry{
		Specialty:  &key.specialty,
		ClusterKey: key.clusterKey,
	})
	if err != nil || len(entries) == 0 {
		return ""
	}
	return entries[0].Label
}

// fallbackNote builds the deterministic note served when the generator
// is unavailable.
func fallbackNote(key noteKey, label string) *notegen.NoteContent {
	topic := key.specialty
	if label != "" {
		topic = label
	} else if key.clusterKey != nil {
		topic = *key.clusterKey
	}

	return &notegen.NoteContent{
		Title:   fmt.Sprintf("Revision primer: %s", topic),
		Summary: fmt.Sprintf("A personalized note for %s is not available yet. Work through the structured checklist below and retry your weakest items.", topic),
		KeyConcepts: []string{
			fmt.Sprintf("Core presentations and red flags in %s", topic),
			"First-line investigations and their interpretation",
			"Initial management priorities and escalation criteria",
		},
		CommonMistakes: []string{
			"Anchoring on the first plausible diagnosis",
			"Missing severity markers that change management",
		},
		RapidChecklist: []string{
			"Recall the defining clinical features",
			"List the first-line investigations",
			"State the immediate management steps",
		},
		PracticePlan: []string{
			fmt.Sprintf("Re-attempt your most recent %s items", topic),
			"Review one guideline summary for this topic",
		},
	}
}
