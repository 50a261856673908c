// Package notegen defines the revision note generator interface and
// its OpenAI-backed implementation.
package notegen

import (
	"context"
)

// Evidence is a single attempt fed to the generator as supporting
// material for a note.
type Evidence struct {
	SourceType string
	SourceID   int32
	Summary    string
	// Weight marks how strongly the attempt should influence the
	// note. Failures carry a higher weight than successes.
	Weight int32
}

// Request carries everything the generator needs to produce a note
// for one cache key.
type Request struct {
	Specialty    string
	Difficulty   *string
	ClusterKey   *string
	ClusterLabel string

	// Performance snapshot at generation time.
	AverageScore  int32
	TotalAttempts int32

	Evidence []Evidence
}

// NoteContent is the structured body of a generated revision note.
type NoteContent struct {
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	KeyConcepts    []string `json:"keyConcepts"`
	CommonMistakes []string `json:"commonMistakes"`
	RapidChecklist []string `json:"rapidChecklist"`
	PracticePlan   []string `json:"practicePlan"`
}

// Generator produces revision notes from attempt evidence.
type Generator interface {
	// GenerateNote produces a note for the given request. Callers
	// bound the call with a deadline; implementations must respect
	// ctx cancellation.
	GenerateNote(ctx context.Context, req *Request) (*NoteContent, error)

	// Version identifies the generator, recorded on each note as its
	// source version.
	Version() string
}
