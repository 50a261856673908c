package notegen

import (
	"context"
	"sync"
)

// MockGenerator is a Generator for testing. It records requests and
// returns a configurable result.
type MockGenerator struct {
	mu       sync.Mutex
	requests []*Request

	// Content is returned from GenerateNote when Err is nil.
	Content *NoteContent
	// Err, when set, is returned from every GenerateNote call.
	Err error
	// Block, when set, makes GenerateNote wait until the context is
	// done, returning ctx.Err().
	Block bool
}

// NewMockGenerator creates a MockGenerator with a default note.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		Content: &NoteContent{
			Title:          "Mock note",
			Summary:        "Generated for testing.",
			KeyConcepts:    []string{"concept"},
			CommonMistakes: []string{"mistake"},
			RapidChecklist: []string{"check"},
			PracticePlan:   []string{"practice"},
		},
	}
}

// Version identifies the mock generator.
func (m *MockGenerator) Version() string {
	return "mock-v1"
}

// GenerateNote records the request and returns the configured result.
func (m *MockGenerator) GenerateNote(ctx context.Context, req *Request) (*NoteContent, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	block, err, content := m.Block, m.Err, m.Content
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return content, nil
}

// Requests returns a copy of the recorded requests.
func (m *MockGenerator) Requests() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns the number of GenerateNote calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
