package store

import (
	"context"
)

// QuestionOption is one answer option of a single-best-answer question.
type QuestionOption struct {
	Key     string `json:"key"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is a UKMLA-style single-best-answer question.
type Question struct {
	ID          int32
	UID         string
	Stem        string
	Explanation string
	Specialty   string
	Difficulty  string
	ClusterKey  *string
	Options     []QuestionOption
	CreatedTs   int64
	UpdatedTs   int64
}

// HasOption reports whether the given option key belongs to the question.
func (q *Question) HasOption(key string) bool {
	for _, opt := range q.Options {
		if opt.Key == key {
			return true
		}
	}
	return false
}

// IsCorrectOption reports whether the given option key is the correct answer.
func (q *Question) IsCorrectOption(key string) bool {
	for _, opt := range q.Options {
		if opt.Key == key {
			return opt.Correct
		}
	}
	return false
}

// FindQuestion is the find condition for questions.
type FindQuestion struct {
	ID        *int32
	UID       *string
	Specialty *string
	Limit     *int
}

// CreateQuestion creates a new question.
func (s *Store) CreateQuestion(ctx context.Context, create *Question) (*Question, error) {
	return s.driver.CreateQuestion(ctx, create)
}

// GetQuestion returns the matching question, or nil if none exists.
func (s *Store) GetQuestion(ctx context.Context, find *FindQuestion) (*Question, error) {
	list, err := s.driver.ListQuestions(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListQuestions lists questions with filter.
func (s *Store) ListQuestions(ctx context.Context, find *FindQuestion) ([]*Question, error) {
	return s.driver.ListQuestions(ctx, find)
}
