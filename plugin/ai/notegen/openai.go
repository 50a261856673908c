package notegen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/medrecall/medrecall/plugin/ai"
)

const systemPrompt = `You are a UK medical educator writing concise revision notes for a student preparing for clinical practice and the UKMLA.
You will receive the student's recent performance in one topic area. Write a revision note targeted at their weaknesses.
Respond with a single JSON object with these fields:
  "title": short note title,
  "summary": 2-3 sentence overview of what the student should focus on,
  "keyConcepts": array of 3-6 short strings,
  "commonMistakes": array of 2-5 short strings drawn from the evidence,
  "rapidChecklist": array of 3-6 imperative one-liners,
  "practicePlan": array of 2-4 concrete next steps.
Do not include any text outside the JSON object.`

// OpenAIGenerator generates notes through an OpenAI-compatible chat
// completion provider.
type OpenAIGenerator struct {
	provider *ai.Provider
}

// NewOpenAIGenerator creates a generator backed by the given provider.
func NewOpenAIGenerator(provider *ai.Provider) *OpenAIGenerator {
	return &OpenAIGenerator{provider: provider}
}

// Version returns the chat model name.
func (g *OpenAIGenerator) Version() string {
	return g.provider.ChatModel()
}

// GenerateNote builds the prompt, calls the provider, and parses the
// structured response.
func (g *OpenAIGenerator) GenerateNote(ctx context.Context, req *Request) (*NoteContent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.provider.Timeout())
	defer cancel()

	raw, err := g.provider.Chat(ctx, []ai.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildUserPrompt(req)},
	})
	if err != nil {
		return nil, errors.Wrap(err, "generate note")
	}

	content, err := parseNoteContent(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse note response")
	}
	return content, nil
}

func buildUserPrompt(req *Request) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Topic: %s", req.Specialty)
	if req.ClusterLabel != "" {
		fmt.Fprintf(&sb, " / %s", req.ClusterLabel)
	} else if req.ClusterKey != nil {
		fmt.Fprintf(&sb, " / %s", *req.ClusterKey)
	}
	if req.Difficulty != nil {
		fmt.Fprintf(&sb, " (difficulty: %s)", *req.Difficulty)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Performance: average score %d over %d attempts.\n", req.AverageScore, req.TotalAttempts)

	if len(req.Evidence) > 0 {
		sb.WriteString("Recent attempts, most relevant first:\n")
		for _, ev := range req.Evidence {
			fmt.Fprintf(&sb, "- [%s #%d, weight %d] %s\n", ev.SourceType, ev.SourceID, ev.Weight, ev.Summary)
		}
	} else {
		sb.WriteString("No attempt evidence is available; write a general primer for this topic.\n")
	}

	return sb.String()
}

// parseNoteContent extracts the JSON object from a model response,
// tolerating surrounding prose or a fenced code block.
func parseNoteContent(raw string) (*NoteContent, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, errors.Errorf("no JSON object in response: %q", truncate(raw, 120))
	}

	var content NoteContent
	if err := json.Unmarshal([]byte(raw[start:end+1]), &content); err != nil {
		return nil, errors.Wrap(err, "unmarshal note content")
	}
	if content.Title == "" || content.Summary == "" {
		return nil, errors.New("note response missing title or summary")
	}
	return &content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
