// Package finalize turns a user's accumulated conversation memory into a
// structured closing report with a single LLM call.
package finalize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/castellanodev/ragserve/internal/llm"
	"github.com/castellanodev/ragserve/internal/memory"
)

// ErrNoMemories is returned when the user has nothing to summarize.
var ErrNoMemories = errors.New("no memories stored for user")

// Report is the structured summary. Next steps always come back
// uncompleted; the model is not trusted to decide completion state.
type Report struct {
	ConversationSummary string   `json:"conversation_summary"`
	KeyPoints           []string `json:"key_points"`
	NextSteps           []Step   `json:"next_steps"`
}

// Step is one follow-up item in the report.
type Step struct {
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// Fallback is returned in place of a Report when the model's output could
// not be parsed as JSON. The raw text is preserved verbatim so nothing the
// model produced is lost.
type Fallback struct {
	Error       string `json:"error"`
	RawResponse string `json:"raw_response"`
}

// Finalizer produces reports from stored memories.
type Finalizer struct {
	memories *memory.Store
	provider llm.Provider
	model    string
	language string
	logger   *slog.Logger
}

// New creates a finalizer. language names the language the report content
// should be written in, e.g. "Spanish".
func New(memories *memory.Store, provider llm.Provider, model, language string, logger *slog.Logger) *Finalizer {
	if language == "" {
		language = "Spanish"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Finalizer{
		memories: memories,
		provider: provider,
		model:    model,
		language: language,
		logger:   logger,
	}
}

const reportPromptFormat = `Below is the full conversation memory for a user. Write a closing report as a single JSON object with exactly these keys:
- "conversation_summary": a paragraph summarizing the conversation
- "key_points": an array of short strings with the most important facts
- "next_steps": an array of objects, each with "description" (string) and "completed" (boolean, always false)

Write all report content in %s. Respond with the JSON object only.

Memories:
%s`

// Summarize fetches every memory for userID and asks the model for one
// report. It returns a *Report on success or a *Fallback when the model
// output is not parseable JSON; the error is non-nil only for upstream
// failures.
func (f *Finalizer) Summarize(ctx context.Context, userID string) (any, error) {
	entries, err := f.memories.All(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch memories: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMemories, userID)
	}

	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString("- ")
		sb.WriteString(e.Text)
		sb.WriteString("\n")
	}

	resp, err := f.provider.Complete(ctx, llm.CompletionRequest{
		Model: f.model,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf(reportPromptFormat, f.language, sb.String())},
		},
		JSONMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate report: %w", err)
	}

	raw, ok := ExtractJSON(resp.Content)
	if !ok {
		f.logger.Warn("report response contained no JSON object", "user", userID)
		return &Fallback{Error: "model response contained no JSON object", RawResponse: resp.Content}, nil
	}

	var report Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		f.logger.Warn("report JSON failed to parse", "user", userID, "error", err)
		return &Fallback{Error: "model response was not valid JSON: " + err.Error(), RawResponse: resp.Content}, nil
	}

	for i := range report.NextSteps {
		report.NextSteps[i].Completed = false
	}
	return &report, nil
}

// ExtractJSON cuts the substring from the first '{' to the last '}'.
// Models often wrap JSON in prose or code fences; this recovers the object
// without caring about the wrapping.
func ExtractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
