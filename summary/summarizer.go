package summary

import (
	"context"
	"log/slog"

	"github.com/dirtycajunrice/ai-commit-summary/storage"
)

const (
	// Sentinel is the fixed text returned (and posted) whenever a summary
	// cannot be generated. It is not distinguished from a real summary by
	// the reconciler.
	Sentinel = "Error: couldn't generate summary"

	// MaxPromptChars is the assembled-prompt size ceiling. Larger prompts
	// resolve to the sentinel without calling the completion service.
	MaxPromptChars = 20000
)

// CompletionClient produces a text completion for a system + user prompt pair.
// *anthropic.Client satisfies this; tests substitute fakes.
type CompletionClient interface {
	Complete(ctx context.Context, system, prompt string) (string, *storage.TokenUsage, error)
}

// Summarizer turns one file's diff into a natural-language summary.
// All failure modes resolve to Sentinel; Summarize never fails the run.
type Summarizer struct {
	completions    CompletionClient
	logger         *slog.Logger
	maxPromptChars int
	usage          storage.TokenUsage
}

// NewSummarizer creates a Summarizer backed by the given completion client.
func NewSummarizer(completions CompletionClient, logger *slog.Logger) *Summarizer {
	return &Summarizer{
		completions:    completions,
		logger:         logger,
		maxPromptChars: MaxPromptChars,
	}
}

// SetMaxPromptChars overrides the prompt size ceiling.
func (s *Summarizer) SetMaxPromptChars(n int) {
	if n > 0 {
		s.maxPromptChars = n
	}
}

// Summarize produces a bullet-point summary of a single file's diff.
// Oversized input, a malformed or empty response, and transport failures all
// yield Sentinel; no retries are attempted.
func (s *Summarizer) Summarize(ctx context.Context, filename, diff string) string {
	prompt := BuildFilePrompt(filename, diff)
	if len(prompt) > s.maxPromptChars {
		s.logger.Warn("diff too large to summarize",
			"file", filename,
			"prompt_chars", len(prompt),
			"limit", s.maxPromptChars,
		)
		return Sentinel
	}

	text, usage, err := s.completions.Complete(ctx, fileSystemPrompt, prompt)
	s.usage.Add(usage)
	if err != nil {
		s.logger.Error("failed to generate summary", "file", filename, "error", err)
		return Sentinel
	}
	if text == "" {
		s.logger.Warn("empty completion content", "file", filename)
		return Sentinel
	}

	return text
}

// Usage returns the accumulated token usage across all Summarize calls.
func (s *Summarizer) Usage() *storage.TokenUsage {
	u := s.usage
	return &u
}
