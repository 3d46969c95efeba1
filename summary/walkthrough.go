package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dirtycajunrice/ai-commit-summary/github"
)

// WalkthroughMarker prefixes the single PR-level overview comment. It begins
// with CommentMarker for consistency, but walkthroughs live on the issue
// timeline and are never touched by the reconciler's review-comment passes.
const WalkthroughMarker = "GPT summary of changes"

// IssueCommentAPI is the slice of the GitHub client the walkthrough consumes.
type IssueCommentAPI interface {
	ListPullRequestCommits(ctx context.Context, owner, repo string, prNumber int) ([]github.Commit, error)
	ListIssueComments(ctx context.Context, owner, repo string, prNumber int) ([]github.IssueComment, error)
	CreateIssueComment(ctx context.Context, owner, repo string, prNumber int, body string) (*github.IssueComment, error)
	UpdateIssueComment(ctx context.Context, owner, repo string, commentID int64, body string) (*github.IssueComment, error)
}

// Walkthrough publishes a single PR-level overview comment built from the
// per-file summary map. The comment is updated in place on subsequent runs.
type Walkthrough struct {
	gh          IssueCommentAPI
	completions CompletionClient
	logger      *slog.Logger
}

// NewWalkthrough creates a Walkthrough publisher.
func NewWalkthrough(gh IssueCommentAPI, completions CompletionClient, logger *slog.Logger) *Walkthrough {
	return &Walkthrough{gh: gh, completions: completions, logger: logger}
}

// Publish generates and upserts the overview comment. A nil or empty summary
// map is a no-op. Callers treat errors as non-fatal.
func (w *Walkthrough) Publish(ctx context.Context, input *Input, summaries map[string]string) error {
	if len(summaries) == 0 {
		return nil
	}

	var messages []string
	commits, err := w.gh.ListPullRequestCommits(ctx, input.Owner, input.Repo, input.PRNumber)
	if err != nil {
		// The walkthrough is still useful without commit messages.
		w.logger.Warn("failed to fetch commits for walkthrough", "error", err)
	} else {
		for _, c := range commits {
			if c.Commit != nil {
				messages = append(messages, c.Commit.Message)
			}
		}
	}

	prompt := BuildWalkthroughPrompt(summaries, messages)
	text, _, err := w.completions.Complete(ctx, walkthroughSystemPrompt, prompt)
	if err != nil {
		return fmt.Errorf("failed to generate walkthrough: %w", err)
	}
	if text == "" {
		return fmt.Errorf("empty walkthrough completion")
	}

	body := WalkthroughMarker + "\n\n" + text

	existing, err := w.gh.ListIssueComments(ctx, input.Owner, input.Repo, input.PRNumber)
	if err != nil {
		return fmt.Errorf("failed to list issue comments: %w", err)
	}

	for _, c := range existing {
		if strings.HasPrefix(c.Body, WalkthroughMarker) {
			if _, err := w.gh.UpdateIssueComment(ctx, input.Owner, input.Repo, c.ID, body); err != nil {
				return fmt.Errorf("failed to update walkthrough comment: %w", err)
			}
			w.logger.Info("updated walkthrough comment", "comment_id", c.ID)
			return nil
		}
	}

	created, err := w.gh.CreateIssueComment(ctx, input.Owner, input.Repo, input.PRNumber, body)
	if err != nil {
		return fmt.Errorf("failed to create walkthrough comment: %w", err)
	}
	w.logger.Info("created walkthrough comment", "comment_id", created.ID)
	return nil
}
