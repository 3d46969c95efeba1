package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/dirtycajunrice/ai-commit-summary/github"
)

const (
	// MaxFilesToSummarize caps how many new summaries are generated in a
	// single run. Files beyond the cap are retried on a subsequent run.
	MaxFilesToSummarize = 20

	// maxConcurrentDeletes bounds the stale-comment deletion fan-out.
	maxConcurrentDeletes = 10
)

// PullRequestAPI is the slice of the GitHub client the reconciler consumes.
// *github.Client satisfies this; tests substitute fakes.
type PullRequestAPI interface {
	GetPullRequest(ctx context.Context, owner, repo string, prNumber int) (*github.PullRequest, error)
	ListPullRequestFiles(ctx context.Context, owner, repo string, prNumber int) ([]github.PullRequestFile, error)
	GetTree(ctx context.Context, owner, repo, treeSHA string, recursive bool) (*github.Tree, error)
	ListReviewComments(ctx context.Context, owner, repo string, prNumber int) ([]github.PullRequestComment, error)
	CreateReviewComment(ctx context.Context, owner, repo string, prNumber int, comment *github.ReviewCommentRequest) (*github.PullRequestComment, error)
	DeleteReviewComment(ctx context.Context, owner, repo string, commentID int64) error
}

// Reconciler synchronizes the set of posted summary comments with the pull
// request's current diff state: stale comments are deleted, unchanged files
// keep their comment, and files without a current comment get a fresh summary
// up to a per-run cap.
type Reconciler struct {
	gh              PullRequestAPI
	summarizer      *Summarizer
	logger          *slog.Logger
	maxNewSummaries int
	excludeFunc     func(path string) bool
}

// NewReconciler creates a Reconciler with the default per-run cap.
func NewReconciler(gh PullRequestAPI, summarizer *Summarizer, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		gh:              gh,
		summarizer:      summarizer,
		logger:          logger,
		maxNewSummaries: MaxFilesToSummarize,
	}
}

// SetMaxNewSummaries overrides the per-run cap on fresh summaries.
func (r *Reconciler) SetMaxNewSummaries(n int) {
	if n > 0 {
		r.maxNewSummaries = n
	}
}

// SetExcludeFunc installs a path filter; matching files are skipped entirely.
func (r *Reconciler) SetExcludeFunc(fn func(path string) bool) {
	r.excludeFunc = fn
}

// Input identifies the pull request to reconcile.
type Input struct {
	Owner    string
	Repo     string
	PRNumber int
}

// Result contains the outcome of a reconciliation run.
type Result struct {
	// Summaries maps filename to summary text for every file summarized this
	// run, fresh or reused. Skipped and beyond-cap files have no entry.
	Summaries map[string]string
	BaseSHA   string
	HeadSHA   string
	Files     []*ModifiedFile
	Created   int
	Reused    int
	Deleted   int
}

// botComment pairs a remote comment id with its normalized body.
type botComment struct {
	id         int64
	body       string
	normalized string
}

// Reconcile runs one synchronization pass. Fetch failures are fatal. A failure
// to create a new comment aborts the remaining generation pass; the partial
// result accumulated so far is returned alongside the error.
func (r *Reconciler) Reconcile(ctx context.Context, input *Input) (*Result, error) {
	r.logger.Info("starting summary run",
		"owner", input.Owner,
		"repo", input.Repo,
		"pr", input.PRNumber,
	)

	pr, err := r.gh.GetPullRequest(ctx, input.Owner, input.Repo, input.PRNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pull request: %w", err)
	}

	files, err := r.fetchModifiedFiles(ctx, input, pr.Base.SHA)
	if err != nil {
		return nil, err
	}

	r.logger.Info("fetched modified files", "count", len(files))

	comments, err := r.gh.ListReviewComments(ctx, input.Owner, input.Repo, input.PRNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch review comments: %w", err)
	}

	var bots []botComment
	for _, c := range comments {
		if IsBotComment(c.Body) {
			bots = append(bots, botComment{id: c.ID, body: c.Body, normalized: NormalizeCommentBody(c.Body)})
		}
	}

	surviving, stale := splitBotComments(bots, files)
	r.deleteStaleComments(ctx, input, stale)

	result := &Result{
		Summaries: make(map[string]string),
		BaseSHA:   pr.Base.SHA,
		HeadSHA:   pr.Head.SHA,
		Files:     files,
		Deleted:   len(stale),
	}

	if err := r.generate(ctx, input, result, surviving); err != nil {
		return result, err
	}

	r.logger.Info("summary run complete",
		"summarized", len(result.Summaries),
		"created", result.Created,
		"reused", result.Reused,
		"deleted", result.Deleted,
	)

	return result, nil
}

// fetchModifiedFiles lists the PR's changed files and resolves each file's
// origin blob identifier from the base tree.
func (r *Reconciler) fetchModifiedFiles(ctx context.Context, input *Input, baseSHA string) ([]*ModifiedFile, error) {
	prFiles, err := r.gh.ListPullRequestFiles(ctx, input.Owner, input.Repo, input.PRNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch files: %w", err)
	}

	tree, err := r.gh.GetTree(ctx, input.Owner, input.Repo, baseSHA, true)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch base tree: %w", err)
	}
	if tree.Truncated {
		r.logger.Warn("base tree truncated, origin identifiers may be incomplete", "base", baseSHA)
	}

	baseBlobs := make(map[string]string, len(tree.Tree))
	for _, entry := range tree.Tree {
		if entry.Type == "blob" {
			baseBlobs[entry.Path] = entry.SHA
		}
	}

	files := make([]*ModifiedFile, 0, len(prFiles))
	for _, f := range prFiles {
		origin := NoneSHA
		if sha, ok := baseBlobs[f.Filename]; ok {
			origin = sha
		}
		files = append(files, &ModifiedFile{
			Filename:  f.Filename,
			SHA:       f.SHA,
			OriginSHA: origin,
			Diff:      f.Patch,
			Position:  FirstInsertedLine(f.Patch),
		})
	}

	return files, nil
}

// splitBotComments partitions bot comments into those whose encoded identity
// pair matches a currently modified file and those that are stale.
func splitBotComments(bots []botComment, files []*ModifiedFile) (surviving, stale []botComment) {
	titles := make([]string, len(files))
	for i, f := range files {
		titles[i] = ExpectedTitle(f)
	}

	for _, c := range bots {
		matched := false
		for _, title := range titles {
			if strings.Contains(c.normalized, title) {
				matched = true
				break
			}
		}
		if matched {
			surviving = append(surviving, c)
		} else {
			stale = append(stale, c)
		}
	}
	return surviving, stale
}

// deleteStaleComments fans out deletions with bounded concurrency. Every
// deletion is attempted; individual failures are logged and not propagated.
func (r *Reconciler) deleteStaleComments(ctx context.Context, input *Input, stale []botComment) {
	if len(stale) == 0 {
		return
	}

	sem := semaphore.NewWeighted(maxConcurrentDeletes)
	var wg sync.WaitGroup

	for _, c := range stale {
		wg.Add(1)
		go func(c botComment) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				r.logger.Warn("skipping stale comment deletion", "comment_id", c.id, "error", err)
				return
			}
			defer sem.Release(1)

			if err := r.gh.DeleteReviewComment(ctx, input.Owner, input.Repo, c.id); err != nil {
				r.logger.Warn("failed to delete stale comment", "comment_id", c.id, "error", err)
				return
			}
			r.logger.Info("deleted stale comment", "comment_id", c.id)
		}(c)
	}

	wg.Wait()
}

// generate walks the modified files in listing order, reusing current
// comments where possible and creating fresh summaries up to the cap.
func (r *Reconciler) generate(ctx context.Context, input *Input, result *Result, surviving []botComment) error {
	for _, f := range result.Files {
		if r.excludeFunc != nil && r.excludeFunc(f.Filename) {
			r.logger.Info("skipping excluded file", "file", f.Filename)
			continue
		}
		if f.Diff == "" {
			r.logger.Info("skipping binary file", "file", f.Filename)
			continue
		}
		if IsLFSPointer(f.Diff) {
			r.logger.Info("skipping LFS pointer file", "file", f.Filename)
			continue
		}

		if body, ok := findCurrentComment(surviving, f); ok {
			result.Summaries[f.Filename] = body
			result.Reused++
			r.logger.Info("reused existing summary", "file", f.Filename)
			continue
		}

		if result.Created >= r.maxNewSummaries {
			r.logger.Info("summary cap reached, deferring file", "file", f.Filename, "cap", r.maxNewSummaries)
			continue
		}

		text := r.summarizer.Summarize(ctx, f.Filename, f.Diff)
		result.Summaries[f.Filename] = text

		line, side := CommentPlacement(f)
		title := CommentTitle(input.Owner, input.Repo, result.BaseSHA, result.HeadSHA, f)
		_, err := r.gh.CreateReviewComment(ctx, input.Owner, input.Repo, input.PRNumber, &github.ReviewCommentRequest{
			CommitID: result.HeadSHA,
			Path:     f.Filename,
			Line:     line,
			Side:     side,
			Body:     title + "\n" + text,
		})
		if err != nil {
			return fmt.Errorf("failed to create summary comment for %s: %w", f.Filename, err)
		}
		result.Created++
		r.logger.Info("created summary comment", "file", f.Filename, "line", line, "side", side)
	}

	return nil
}

// findCurrentComment returns the body (minus its title line) of a surviving
// comment that encodes the file's exact identity pair.
func findCurrentComment(surviving []botComment, f *ModifiedFile) (string, bool) {
	title := ExpectedTitle(f)
	for _, c := range surviving {
		if strings.Contains(c.normalized, title) {
			return BodyWithoutTitle(c.body), true
		}
	}
	return "", false
}
