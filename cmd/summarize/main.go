// Package main provides a one-shot summarizer run for CI pipelines.
//
// Configuration via environment variables:
//
//	GITHUB_TOKEN          - access token (required unless App credentials are set)
//	GITHUB_APP_ID         - GitHub App ID (with GITHUB_APP_INSTALLATION_ID and GITHUB_PRIVATE_KEY)
//	GITHUB_APP_INSTALLATION_ID - installation the App client acts as
//	GITHUB_PRIVATE_KEY    - GitHub App private key in PEM format
//	GITHUB_REPOSITORY     - "owner/name" of the repository (required)
//	PR_NUMBER             - pull request number (required)
//	ANTHROPIC_API_KEY     - Anthropic API key (required)
//	ANTHROPIC_MODEL       - model override (optional)
//	DATABASE_URL          - PostgreSQL connection string for run records (optional)
//
// Usage:
//
//	go run cmd/summarize/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dirtycajunrice/ai-commit-summary/anthropic"
	"github.com/dirtycajunrice/ai-commit-summary/config"
	"github.com/dirtycajunrice/ai-commit-summary/github"
	"github.com/dirtycajunrice/ai-commit-summary/storage"
	"github.com/dirtycajunrice/ai-commit-summary/storage/postgres"
	"github.com/dirtycajunrice/ai-commit-summary/summary"
)

const runTimeout = 10 * time.Minute

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if err := run(logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	owner, repo, prNumber, err := targetFromEnv()
	if err != nil {
		return err
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}

	client, err := newGitHubClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	pr, err := client.GetPullRequest(ctx, owner, repo, prNumber)
	if err != nil {
		return fmt.Errorf("failed to fetch pull request: %w", err)
	}

	cfg, err := config.NewLoader(client).Load(ctx, owner, repo, pr.Head.SHA)
	if err != nil {
		logger.Warn("falling back to default config", "error", err)
		cfg = config.DefaultConfig()
	}
	if !cfg.Enabled {
		logger.Info("summarizer disabled for repository", "owner", owner, "repo", repo)
		return nil
	}

	model := cfg.Model
	if env := os.Getenv("ANTHROPIC_MODEL"); env != "" {
		model = env
	}
	completions := anthropic.NewClient(apiKey, model)

	summarizer := summary.NewSummarizer(completions, logger)
	reconciler := summary.NewReconciler(client, summarizer, logger)
	reconciler.SetExcludeFunc(cfg.ShouldExcludeFile)
	if cfg.MaxFiles > 0 {
		reconciler.SetMaxNewSummaries(cfg.MaxFiles)
	}

	input := &summary.Input{Owner: owner, Repo: repo, PRNumber: prNumber}
	result, runErr := reconciler.Reconcile(ctx, input)

	if result != nil {
		if cfg.IsWalkthroughEnabled() {
			walkthrough := summary.NewWalkthrough(client, completions, logger)
			if err := walkthrough.Publish(ctx, input, result.Summaries); err != nil {
				logger.Warn("failed to publish walkthrough", "error", err)
			}
		}
		if err := storeRun(ctx, logger, input, result, summarizer.Usage()); err != nil {
			logger.Warn("failed to store run record", "error", err)
		}
	}

	return runErr
}

// targetFromEnv resolves the pull request to operate on from GITHUB_REPOSITORY
// and PR_NUMBER.
func targetFromEnv() (owner, repo string, prNumber int, err error) {
	repository := os.Getenv("GITHUB_REPOSITORY")
	if repository == "" {
		return "", "", 0, fmt.Errorf("GITHUB_REPOSITORY is required")
	}
	parts := strings.SplitN(repository, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", 0, fmt.Errorf("invalid GITHUB_REPOSITORY %q, want owner/name", repository)
	}

	prStr := os.Getenv("PR_NUMBER")
	if prStr == "" {
		return "", "", 0, fmt.Errorf("PR_NUMBER is required")
	}
	prNumber, err = strconv.Atoi(prStr)
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid PR_NUMBER: %w", err)
	}

	return parts[0], parts[1], prNumber, nil
}

// newGitHubClient builds a client from either a plain token or GitHub App
// credentials, preferring the token when both are set.
func newGitHubClient() (*github.Client, error) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return github.NewTokenClient(token), nil
	}

	appIDStr := os.Getenv("GITHUB_APP_ID")
	installationIDStr := os.Getenv("GITHUB_APP_INSTALLATION_ID")
	privateKey := os.Getenv("GITHUB_PRIVATE_KEY")
	if appIDStr == "" || installationIDStr == "" || privateKey == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN or GitHub App credentials are required")
	}

	appID, err := strconv.ParseInt(appIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GITHUB_APP_ID: %w", err)
	}
	installationID, err := strconv.ParseInt(installationIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GITHUB_APP_INSTALLATION_ID: %w", err)
	}

	return github.NewAppClient(appID, installationID, []byte(privateKey))
}

// storeRun persists the run record when DATABASE_URL is configured.
func storeRun(ctx context.Context, logger *slog.Logger, input *summary.Input, result *summary.Result, usage *storage.TokenUsage) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil
	}

	store, err := postgres.NewFromDSN(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	summaries := make([]storage.FileSummary, 0, len(result.Files))
	for _, f := range result.Files {
		text, ok := result.Summaries[f.Filename]
		if !ok {
			continue
		}
		summaries = append(summaries, storage.FileSummary{
			Path:      f.Filename,
			OriginSHA: f.OriginSHA,
			SHA:       f.SHA,
			Summary:   text,
		})
	}

	record := &storage.RunRecord{
		Owner:           input.Owner,
		Repo:            input.Repo,
		PRNumber:        input.PRNumber,
		HeadSHA:         result.HeadSHA,
		FilesChanged:    len(result.Files),
		CommentsCreated: result.Created,
		CommentsReused:  result.Reused,
		CommentsDeleted: result.Deleted,
		Summaries:       summaries,
		Usage:           usage,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
	}

	if err := store.StoreRun(ctx, record); err != nil {
		return err
	}
	logger.Info("stored run record", "pr", input.PRNumber, "head", result.HeadSHA)
	return nil
}
