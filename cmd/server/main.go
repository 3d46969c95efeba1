// Package main provides a standalone HTTP server for self-hosted deployments.
//
// Configuration via environment variables:
//
//	GITHUB_APP_ID         - GitHub App ID (required)
//	GITHUB_WEBHOOK_SECRET - Webhook signature verification secret (required)
//	GITHUB_PRIVATE_KEY    - GitHub App private key in PEM format (required)
//	ANTHROPIC_API_KEY     - Anthropic API key (required)
//	ANTHROPIC_MODEL       - model override (optional)
//	DATABASE_URL          - PostgreSQL connection string (required)
//	PORT                  - HTTP server port (default: 8080)
//
// Usage:
//
//	go run cmd/server/main.go
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/dirtycajunrice/ai-commit-summary/anthropic"
	"github.com/dirtycajunrice/ai-commit-summary/config"
	"github.com/dirtycajunrice/ai-commit-summary/github"
	"github.com/dirtycajunrice/ai-commit-summary/storage"
	"github.com/dirtycajunrice/ai-commit-summary/storage/postgres"
	"github.com/dirtycajunrice/ai-commit-summary/summary"
)

var (
	logger         *slog.Logger
	webhookHandler *github.WebhookHandler
	pgStorage      *postgres.PostgreSQL

	appID        int64
	privateKey   []byte
	claudeAPIKey string
	modelEnv     string
)

func main() {
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if err := initialize(); err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer pgStorage.Close()

	// Set up routes
	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks/github", handleWebhook)
	mux.HandleFunc("/runs", handleRuns)
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/", handleRoot)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second, // Long timeout for completion calls
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func initialize() error {
	// Load required config from environment
	webhookSecret := os.Getenv("GITHUB_WEBHOOK_SECRET")
	if webhookSecret == "" {
		return fmt.Errorf("GITHUB_WEBHOOK_SECRET is required")
	}

	key := os.Getenv("GITHUB_PRIVATE_KEY")
	if key == "" {
		return fmt.Errorf("GITHUB_PRIVATE_KEY is required")
	}
	privateKey = []byte(key)

	claudeAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	if claudeAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	modelEnv = os.Getenv("ANTHROPIC_MODEL")

	appIDStr := os.Getenv("GITHUB_APP_ID")
	if appIDStr == "" {
		return fmt.Errorf("GITHUB_APP_ID is required")
	}

	var err error
	appID, err = strconv.ParseInt(appIDStr, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid GITHUB_APP_ID: %w", err)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Initialize PostgreSQL storage
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	pgStorage = postgres.New(db)

	// Run migrations
	if err := pgStorage.Migrate(context.Background()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	webhookHandler = github.NewWebhookHandler(webhookSecret)

	logger.Info("initialized", "app_id", appID)
	return nil
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{
		"name":   "ai-commit-summary",
		"status": "running",
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleRuns exposes stored run records for a pull request.
// GET /runs?owner=o&repo=r&pr=7[&latest=true]
func handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	owner := r.URL.Query().Get("owner")
	repo := r.URL.Query().Get("repo")
	prStr := r.URL.Query().Get("pr")
	if owner == "" || repo == "" || prStr == "" {
		http.Error(w, "owner, repo and pr are required", http.StatusBadRequest)
		return
	}
	prNumber, err := strconv.Atoi(prStr)
	if err != nil {
		http.Error(w, "invalid pr", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("latest") == "true" {
		run, err := pgStorage.LatestRunForPR(r.Context(), owner, repo, prNumber)
		if err != nil {
			logger.Error("failed to fetch latest run", "error", err)
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		if run == nil {
			http.NotFound(w, r)
			return
		}
		jsonResponse(w, http.StatusOK, run)
		return
	}

	runs, err := pgStorage.ListRunsForPR(r.Context(), owner, repo, prNumber)
	if err != nil {
		logger.Error("failed to list runs", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, runs)
}

func handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Read body
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("failed to read body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Get event type
	eventType := r.Header.Get("X-GitHub-Event")
	if eventType == "" {
		http.Error(w, "missing X-GitHub-Event header", http.StatusBadRequest)
		return
	}

	logger.Info("received webhook", "event", eventType, "size", len(payload))

	// Verify signature
	signature := r.Header.Get("X-Hub-Signature-256")
	if err := webhookHandler.VerifySignature(payload, signature); err != nil {
		logger.Error("signature verification failed", "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	// Handle ping
	if eventType == "ping" {
		logger.Info("received ping")
		jsonResponse(w, http.StatusOK, map[string]string{"message": "pong"})
		return
	}

	// Only handle pull_request events
	if eventType != "pull_request" {
		logger.Info("ignoring event", "type", eventType)
		jsonResponse(w, http.StatusOK, map[string]string{"message": "event ignored"})
		return
	}

	// Parse event
	event, err := webhookHandler.ParsePullRequestEvent(payload)
	if err != nil {
		logger.Error("failed to parse event", "error", err)
		http.Error(w, "failed to parse event", http.StatusBadRequest)
		return
	}

	// Check if we should process
	if !webhookHandler.ShouldProcess(eventType, event) {
		logger.Info("skipping event", "action", event.Action)
		jsonResponse(w, http.StatusOK, map[string]string{"message": "event skipped"})
		return
	}

	if event.Installation == nil {
		logger.Error("event missing installation")
		http.Error(w, "missing installation", http.StatusBadRequest)
		return
	}

	logger.Info("processing PR",
		"repo", event.Repository.FullName,
		"pr", event.Number,
		"action", event.Action,
	)

	// Respond immediately to GitHub, then process async
	// (completion calls can take longer than GitHub's 10s timeout)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "summary started"})

	input := &summary.Input{
		Owner:    event.Repository.Owner.Login,
		Repo:     event.Repository.Name,
		PRNumber: event.Number,
	}
	installationID := event.Installation.ID
	headSHA := event.PullRequest.Head.SHA

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if err := summarizePR(ctx, input, installationID, headSHA); err != nil {
			logger.Error("summary run failed", "error", err, "pr", input.PRNumber)
		}
	}()
}

// summarizePR runs one full reconcile pass for a pull request and records the
// outcome.
func summarizePR(ctx context.Context, input *summary.Input, installationID int64, headSHA string) error {
	client, err := github.NewAppClient(appID, installationID, privateKey)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	cfg, err := config.NewLoader(client).Load(ctx, input.Owner, input.Repo, headSHA)
	if err != nil {
		logger.Warn("falling back to default config", "error", err)
		cfg = config.DefaultConfig()
	}
	if !cfg.Enabled {
		logger.Info("summarizer disabled for repository", "owner", input.Owner, "repo", input.Repo)
		return nil
	}

	model := cfg.Model
	if modelEnv != "" {
		model = modelEnv
	}
	completions := anthropic.NewClient(claudeAPIKey, model)

	summarizer := summary.NewSummarizer(completions, logger)
	reconciler := summary.NewReconciler(client, summarizer, logger)
	reconciler.SetExcludeFunc(cfg.ShouldExcludeFile)
	if cfg.MaxFiles > 0 {
		reconciler.SetMaxNewSummaries(cfg.MaxFiles)
	}

	result, runErr := reconciler.Reconcile(ctx, input)
	if result == nil {
		return runErr
	}

	if cfg.IsWalkthroughEnabled() {
		walkthrough := summary.NewWalkthrough(client, completions, logger)
		if err := walkthrough.Publish(ctx, input, result.Summaries); err != nil {
			logger.Warn("failed to publish walkthrough", "error", err)
		}
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
		Usage:           summarizer.Usage(),
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
	}
	if err := pgStorage.StoreRun(ctx, record); err != nil {
		logger.Error("failed to store run record", "error", err)
	}

	return runErr
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
