// Package postgres provides a PostgreSQL implementation of the storage interface.
// This is intended for self-hosted deployments.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dirtycajunrice/ai-commit-summary/storage"
)

// PostgreSQL provides storage operations using PostgreSQL.
type PostgreSQL struct {
	db *sql.DB
}

// New creates a new PostgreSQL storage instance.
func New(db *sql.DB) *PostgreSQL {
	return &PostgreSQL{db: db}
}

// NewFromDSN creates a new PostgreSQL storage instance from a connection string.
func NewFromDSN(dsn string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PostgreSQL{db: db}, nil
}

// Close closes the database connection.
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

// Migrate creates the required database tables.
func (p *PostgreSQL) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS summary_runs (
			id SERIAL PRIMARY KEY,
			owner TEXT NOT NULL,
			repo TEXT NOT NULL,
			pr_number INTEGER NOT NULL,
			head_sha TEXT NOT NULL,
			files_changed INTEGER NOT NULL DEFAULT 0,
			comments_created INTEGER NOT NULL DEFAULT 0,
			comments_reused INTEGER NOT NULL DEFAULT 0,
			comments_deleted INTEGER NOT NULL DEFAULT 0,
			summaries JSONB,
			usage JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_summary_runs_pr ON summary_runs(owner, repo, pr_number);
	`

	_, err := p.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// StoreRun stores a run record in PostgreSQL.
func (p *PostgreSQL) StoreRun(ctx context.Context, run *storage.RunRecord) error {
	query := `
		INSERT INTO summary_runs (owner, repo, pr_number, head_sha, files_changed, comments_created, comments_reused, comments_deleted, summaries, usage, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`

	_, err := p.db.ExecContext(ctx, query,
		run.Owner,
		run.Repo,
		run.PRNumber,
		run.HeadSHA,
		run.FilesChanged,
		run.CommentsCreated,
		run.CommentsReused,
		run.CommentsDeleted,
		summariesToJSON(run.Summaries),
		usageToJSON(run.Usage),
	)
	if err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}

	return nil
}

// ListRunsForPR retrieves all run records for a pull request, oldest first.
func (p *PostgreSQL) ListRunsForPR(ctx context.Context, owner, repo string, prNumber int) ([]*storage.RunRecord, error) {
	query := `
		SELECT owner, repo, pr_number, head_sha, files_changed, comments_created, comments_reused, comments_deleted, summaries, usage, created_at
		FROM summary_runs
		WHERE owner = $1 AND repo = $2 AND pr_number = $3
		ORDER BY created_at ASC
	`

	rows, err := p.db.QueryContext(ctx, query, owner, repo, prNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*storage.RunRecord
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// LatestRunForPR retrieves the most recent run record for a pull request.
func (p *PostgreSQL) LatestRunForPR(ctx context.Context, owner, repo string, prNumber int) (*storage.RunRecord, error) {
	query := `
		SELECT owner, repo, pr_number, head_sha, files_changed, comments_created, comments_reused, comments_deleted, summaries, usage, created_at
		FROM summary_runs
		WHERE owner = $1 AND repo = $2 AND pr_number = $3
		ORDER BY created_at DESC
		LIMIT 1
	`

	run, err := scanRun(p.db.QueryRowContext(ctx, query, owner, repo, prNumber).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return run, nil
}

// scanRun reads one summary_runs row via the given scan function.
func scanRun(scan func(dest ...any) error) (*storage.RunRecord, error) {
	var run storage.RunRecord
	var summariesJSON, usageJSON sql.NullString
	var createdAt time.Time

	err := scan(
		&run.Owner,
		&run.Repo,
		&run.PRNumber,
		&run.HeadSHA,
		&run.FilesChanged,
		&run.CommentsCreated,
		&run.CommentsReused,
		&run.CommentsDeleted,
		&summariesJSON,
		&usageJSON,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Summaries = summariesFromJSON(summariesJSON.String)
	run.Usage = usageFromJSON(usageJSON.String)
	run.CreatedAt = createdAt.Format(time.RFC3339)

	return &run, nil
}

// Verify PostgreSQL implements Storage at compile time.
var _ storage.Storage = (*PostgreSQL)(nil)
