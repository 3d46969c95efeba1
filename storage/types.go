package storage

// TokenUsage represents completion API token usage for one or more calls.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add accumulates usage from another call.
func (u *TokenUsage) Add(other *TokenUsage) {
	if other == nil {
		return
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// FileSummary records one file's summary produced during a run.
type FileSummary struct {
	Path      string `json:"path"`
	OriginSHA string `json:"origin_sha"`
	SHA       string `json:"sha"`
	Summary   string `json:"summary"`
}

// RunRecord represents the stored outcome of a single reconciliation run.
type RunRecord struct {
	Owner           string        `json:"owner"`
	Repo            string        `json:"repo"`
	PRNumber        int           `json:"pr_number"`
	HeadSHA         string        `json:"head_sha"`
	FilesChanged    int           `json:"files_changed"`
	CommentsCreated int           `json:"comments_created"`
	CommentsReused  int           `json:"comments_reused"`
	CommentsDeleted int           `json:"comments_deleted"`
	Summaries       []FileSummary `json:"summaries"`
	Usage           *TokenUsage   `json:"usage,omitempty"`
	CreatedAt       string        `json:"created_at"`
}
