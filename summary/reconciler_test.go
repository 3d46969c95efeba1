package summary

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/dirtycajunrice/ai-commit-summary/github"
)

// fakePullRequestAPI is an in-memory PullRequestAPI for reconciler tests.
type fakePullRequestAPI struct {
	mu sync.Mutex

	pr       *github.PullRequest
	files    []github.PullRequestFile
	tree     *github.Tree
	comments []github.PullRequestComment

	created   []*github.ReviewCommentRequest
	deleted   []int64
	createErr error

	nextID int64
}

func (f *fakePullRequestAPI) GetPullRequest(context.Context, string, string, int) (*github.PullRequest, error) {
	return f.pr, nil
}

func (f *fakePullRequestAPI) ListPullRequestFiles(context.Context, string, string, int) ([]github.PullRequestFile, error) {
	return f.files, nil
}

func (f *fakePullRequestAPI) GetTree(context.Context, string, string, string, bool) (*github.Tree, error) {
	if f.tree == nil {
		return &github.Tree{}, nil
	}
	return f.tree, nil
}

func (f *fakePullRequestAPI) ListReviewComments(context.Context, string, string, int) ([]github.PullRequestComment, error) {
	return f.comments, nil
}

func (f *fakePullRequestAPI) CreateReviewComment(_ context.Context, _, _ string, _ int, comment *github.ReviewCommentRequest) (*github.PullRequestComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, comment)
	f.nextID++
	return &github.PullRequestComment{ID: f.nextID, Body: comment.Body}, nil
}

func (f *fakePullRequestAPI) DeleteReviewComment(_ context.Context, _, _ string, commentID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, commentID)
	return nil
}

func newTestPR(baseSHA, headSHA string) *github.PullRequest {
	return &github.PullRequest{
		Number: 7,
		Base:   &github.Ref{SHA: baseSHA},
		Head:   &github.Ref{SHA: headSHA},
	}
}

func testInput() *Input {
	return &Input{Owner: "octo", Repo: "hello", PRNumber: 7}
}

func sha40(c byte) string {
	return strings.Repeat(string(c), 40)
}

func TestReconcileCreatesSummaries(t *testing.T) {
	gh := &fakePullRequestAPI{
		pr: newTestPR(sha40('0'), sha40('1')),
		files: []github.PullRequestFile{
			{Filename: "a.go", SHA: sha40('a'), Patch: "@@ -1,2 +3,4 @@\n context\n+added"},
			{Filename: "b.go", SHA: sha40('b'), Patch: "@@ -1 +1,2 @@\n+new line"},
		},
		tree: &github.Tree{Tree: []github.TreeEntry{
			{Path: "a.go", Type: "blob", SHA: sha40('c')},
		}},
	}
	r := NewReconciler(gh, NewSummarizer(&fakeCompletions{text: "* did things"}, testLogger()), testLogger())

	result, err := r.Reconcile(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if result.Created != 2 || result.Reused != 0 || result.Deleted != 0 {
		t.Errorf("counts = created %d reused %d deleted %d, want 2/0/0",
			result.Created, result.Reused, result.Deleted)
	}
	if len(gh.created) != 2 {
		t.Fatalf("created %d comments, want 2", len(gh.created))
	}

	// a.go exists in the base tree, b.go is new.
	first := gh.created[0]
	if first.Path != "a.go" || first.Line != 3 || first.Side != "RIGHT" {
		t.Errorf("first comment = %+v, want a.go line 3 RIGHT", first)
	}
	if !strings.Contains(first.Body, "#"+sha40('c')+")") {
		t.Errorf("first comment should link the base tree blob, got %q", first.Body)
	}
	second := gh.created[1]
	if !strings.Contains(second.Body, "[None](") {
		t.Errorf("new file comment should carry the None origin, got %q", second.Body)
	}
	if got := result.Summaries["a.go"]; got != "* did things" {
		t.Errorf("Summaries[a.go] = %q, want the generated text", got)
	}
}

func TestReconcileReusesCurrentComment(t *testing.T) {
	file := github.PullRequestFile{Filename: "a.go", SHA: sha40('a'), Patch: "@@ -1 +1,2 @@\n+x"}
	origin := sha40('c')

	currentBody := fmt.Sprintf(
		"%s [%s](https://github.com/octo/hello/blob/%s/a.go#%s) - [%s](https://github.com/octo/hello/blob/%s/a.go#%s):\n* existing summary",
		CommentMarker, origin[:6], sha40('0'), origin, file.SHA[:6], sha40('1'), file.SHA,
	)

	gh := &fakePullRequestAPI{
		pr:    newTestPR(sha40('0'), sha40('1')),
		files: []github.PullRequestFile{file},
		tree: &github.Tree{Tree: []github.TreeEntry{
			{Path: "a.go", Type: "blob", SHA: origin},
		}},
		comments: []github.PullRequestComment{
			{ID: 11, Body: currentBody},
		},
	}
	completions := &fakeCompletions{text: "should not be called"}
	r := NewReconciler(gh, NewSummarizer(completions, testLogger()), testLogger())

	result, err := r.Reconcile(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if completions.calls != 0 {
		t.Errorf("completion calls = %d, want 0 when the comment is current", completions.calls)
	}
	if result.Reused != 1 || result.Created != 0 || result.Deleted != 0 {
		t.Errorf("counts = created %d reused %d deleted %d, want 0/1/0",
			result.Created, result.Reused, result.Deleted)
	}
	if got := result.Summaries["a.go"]; got != "* existing summary" {
		t.Errorf("Summaries[a.go] = %q, want the reused body without its title", got)
	}
	if len(gh.deleted) != 0 {
		t.Errorf("deleted %d comments, want 0", len(gh.deleted))
	}
}

func TestReconcileDeletesStaleComments(t *testing.T) {
	file := github.PullRequestFile{Filename: "a.go", SHA: sha40('a'), Patch: "@@ -1 +1,2 @@\n+x"}
	staleBody := fmt.Sprintf("%s %s - %s:\n* outdated", CommentMarker, sha40('d'), sha40('e'))
	humanBody := "please rename this variable"

	gh := &fakePullRequestAPI{
		pr:    newTestPR(sha40('0'), sha40('1')),
		files: []github.PullRequestFile{file},
		comments: []github.PullRequestComment{
			{ID: 21, Body: staleBody},
			{ID: 22, Body: humanBody},
		},
	}
	r := NewReconciler(gh, NewSummarizer(&fakeCompletions{text: "* fresh"}, testLogger()), testLogger())

	result, err := r.Reconcile(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if len(gh.deleted) != 1 || gh.deleted[0] != 21 {
		t.Errorf("deleted = %v, want exactly [21]", gh.deleted)
	}
	if result.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", result.Deleted)
	}
	if result.Created != 1 {
		t.Errorf("Created = %d, want a fresh summary for the stale file", result.Created)
	}
}

func TestReconcileSkipRules(t *testing.T) {
	lfsDiff := "@@ -0,0 +1,3 @@\n+version https://git-lfs.github.com/spec/v1\n+oid sha256:ff\n+size 9"

	gh := &fakePullRequestAPI{
		pr: newTestPR(sha40('0'), sha40('1')),
		files: []github.PullRequestFile{
			{Filename: "image.png", SHA: sha40('a'), Patch: ""},
			{Filename: "model.bin", SHA: sha40('b'), Patch: lfsDiff},
			{Filename: "vendor/dep.go", SHA: sha40('c'), Patch: "@@ -1 +1,2 @@\n+x"},
			{Filename: "main.go", SHA: sha40('d'), Patch: "@@ -1 +1,2 @@\n+x"},
		},
	}
	r := NewReconciler(gh, NewSummarizer(&fakeCompletions{text: "* ok"}, testLogger()), testLogger())
	r.SetExcludeFunc(func(path string) bool { return strings.HasPrefix(path, "vendor/") })

	result, err := r.Reconcile(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if len(result.Summaries) != 1 {
		t.Fatalf("Summaries = %v, want only main.go", result.Summaries)
	}
	if _, ok := result.Summaries["main.go"]; !ok {
		t.Error("main.go should be summarized")
	}
	if result.Created != 1 {
		t.Errorf("Created = %d, want 1", result.Created)
	}
}

func TestReconcileCapsNewSummaries(t *testing.T) {
	var files []github.PullRequestFile
	for i := 0; i < 5; i++ {
		files = append(files, github.PullRequestFile{
			Filename: fmt.Sprintf("f%d.go", i),
			SHA:      sha40('a'),
			Patch:    "@@ -1 +1,2 @@\n+x",
		})
	}

	gh := &fakePullRequestAPI{pr: newTestPR(sha40('0'), sha40('1')), files: files}
	completions := &fakeCompletions{text: "* ok"}
	r := NewReconciler(gh, NewSummarizer(completions, testLogger()), testLogger())
	r.SetMaxNewSummaries(2)

	result, err := r.Reconcile(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if result.Created != 2 {
		t.Errorf("Created = %d, want cap of 2", result.Created)
	}
	if completions.calls != 2 {
		t.Errorf("completion calls = %d, want 2", completions.calls)
	}
	if len(result.Summaries) != 2 {
		t.Errorf("Summaries = %d entries, want 2", len(result.Summaries))
	}
}

func TestReconcileReuseDoesNotCountTowardCap(t *testing.T) {
	origin := NoneSHA
	reusedBody := fmt.Sprintf("%s %s - %s:\n* kept", CommentMarker, origin, sha40('a'))

	gh := &fakePullRequestAPI{
		pr: newTestPR(sha40('0'), sha40('1')),
		files: []github.PullRequestFile{
			{Filename: "kept.go", SHA: sha40('a'), Patch: "@@ -1 +1,2 @@\n+x"},
			{Filename: "fresh.go", SHA: sha40('b'), Patch: "@@ -1 +1,2 @@\n+y"},
		},
		comments: []github.PullRequestComment{{ID: 31, Body: reusedBody}},
	}
	r := NewReconciler(gh, NewSummarizer(&fakeCompletions{text: "* new"}, testLogger()), testLogger())
	r.SetMaxNewSummaries(1)

	result, err := r.Reconcile(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if result.Reused != 1 || result.Created != 1 {
		t.Errorf("counts = created %d reused %d, want 1/1: reuse must not consume the cap",
			result.Created, result.Reused)
	}
}

func TestReconcileCreateFailureReturnsPartialResult(t *testing.T) {
	gh := &fakePullRequestAPI{
		pr: newTestPR(sha40('0'), sha40('1')),
		files: []github.PullRequestFile{
			{Filename: "a.go", SHA: sha40('a'), Patch: "@@ -1 +1,2 @@\n+x"},
		},
		createErr: fmt.Errorf("403 forbidden"),
	}
	r := NewReconciler(gh, NewSummarizer(&fakeCompletions{text: "* ok"}, testLogger()), testLogger())

	result, err := r.Reconcile(context.Background(), testInput())
	if err == nil {
		t.Fatal("Reconcile() should surface a comment creation failure")
	}
	if result == nil {
		t.Fatal("Reconcile() should return the partial result alongside the error")
	}
	if result.Summaries["a.go"] != "* ok" {
		t.Errorf("partial result should keep the generated summary, got %v", result.Summaries)
	}
	if result.Created != 0 {
		t.Errorf("Created = %d, want 0 after a failed creation", result.Created)
	}
}

func TestReconcileCompletionFailurePostsSentinel(t *testing.T) {
	gh := &fakePullRequestAPI{
		pr: newTestPR(sha40('0'), sha40('1')),
		files: []github.PullRequestFile{
			{Filename: "a.go", SHA: sha40('a'), Patch: "@@ -1 +1,2 @@\n+x"},
		},
	}
	r := NewReconciler(gh, NewSummarizer(&fakeCompletions{err: fmt.Errorf("timeout")}, testLogger()), testLogger())

	result, err := r.Reconcile(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Reconcile() error = %v, completion failures must not fail the run", err)
	}
	if result.Created != 1 {
		t.Errorf("Created = %d, want 1 sentinel comment", result.Created)
	}
	if !strings.HasSuffix(gh.created[0].Body, "\n"+Sentinel) {
		t.Errorf("comment body = %q, want it to end with the sentinel text", gh.created[0].Body)
	}
}
