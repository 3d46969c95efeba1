package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListReviewCommentsPagination(t *testing.T) {
	// Serve two pages: a full page of 100 comments then a short page of 3.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo/pulls/7/comments" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		page := r.URL.Query().Get("page")

		var comments []PullRequestComment
		switch page {
		case "1":
			for i := 0; i < 100; i++ {
				comments = append(comments, PullRequestComment{ID: int64(i + 1)})
			}
		case "2":
			for i := 0; i < 3; i++ {
				comments = append(comments, PullRequestComment{ID: int64(i + 101)})
			}
		default:
			t.Errorf("unexpected page: %s", page)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(comments)
	}))
	defer server.Close()

	client := newTestClient(server.Client(), server.URL)

	comments, err := client.ListReviewComments(context.Background(), "owner", "repo", 7)
	if err != nil {
		t.Fatalf("ListReviewComments() error = %v", err)
	}

	if len(comments) != 103 {
		t.Errorf("got %d comments, want 103", len(comments))
	}
	if comments[0].ID != 1 || comments[102].ID != 103 {
		t.Errorf("comments not in listing order: first=%d last=%d", comments[0].ID, comments[102].ID)
	}
}

func TestListPullRequestFilesSinglePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		files := []PullRequestFile{
			{Filename: "main.go", SHA: "abc", Patch: "@@ -1 +1 @@"},
			{Filename: "image.png", SHA: "def"},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(files)
	}))
	defer server.Close()

	client := newTestClient(server.Client(), server.URL)

	files, err := client.ListPullRequestFiles(context.Background(), "owner", "repo", 1)
	if err != nil {
		t.Fatalf("ListPullRequestFiles() error = %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	if files[1].Patch != "" {
		t.Errorf("binary file should have empty patch, got %q", files[1].Patch)
	}
}

func TestDeleteReviewComment(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "deleted", status: http.StatusNoContent, wantErr: false},
		{name: "not found", status: http.StatusNotFound, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodDelete {
					t.Errorf("method = %s, want DELETE", r.Method)
				}
				if r.URL.Path != "/repos/owner/repo/pulls/comments/55" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(server.Client(), server.URL)

			err := client.DeleteReviewComment(context.Background(), "owner", "repo", 55)
			if (err != nil) != tt.wantErr {
				t.Errorf("DeleteReviewComment() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateReviewComment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}

		var req ReviewCommentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Side != "RIGHT" || req.Line != 5 {
			t.Errorf("unexpected placement: side=%q line=%d", req.Side, req.Line)
		}

		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id": 9000, "path": %q, "body": %q}`, req.Path, req.Body)
	}))
	defer server.Close()

	client := newTestClient(server.Client(), server.URL)

	created, err := client.CreateReviewComment(context.Background(), "owner", "repo", 3, &ReviewCommentRequest{
		CommitID: "headsha",
		Path:     "main.go",
		Line:     5,
		Side:     "RIGHT",
		Body:     "summary text",
	})
	if err != nil {
		t.Fatalf("CreateReviewComment() error = %v", err)
	}
	if created.ID != 9000 {
		t.Errorf("ID = %d, want 9000", created.ID)
	}
}
