package summary

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// CommentMarker prefixes every bot-authored review comment. Comments not
	// starting with it are never touched.
	CommentMarker = "GPT summary of"

	// NoneSHA is the sentinel origin identifier for files absent from the
	// base tree (new files).
	NoneSHA = "None"

	// shortSHALen is the display length of blob identifiers in comment titles.
	shortSHALen = 6
)

// shaLinkRegexp matches the markdown-link form of a blob identifier in a
// comment title, e.g. "[abc123](https://github.com/o/r/blob/head/f.go#abc123...)"
// or "[None](...#None)". The fragment carries the full identifier.
var shaLinkRegexp = regexp.MustCompile(`\[(?:[0-9a-f]{6}|None)\]\([^)\s]*#([0-9a-f]{40}|None)\)`)

// NormalizeCommentBody strips blob-link markup from a comment body down to the
// raw identifiers it encodes, so that comments posted with older link hosts or
// formats still match on content identity.
func NormalizeCommentBody(body string) string {
	return shaLinkRegexp.ReplaceAllString(body, "$1")
}

// shortSHA returns the display prefix of a blob identifier. The None sentinel
// is kept whole.
func shortSHA(sha string) string {
	if sha == NoneSHA || len(sha) <= shortSHALen {
		return sha
	}
	return sha[:shortSHALen]
}

// ExpectedTitle returns the plain-text title that identifies a file's current
// version-transition. A normalized bot comment is current for the file iff it
// contains this string.
func ExpectedTitle(f *ModifiedFile) string {
	return fmt.Sprintf("%s %s - %s:", CommentMarker, f.OriginSHA, f.SHA)
}

// CommentTitle renders the first line of a new summary comment, embedding both
// identifiers as links to the respective blob views.
func CommentTitle(owner, repo, baseSHA, headSHA string, f *ModifiedFile) string {
	return fmt.Sprintf("%s [%s](https://github.com/%s/%s/blob/%s/%s#%s) - [%s](https://github.com/%s/%s/blob/%s/%s#%s):",
		CommentMarker,
		shortSHA(f.OriginSHA), owner, repo, baseSHA, f.Filename, f.OriginSHA,
		shortSHA(f.SHA), owner, repo, headSHA, f.Filename, f.SHA,
	)
}

// BodyWithoutTitle strips the first line (the title) from a comment body.
func BodyWithoutTitle(body string) string {
	if i := strings.Index(body, "\n"); i >= 0 {
		return body[i+1:]
	}
	return ""
}

// IsBotComment reports whether a comment body was authored by this system.
func IsBotComment(body string) bool {
	return strings.HasPrefix(body, CommentMarker)
}
