package summary

import (
	"regexp"
	"strconv"
	"strings"
)

// ModifiedFile is one entry per file changed in the pull request.
type ModifiedFile struct {
	// Filename is the path of the file, unique within a run.
	Filename string
	// SHA is the blob identifier of the file's head-side version.
	SHA string
	// OriginSHA is the blob identifier the file had in the base tree, or
	// NoneSHA for files that did not exist there.
	OriginSHA string
	// Diff is the unified-diff text for this file. Empty means binary.
	Diff string
	// Position is the new-file line at which the first inserted hunk begins,
	// or 0 when the diff has no insertions or cannot be parsed.
	Position int
}

// hunkHeaderRegexp matches unified diff hunk headers like "@@ -10,5 +15,7 @@"
var hunkHeaderRegexp = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// lfsPointerMarker appears in diffs of Git LFS pointer files, which carry no
// summarizable content.
const lfsPointerMarker = "version https://git-lfs.github.com/spec/v1"

// FirstInsertedLine parses a file's unified diff and returns the new-file line
// at which the first hunk containing an inserted line begins. Returns 0 when
// the diff has no insertions or no parseable hunk header.
func FirstInsertedLine(diff string) int {
	hunkStart := 0
	for _, line := range strings.Split(diff, "\n") {
		if matches := hunkHeaderRegexp.FindStringSubmatch(line); matches != nil {
			start, err := strconv.Atoi(matches[1])
			if err != nil {
				continue
			}
			hunkStart = start
			continue
		}
		if hunkStart == 0 {
			continue
		}
		if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
			return hunkStart
		}
	}
	return 0
}

// IsLFSPointer reports whether a diff modifies a Git LFS pointer file.
func IsLFSPointer(diff string) bool {
	return strings.Contains(diff, lfsPointerMarker)
}

// CommentPlacement returns the anchor line and side for a file's summary
// comment. The line is the parsed first-insertion position when positive,
// else 1. The side is RIGHT (new-file side) when the position is positive or
// the file is new, else LEFT.
func CommentPlacement(f *ModifiedFile) (line int, side string) {
	line = 1
	if f.Position > 0 {
		line = f.Position
	}
	side = "LEFT"
	if f.Position > 0 || f.OriginSHA == NoneSHA {
		side = "RIGHT"
	}
	return line, side
}
