// Package summary implements diff summarization and the comment
// reconciliation that keeps posted summaries in sync with a pull request.
package summary

import (
	"fmt"
	"sort"
	"strings"
)

const fileSystemPrompt = `You are an expert programmer summarizing a code diff.
You are given the name of a changed file and its unified diff. Lines starting
with "+" were added, lines starting with "-" were removed, other lines are
context and are shown only for reference.

Reply with a summary of the change under a SUMMARY: heading, as a bullet list.
Each bullet starts with "*" and describes one meaningful aspect of the change.
Do not repeat the file name. Do not describe unchanged context lines. Keep the
whole summary under 100 words.

Example:

SUMMARY:
* Added an optional timeout to the request handler
* Renamed the retry counter for clarity`

const filePromptTemplate = "THE GIT DIFF OF %s TO BE SUMMARIZED:\n```\n%s\n```\n"

// BuildFilePrompt constructs the user prompt for summarizing one file's diff.
func BuildFilePrompt(filename, diff string) string {
	return fmt.Sprintf(filePromptTemplate, filename, diff)
}

const walkthroughSystemPrompt = `You are an expert programmer writing a pull
request walkthrough. You are given per-file change summaries and the commit
messages of the pull request. Write a short high-level description of what the
pull request does as a whole, 2-4 sentences, followed by a bullet list of the
most important changes. Do not list every file. Do not invent changes that are
not in the input.`

// BuildWalkthroughPrompt constructs the user prompt for the PR-level
// walkthrough from the per-file summary map and the PR's commit messages.
func BuildWalkthroughPrompt(summaries map[string]string, commitMessages []string) string {
	var b strings.Builder

	b.WriteString("PER-FILE SUMMARIES:\n")
	files := make([]string, 0, len(summaries))
	for f := range summaries {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		fmt.Fprintf(&b, "### %s\n%s\n", f, summaries[f])
	}

	if len(commitMessages) > 0 {
		b.WriteString("\nCOMMIT MESSAGES:\n")
		for _, m := range commitMessages {
			// First line only; bodies are frequently boilerplate.
			if i := strings.Index(m, "\n"); i >= 0 {
				m = m[:i]
			}
			fmt.Fprintf(&b, "* %s\n", m)
		}
	}

	return b.String()
}
