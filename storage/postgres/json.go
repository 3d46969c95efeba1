package postgres

import (
	"encoding/json"

	"github.com/dirtycajunrice/ai-commit-summary/storage"
)

// summariesToJSON converts file summaries to a JSON string for storage.
func summariesToJSON(summaries []storage.FileSummary) string {
	if len(summaries) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(summaries)
	return string(b)
}

// summariesFromJSON parses a JSON string into file summaries.
func summariesFromJSON(s string) []storage.FileSummary {
	if s == "" || s == "null" {
		return nil
	}
	var summaries []storage.FileSummary
	if err := json.Unmarshal([]byte(s), &summaries); err != nil {
		return nil
	}
	return summaries
}

// usageToJSON converts token usage to a JSON string for storage.
func usageToJSON(usage *storage.TokenUsage) string {
	if usage == nil {
		return "null"
	}
	b, _ := json.Marshal(usage)
	return string(b)
}

// usageFromJSON parses a JSON string into token usage.
func usageFromJSON(s string) *storage.TokenUsage {
	if s == "" || s == "null" {
		return nil
	}
	var usage storage.TokenUsage
	if err := json.Unmarshal([]byte(s), &usage); err != nil {
		return nil
	}
	return &usage
}
