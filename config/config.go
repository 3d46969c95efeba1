// Package config handles loading and parsing repository configuration.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dirtycajunrice/ai-commit-summary/github"
)

// DefaultConfigPath is the default path for the summarizer config file.
const DefaultConfigPath = ".github/ai-commit-summary.yml"

// ConfigParseError indicates a configuration file exists but contains invalid content.
// This is distinct from "file not found" errors, which should use default config.
type ConfigParseError struct {
	Path string
	Err  error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("invalid config at %s: %v", e.Path, e.Err)
}

func (e *ConfigParseError) Unwrap() error {
	return e.Err
}

// Config represents the repository configuration for the summarizer.
type Config struct {
	// Enabled determines if the summarizer is enabled for this repository.
	Enabled bool `yaml:"enabled"`
	// Exclude is a list of glob patterns for files to skip.
	// Example: ["vendor/**", "*.gen.go", "docs/**"]
	Exclude []string `yaml:"exclude"`
	// MaxFiles caps how many fresh summaries are generated per run.
	// Zero selects the built-in default.
	MaxFiles int `yaml:"max_files"`
	// Model overrides the completion model used for summaries.
	Model string `yaml:"model"`
	// Walkthrough controls whether the PR-level overview comment is posted.
	// If nil, defaults to true.
	Walkthrough *bool `yaml:"walkthrough,omitempty"`
}

// IsWalkthroughEnabled returns true if the overview comment is enabled.
// Defaults to true if not explicitly set.
func (c *Config) IsWalkthroughEnabled() bool {
	if c.Walkthrough == nil {
		return true
	}
	return *c.Walkthrough
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
	}
}

// Loader loads configuration from repositories.
type Loader struct {
	client *github.Client
}

// NewLoader creates a new config loader.
func NewLoader(client *github.Client) *Loader {
	return &Loader{client: client}
}

// Load fetches and parses the config from a repository.
// If the config file doesn't exist, returns the default config.
// If the config file exists but is invalid, returns a ConfigParseError.
func (l *Loader) Load(ctx context.Context, owner, repo, ref string) (*Config, error) {
	content, err := l.client.FetchFileContent(ctx, owner, repo, DefaultConfigPath, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch config: %w", err)
	}

	if content == "" {
		return DefaultConfig(), nil
	}

	config, err := Parse([]byte(content))
	if err != nil {
		// Wrap parse errors so callers can distinguish from fetch errors
		return nil, &ConfigParseError{Path: DefaultConfigPath, Err: err}
	}

	return config, nil
}

// Parse parses a config from YAML content.
func Parse(content []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(content, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.MaxFiles < 0 {
		return fmt.Errorf("max_files must not be negative: %d", c.MaxFiles)
	}
	return nil
}

// ShouldExcludeFile returns true if the file path matches any exclude pattern.
func (c *Config) ShouldExcludeFile(path string) bool {
	for _, pattern := range c.Exclude {
		// Handle ** patterns by checking if any path segment matches
		if strings.Contains(pattern, "**") {
			// Convert ** pattern to check directory prefix
			prefix := strings.Split(pattern, "**")[0]
			if prefix != "" && strings.HasPrefix(path, prefix) {
				// Check suffix if present
				suffix := strings.Split(pattern, "**")[1]
				if suffix == "" || strings.HasSuffix(path, strings.TrimPrefix(suffix, "/")) {
					return true
				}
			}
			// Also try matching without ** (e.g., "vendor/**" matches "vendor/foo.go")
			if prefix != "" && strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")) {
				return true
			}
		}

		// Standard glob matching
		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}

		// Also try matching just the filename for patterns like "*.gen.go"
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}
	return false
}
