// Package qdrant wraps the Qdrant HTTP API with just the surface the
// retrieval pipeline needs: search, scroll and collection inspection.
package qdrant

import (
	"fmt"
	"strings"
	"time"
)

// Config holds connection settings for a Qdrant instance.
type Config struct {
	// URL is the base HTTP URL, e.g. http://localhost:6333.
	URL string
	// APIKey is sent as the api-key header when set.
	APIKey string
	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// DefaultConfig returns settings for a local Qdrant.
func DefaultConfig() *Config {
	return &Config{
		URL:     "http://localhost:6333",
		Timeout: 10 * time.Second,
	}
}

// Validate checks the config for obvious mistakes.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("qdrant URL is required")
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("qdrant URL must start with http:// or https://")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("qdrant timeout must be positive")
	}
	return nil
}

// baseURL returns the URL without a trailing slash.
func (c *Config) baseURL() string {
	return strings.TrimSuffix(c.URL, "/")
}

// SearchOptions tunes a similarity search.
type SearchOptions struct {
	Limit          int
	ScoreThreshold float32
	WithPayload    bool
	Filter         map[string]interface{}
}

// DefaultSearchOptions returns sensible search defaults.
func DefaultSearchOptions() *SearchOptions {
	return &SearchOptions{
		Limit:       10,
		WithPayload: true,
	}
}
