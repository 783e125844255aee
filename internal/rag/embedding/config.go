// internal/rag/embedding/config.go
package embedding

import "time"

// Config holds connection settings for the embedding endpoint.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// applyDefaults fills zero values with working defaults.
func (c *Config) applyDefaults() {
	if c.Dimension <= 0 {
		c.Dimension = 384
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}
