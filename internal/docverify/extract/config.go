// internal/docverify/extract/config.go
package extract

import "time"

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	MaxTokens   int
	Temperature float32
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     90 * time.Second,
		MaxRetries:  3,
		MaxTokens:   1500,
		Temperature: 0.7,
	}
}
