// internal/docverify/reflection/config.go
package reflection

import "time"

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
	MaxTokens   int
	Temperature float32
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     60 * time.Second,
		MaxAttempts: 3,
		MaxTokens:   1000,
		Temperature: 0,
	}
}
