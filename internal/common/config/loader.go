// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	// Load .env from multiple possible locations
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like OPENSEARCH_ENDPOINT
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// 1. Load base config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// 2. Load env-specific config
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	// 3. Expand env placeholders
	expandEnvVars(viper.GetViper())

	// 4. Unmarshal final config
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	// 5. Direct override if still empty
	overrideEmptyConfig(&cfg)

	// Env overrides may have filled URL or Addresses, so bridge again
	syncOpenSearchEndpoints(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from multiple possible locations
func loadEnvFile() {
	// Try multiple paths (for running from different directories)
	possiblePaths := []string{
		".env",          // Current directory
		"../.env",       // Parent directory
		"../../.env",    // Two levels up
		"../../../.env", // Three levels up
	}

	// Also try to find project root by looking for go.mod
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				fmt.Printf("✅ Loaded .env from: %s\n", path)
				return
			}
		}
	}

	fmt.Printf("⚠️  .env file not found in any location, using system environment variables\n")
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Walk up directories looking for go.mod
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return ""
}

// Improved environment variable expansion
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		// Only process string values
		if strVal, ok := val.(string); ok {
			// Check if it contains environment variable pattern
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	// Reasoning model gateway (LiteLLM-compatible)
	if cfg.APIs.Reasoning.APIKey == "" {
		if val := os.Getenv("LITELLM_API_KEY"); val != "" {
			cfg.APIs.Reasoning.APIKey = val
		} else if val := os.Getenv("OPENAI_API_KEY"); val != "" {
			cfg.APIs.Reasoning.APIKey = val
		}
	}
	if cfg.APIs.Reasoning.BaseURL == "" {
		if val := os.Getenv("LITELLM_BASE_URL"); val != "" {
			cfg.APIs.Reasoning.BaseURL = val
		} else if val := os.Getenv("OPENAI_BASE_URL"); val != "" {
			cfg.APIs.Reasoning.BaseURL = val
		}
	}
	if cfg.APIs.Reasoning.Model == "" {
		if val := os.Getenv("REASONING_MODEL"); val != "" {
			cfg.APIs.Reasoning.Model = val
		}
	}

	// Vision model shares the reasoning gateway unless configured otherwise
	if cfg.APIs.Vision.APIKey == "" {
		cfg.APIs.Vision.APIKey = cfg.APIs.Reasoning.APIKey
	}
	if cfg.APIs.Vision.BaseURL == "" {
		cfg.APIs.Vision.BaseURL = cfg.APIs.Reasoning.BaseURL
	}

	// Embedding endpoint
	if cfg.APIs.Embedding.APIKey == "" {
		if val := os.Getenv("EMBEDDING_API_KEY"); val != "" {
			cfg.APIs.Embedding.APIKey = val
		} else {
			cfg.APIs.Embedding.APIKey = cfg.APIs.Reasoning.APIKey
		}
	}
	if cfg.APIs.Embedding.BaseURL == "" {
		if val := os.Getenv("EMBEDDING_BASE_URL"); val != "" {
			cfg.APIs.Embedding.BaseURL = val
		}
	}
	if cfg.APIs.Embedding.Model == "" {
		if val := os.Getenv("EMBEDDING_MODEL"); val != "" {
			cfg.APIs.Embedding.Model = val
		}
	}

	// Web search (Tavily)
	if cfg.APIs.WebSearch.APIKey == "" {
		if val := os.Getenv("TAVILY_API_KEY"); val != "" {
			cfg.APIs.WebSearch.APIKey = val
		}
	}

	// Database overrides
	if cfg.Database.OpenSearch.URL == "" {
		if val := os.Getenv("OPENSEARCH_ENDPOINT"); val != "" {
			cfg.Database.OpenSearch.URL = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile() // Load env file first

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Expand environment variables before unmarshal
	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)
	syncOpenSearchEndpoints(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}

	// Model API defaults
	if cfg.APIs.Reasoning.Timeout == 0 {
		cfg.APIs.Reasoning.Timeout = 60000
	}
	if cfg.APIs.Vision.Timeout == 0 {
		cfg.APIs.Vision.Timeout = 90000
	}
	if cfg.APIs.Embedding.Timeout == 0 {
		cfg.APIs.Embedding.Timeout = 30000
	}
	if cfg.APIs.WebSearch.Timeout == 0 {
		cfg.APIs.WebSearch.Timeout = 30000
	}
	if cfg.APIs.WebSearch.BaseURL == "" {
		cfg.APIs.WebSearch.BaseURL = "https://api.tavily.com"
	}
	if cfg.APIs.WebSearch.SearchDepth == "" {
		cfg.APIs.WebSearch.SearchDepth = "basic"
	}
	if cfg.APIs.WebSearch.MaxResults == 0 {
		cfg.APIs.WebSearch.MaxResults = 5
	}

	// Pipeline defaults
	if cfg.Pipeline.ApprovalThreshold == 0 {
		cfg.Pipeline.ApprovalThreshold = 0.75
	}
	if cfg.Pipeline.ReflectionAttempts == 0 {
		cfg.Pipeline.ReflectionAttempts = 3
	}
	if cfg.Pipeline.ExtractionRetries == 0 {
		cfg.Pipeline.ExtractionRetries = 3
	}
	if cfg.Pipeline.MaxTokens == 0 {
		cfg.Pipeline.MaxTokens = 1500
	}
	if cfg.Pipeline.Temperature == 0 {
		cfg.Pipeline.Temperature = 0.7
	}
	if cfg.Pipeline.DocumentIndex == "" {
		cfg.Pipeline.DocumentIndex = "verification-documents"
	}
	if cfg.Pipeline.MaxSteps == 0 {
		cfg.Pipeline.MaxSteps = 20
	}

	// Knowledge base defaults
	if cfg.Knowledge.Dir == "" {
		cfg.Knowledge.Dir = "knowledge"
	}
	if cfg.Knowledge.IndexName == "" {
		cfg.Knowledge.IndexName = "knowledge-embeddings"
	}
	if cfg.Knowledge.TopK == 0 {
		cfg.Knowledge.TopK = 5
	}
	if cfg.Knowledge.Dimension == 0 {
		cfg.Knowledge.Dimension = 384
	}
	if cfg.Knowledge.MinRelevance == 0 {
		cfg.Knowledge.MinRelevance = 0.5
	}
	if cfg.Knowledge.CacheTTL == 0 {
		cfg.Knowledge.CacheTTL = 3600
	}
	if cfg.Knowledge.MaxQueryLength == 0 {
		cfg.Knowledge.MaxQueryLength = 1000
	}
	if cfg.Knowledge.MaxAnswerLength == 0 {
		cfg.Knowledge.MaxAnswerLength = 4000
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// OpenSearch URL fallback
	syncOpenSearchEndpoints(cfg)

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// syncOpenSearchEndpoints keeps URL and Addresses interchangeable: either
// one populates the other. Runs after defaults and again after env
// overrides, since OPENSEARCH_ENDPOINT may fill URL late.
func syncOpenSearchEndpoints(cfg *Config) {
	if cfg.Database.OpenSearch.URL == "" && len(cfg.Database.OpenSearch.Addresses) > 0 {
		cfg.Database.OpenSearch.URL = cfg.Database.OpenSearch.Addresses[0]
	}
	if len(cfg.Database.OpenSearch.Addresses) == 0 && cfg.Database.OpenSearch.URL != "" {
		cfg.Database.OpenSearch.Addresses = []string{cfg.Database.OpenSearch.URL}
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.APIs.Reasoning.APIKey == "" {
		return fmt.Errorf("apis.reasoning.api_key is required")
	}

	if len(cfg.Database.OpenSearch.Addresses) == 0 && cfg.Database.OpenSearch.URL == "" {
		return fmt.Errorf("database.opensearch.addresses or url is required")
	}

	if cfg.Knowledge.Dimension <= 0 {
		return fmt.Errorf("knowledge.dimension must be positive")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
