// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	APIs          APIsConfig         `mapstructure:"apis"`
	Pipeline      PipelineConfig     `mapstructure:"pipeline"`
	Knowledge     KnowledgeConfig    `mapstructure:"knowledge"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the host:port listen address for the REST server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
}

// OpenSearchConfig holds connection settings for the vector search cluster.
// The cluster speaks the Elasticsearch wire protocol.
type OpenSearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e OpenSearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// --- External API Config ---

// APIsConfig holds settings for the hosted model and search endpoints.
// Reasoning and embedding endpoints are configured separately because they
// typically live behind different gateways.
type APIsConfig struct {
	Reasoning ModelAPIConfig `mapstructure:"reasoning"`
	Vision    ModelAPIConfig `mapstructure:"vision"`
	Embedding ModelAPIConfig `mapstructure:"embedding"`

	WebSearch struct {
		BaseURL     string `mapstructure:"base_url"`
		APIKey      string `mapstructure:"api_key"`
		SearchDepth string `mapstructure:"search_depth"`
		MaxResults  int    `mapstructure:"max_results"`
		Timeout     int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"web_search"`
}

// ModelAPIConfig describes one OpenAI-compatible endpoint.
type ModelAPIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// --- Document Verification Pipeline Config ---

type PipelineConfig struct {
	ApprovalThreshold  float64 `mapstructure:"approval_threshold"`
	ReflectionAttempts int     `mapstructure:"reflection_attempts"`
	ExtractionRetries  int     `mapstructure:"extraction_retries"`
	MaxTokens          int     `mapstructure:"max_tokens"`
	Temperature        float64 `mapstructure:"temperature"`
	DocumentIndex      string  `mapstructure:"document_index"`
	RegistryPath       string  `mapstructure:"registry_path"`
	MaxSteps           int     `mapstructure:"max_steps"`
}

// --- Knowledge Base / RAG Config ---

type KnowledgeConfig struct {
	Dir             string  `mapstructure:"dir"`
	IndexName       string  `mapstructure:"index_name"`
	TopK            int     `mapstructure:"top_k"`
	Dimension       int     `mapstructure:"dimension"`
	MinRelevance    float64 `mapstructure:"min_relevance"`
	CacheTTL        int     `mapstructure:"cache_ttl"` // seconds
	MaxQueryLength  int     `mapstructure:"max_query_length"`
	MaxAnswerLength int     `mapstructure:"max_answer_length"`
}

// NotificationConfig holds settings for the human-review escalation notifier.
type NotificationConfig struct {
	Email struct {
		Enabled   bool     `mapstructure:"enabled"`
		FromEmail string   `mapstructure:"from_email"`
		Reviewers []string `mapstructure:"reviewers"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled      bool     `mapstructure:"enabled"`
		PhoneNumbers []string `mapstructure:"phone_numbers"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
