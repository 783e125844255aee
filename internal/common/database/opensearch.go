// internal/common/database/opensearch.go
package database

import (
	"context"
	"fmt"
	"time"

	"agentic-apps/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
)

// OpenSearchClient wraps the search cluster client. The cluster speaks the
// Elasticsearch wire protocol, so the official ES client is used.
type OpenSearchClient struct {
	Client *elasticsearch.Client
}

// NewOpenSearch creates a new search cluster client
func NewOpenSearch(cfg config.OpenSearchConfig) (*OpenSearchClient, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
	}

	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &OpenSearchClient{Client: es}, nil
}

// Ping tests the cluster connection
func (c *OpenSearchClient) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.Client.Ping(
		c.Client.Ping.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("opensearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch ping error: %s", res.Status())
	}

	return nil
}

// Info returns cluster information
func (c *OpenSearchClient) Info(ctx context.Context) error {
	res, err := c.Client.Info(
		c.Client.Info.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch info error: %s", res.Status())
	}

	return nil
}
