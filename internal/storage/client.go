// Package storage provides the Elasticsearch transcript store: the
// secondary, searchable index over completed job results.
package storage

import (
	"fmt"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/aimeuniverse/contentsync/internal/config"
	"github.com/aimeuniverse/contentsync/internal/logger"
)

// NewClient creates and pings an Elasticsearch client.
func NewClient(cfg config.ElasticsearchConfig, log logger.Logger) (*es.Client, error) {
	clientConfig := es.Config{
		Addresses: cfg.Addresses,
	}
	if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	res, pingErr := client.Ping()
	if pingErr != nil {
		return nil, fmt.Errorf("failed to ping elasticsearch: %w", pingErr)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch ping returned error: %s", res.String())
	}

	log.Debug("connected to elasticsearch", logger.Any("addresses", cfg.Addresses))

	return client, nil
}
