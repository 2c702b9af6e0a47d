// Package bigquery persists column mappings and materialized transactions.
// All operations go through a Store bound to one project and dataset; the
// WithClient constructor lets callers share a client across stores.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const (
	mappingsTable     = "column_mappings"
	transactionsTable = "transactions"
)

// Store holds a BigQuery client scoped to one dataset.
type Store struct {
	client  *bigquery.Client
	dataset string
	ownsCli bool
}

// NewStore creates a store with its own BigQuery client.
func NewStore(ctx context.Context, projectID, dataset string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("bigquery: new client: %w", err)
	}
	return &Store{client: client, dataset: dataset, ownsCli: true}, nil
}

// NewStoreWithClient creates a store on top of an existing client. The
// caller keeps ownership of the client.
func NewStoreWithClient(client *bigquery.Client, dataset string) *Store {
	return &Store{client: client, dataset: dataset}
}

// Close releases the underlying client if the store created it.
func (s *Store) Close() error {
	if !s.ownsCli {
		return nil
	}
	return s.client.Close()
}
