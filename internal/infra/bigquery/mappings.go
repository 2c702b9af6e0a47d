package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/karoltaylor/finance-ingest/internal/mapping"
)

// MappingRow is one cached column mapping in the column_mappings table.
// The mapping itself is stored as a JSON object of target to source column.
type MappingRow struct {
	CacheKey      string    `bigquery:"cache_key"`
	Mapping       string    `bigquery:"mapping"`
	SchemaVersion int64     `bigquery:"schema_version"`
	CreatedTS     time.Time `bigquery:"created_ts"`
}

// Get implements mapping.CacheStore. A key with no row, or a row whose
// mapping payload does not decode, is a cache miss, not an error.
func (s *Store) Get(ctx context.Context, key mapping.CacheKey) (*mapping.CacheEntry, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT cache_key, mapping, schema_version, created_ts
		FROM %s.%s
		WHERE cache_key = @cache_key
		ORDER BY created_ts DESC
		LIMIT 1
	`, s.dataset, mappingsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "cache_key", Value: string(key)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("bigquery: read mapping: %w", err)
	}

	var row MappingRow
	if err := it.Next(&row); err == iterator.Done {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("bigquery: iter mapping: %w", err)
	}

	var targets map[string]string
	if err := json.Unmarshal([]byte(row.Mapping), &targets); err != nil {
		return nil, nil
	}

	return &mapping.CacheEntry{
		Key:           mapping.CacheKey(row.CacheKey),
		SchemaVersion: int(row.SchemaVersion),
		Mapping: mapping.Mapping{
			Targets:       targets,
			SchemaVersion: int(row.SchemaVersion),
		},
		CreatedAt: row.CreatedTS,
	}, nil
}

// Put implements mapping.CacheStore. Entries are append-only; Get picks the
// newest row per key, so a re-mapped layout supersedes older rows without
// an update statement.
func (s *Store) Put(ctx context.Context, entry *mapping.CacheEntry) error {
	payload, err := json.Marshal(entry.Mapping.Targets)
	if err != nil {
		return fmt.Errorf("bigquery: marshal mapping: %w", err)
	}

	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	row := &MappingRow{
		CacheKey:      string(entry.Key),
		Mapping:       string(payload),
		SchemaVersion: int64(entry.SchemaVersion),
		CreatedTS:     created,
	}

	inserter := s.client.Dataset(s.dataset).Table(mappingsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("bigquery: insert mapping: %w", err)
	}
	return nil
}

var _ mapping.CacheStore = (*Store)(nil)
