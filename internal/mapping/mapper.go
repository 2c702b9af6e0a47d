package mapping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrServiceUnavailable wraps AI mapping service failures and timeouts.
// Callers treat it as a warning: the batch proceeds with unmapped fields.
var ErrServiceUnavailable = errors.New("mapping: AI service unavailable")

// Request carries everything the AI service needs to compute a mapping.
type Request struct {
	Columns []string
	Samples [][]string
	Schema  Schema
}

// AIService computes a raw column mapping from source columns and sample
// data. The returned map is untrusted model output; the mapper validates it
// against the schema before use.
type AIService interface {
	MapColumns(ctx context.Context, req Request) (map[string]any, error)
}

// Mapper maps source columns onto the target schema, caching results by the
// structural signature of the source table.
//
// The schema version is injected at construction: invalidating the cache
// means constructing a mapper with a new version, never mutating shared
// state. Stale entries are ignored on read and replaced on the next
// successful write.
type Mapper struct {
	store         CacheStore
	ai            AIService
	schema        Schema
	schemaVersion int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewMapper creates a mapper. timeout bounds a single AI call; zero disables
// the bound (the caller's context still applies).
func NewMapper(store CacheStore, ai AIService, schema Schema, schemaVersion int, timeout time.Duration, log zerolog.Logger) *Mapper {
	return &Mapper{
		store:         store,
		ai:            ai,
		schema:        schema,
		schemaVersion: schemaVersion,
		timeout:       timeout,
		log:           log,
	}
}

// Schema returns the target schema this mapper validates against.
func (m *Mapper) Schema() Schema { return m.schema }

// Map resolves a column mapping for the given source layout.
//
// Cache protocol: a version-checked cache hit is returned without an AI
// call. On a miss the AI service is invoked, its response parsed strictly
// against the schema, and the result stored under the current schema
// version. On AI failure or timeout nothing is cached and an all-unmapped
// mapping is returned together with a non-nil warning error wrapping
// ErrServiceUnavailable; the mapping is still usable and the caller is
// expected to proceed with defaults.
func (m *Mapper) Map(ctx context.Context, columns []string, samples [][]string, fileKind string) (Mapping, error) {
	return m.resolve(ctx, columns, samples, fileKind, true)
}

// Peek is Map without cache writes, for read-only previews. Cache reads
// still apply, so previewing a known layout stays free of AI calls.
func (m *Mapper) Peek(ctx context.Context, columns []string, samples [][]string, fileKind string) (Mapping, error) {
	return m.resolve(ctx, columns, samples, fileKind, false)
}

func (m *Mapper) resolve(ctx context.Context, columns []string, samples [][]string, fileKind string, persist bool) (Mapping, error) {
	key := KeyFor(columns, fileKind)

	if entry, err := m.store.Get(ctx, key); err != nil {
		// A broken cache never fails a mapping; fall through to the AI.
		m.log.Warn().Err(err).Str("key", string(key)).Msg("Mapping cache read failed, treating as miss")
	} else if entry.Valid(m.schemaVersion, m.schema) {
		m.log.Debug().Str("key", string(key)).Msg("Mapping cache hit")
		return entry.Mapping, nil
	}

	aiCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		aiCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	raw, err := m.ai.MapColumns(aiCtx, Request{Columns: columns, Samples: samples, Schema: m.schema})
	if err != nil {
		m.log.Warn().Err(err).Str("key", string(key)).Msg("AI mapping failed, degrading to unmapped fields")
		return NewUnmapped(m.schema, m.schemaVersion), fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	mapped := m.parseResponse(raw, columns)

	if persist {
		entry := &CacheEntry{
			Key:           key,
			Mapping:       mapped,
			SchemaVersion: m.schemaVersion,
			CreatedAt:     time.Now().UTC(),
		}
		if err := m.store.Put(ctx, entry); err != nil {
			m.log.Warn().Err(err).Str("key", string(key)).Msg("Mapping cache write failed")
		}
	}

	m.log.Info().
		Str("key", string(key)).
		Int("mapped", mapped.MappedCount()).
		Int("columns", len(columns)).
		Msg("Computed column mapping")

	return mapped, nil
}

// parseResponse turns untrusted model output into a validated mapping.
// Unknown target names are dropped, not trusted; mapped source columns that
// do not exist in the file are treated as unmapped.
func (m *Mapper) parseResponse(raw map[string]any, columns []string) Mapping {
	known := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		known[col] = struct{}{}
	}

	result := NewUnmapped(m.schema, m.schemaVersion)
	for target, value := range raw {
		if !m.schema.Has(target) {
			m.log.Debug().Str("target", target).Msg("Dropping unknown target from AI response")
			continue
		}
		src, ok := value.(string)
		if !ok || src == "" {
			continue // null or non-string means unmapped
		}
		if _, exists := known[src]; !exists {
			m.log.Debug().Str("target", target).Str("source", src).Msg("Dropping mapping to non-existent source column")
			continue
		}
		result.Targets[target] = src
	}
	return result
}
