package mapping

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Mapping maps target field names to source column names. An empty value
// means the target is unmapped and falls back to defaults downstream.
type Mapping struct {
	Targets       map[string]string
	SchemaVersion int
}

// NewUnmapped returns a mapping with every schema target unmapped.
func NewUnmapped(schema Schema, version int) Mapping {
	targets := make(map[string]string, len(schema.Fields))
	for _, f := range schema.Fields {
		targets[f.Name] = ""
	}
	return Mapping{Targets: targets, SchemaVersion: version}
}

// Source returns the source column mapped to the target, or "" if unmapped.
func (m Mapping) Source(target string) string {
	return m.Targets[target]
}

// MappedCount returns how many targets resolved to a source column.
func (m Mapping) MappedCount() int {
	n := 0
	for _, src := range m.Targets {
		if src != "" {
			n++
		}
	}
	return n
}

// CacheKey is the structural signature of a source table: a deterministic
// hash of the ordered column names, the column count and the file kind.
type CacheKey string

// KeyFor computes the cache key for a column layout. The separator cannot
// appear in cleaned column names, so distinct layouts cannot collide by
// concatenation.
func KeyFor(columns []string, fileKind string) CacheKey {
	h := sha256.New()
	fmt.Fprintf(h, "%d\n%s\n", len(columns), strings.ToLower(fileKind))
	for _, col := range columns {
		h.Write([]byte(col))
		h.Write([]byte{'\n'})
	}
	return CacheKey(hex.EncodeToString(h.Sum(nil)))
}

// CacheEntry is one stored mapping. Entries are never mutated, only
// replaced; an entry with a stale schema version is ignored on read.
type CacheEntry struct {
	Key           CacheKey
	Mapping       Mapping
	SchemaVersion int
	CreatedAt     time.Time
}

// Valid reports whether the entry can serve the given schema version and
// schema. Entries with mismatched versions or a malformed mapping shape are
// treated as cache misses, never as errors.
func (e *CacheEntry) Valid(version int, schema Schema) bool {
	if e == nil || e.SchemaVersion != version || e.Mapping.Targets == nil {
		return false
	}
	for target := range e.Mapping.Targets {
		if !schema.Has(target) {
			return false
		}
	}
	return true
}

// CacheStore persists mapping cache entries. Implementations must be safe
// for concurrent use; last write wins is acceptable because mappings are a
// pure function of their key.
type CacheStore interface {
	// Get returns the entry for the key, or nil when absent.
	Get(ctx context.Context, key CacheKey) (*CacheEntry, error)

	// Put stores or replaces the entry for its key.
	Put(ctx context.Context, entry *CacheEntry) error
}
