// Package config loads application settings from environment variables.
// A local .env file is honored for development; in deployed environments
// the variables are expected to be set by the platform.
package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Settings holds all tunables for the ingestion core.
type Settings struct {
	// GoogleAPIKey authenticates the GenAI client. Required for live
	// column mapping; tests inject a mock service instead.
	GoogleAPIKey string

	// GenAIModel is the Gemini model used for column mapping.
	GenAIModel string

	// SchemaVersion is the current mapping schema version. Bumping it
	// lazily invalidates every cached column mapping.
	SchemaVersion int

	// MappingTimeout bounds a single AI mapping call. A timeout is
	// treated like a service error, never as fatal.
	MappingTimeout time.Duration

	// MaxRowsToScan bounds the header-detection prefix window.
	MaxRowsToScan int

	// SampleRows is how many data rows are sent to the AI service as
	// mapping context.
	SampleRows int

	// BigQueryProject and BigQueryDataset locate the mapping cache and
	// transaction tables.
	BigQueryProject string
	BigQueryDataset string
}

var loadEnvOnce sync.Once

// Load reads settings from the environment, loading .env first if present.
func Load() Settings {
	loadEnvOnce.Do(func() {
		// Ignore the error: a missing .env file is the normal case
		// outside local development.
		_ = godotenv.Load()
	})

	return Settings{
		GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
		GenAIModel:      envOr("GENAI_MODEL", "gemini-2.5-flash"),
		SchemaVersion:   envIntOr("MAPPING_SCHEMA_VERSION", 1),
		MappingTimeout:  envDurationOr("MAPPING_TIMEOUT", 30*time.Second),
		MaxRowsToScan:   envIntOr("MAX_ROWS_TO_SCAN", 50),
		SampleRows:      envIntOr("MAPPING_SAMPLE_ROWS", 5),
		BigQueryProject: os.Getenv("BIGQUERY_PROJECT"),
		BigQueryDataset: envOr("BIGQUERY_DATASET", "finance"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
