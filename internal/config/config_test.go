package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GENAI_MODEL", "")
	t.Setenv("MAPPING_SCHEMA_VERSION", "")
	t.Setenv("MAPPING_TIMEOUT", "")

	s := Load()

	if s.GenAIModel != "gemini-2.5-flash" {
		t.Errorf("GenAIModel = %q, want default", s.GenAIModel)
	}
	if s.SchemaVersion != 1 {
		t.Errorf("SchemaVersion = %d, want 1", s.SchemaVersion)
	}
	if s.MappingTimeout != 30*time.Second {
		t.Errorf("MappingTimeout = %v, want 30s", s.MappingTimeout)
	}
	if s.MaxRowsToScan != 50 {
		t.Errorf("MaxRowsToScan = %d, want 50", s.MaxRowsToScan)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAPPING_SCHEMA_VERSION", "7")
	t.Setenv("MAPPING_TIMEOUT", "5s")
	t.Setenv("MAX_ROWS_TO_SCAN", "10")

	s := Load()

	if s.SchemaVersion != 7 {
		t.Errorf("SchemaVersion = %d, want 7", s.SchemaVersion)
	}
	if s.MappingTimeout != 5*time.Second {
		t.Errorf("MappingTimeout = %v, want 5s", s.MappingTimeout)
	}
	if s.MaxRowsToScan != 10 {
		t.Errorf("MaxRowsToScan = %d, want 10", s.MaxRowsToScan)
	}
}

func TestLoadMalformedIntFallsBack(t *testing.T) {
	t.Setenv("MAPPING_SCHEMA_VERSION", "not-a-number")

	s := Load()
	if s.SchemaVersion != 1 {
		t.Errorf("SchemaVersion = %d, want fallback 1", s.SchemaVersion)
	}
}
