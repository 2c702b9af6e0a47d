package loader

import (
	"strings"
	"testing"
)

func TestXLSLoaderRejectsCorruptBytes(t *testing.T) {
	_, err := (&XLSLoader{}).Load([]byte("definitely not a workbook"))
	if err == nil {
		t.Fatal("expected an error for corrupt bytes")
	}
	if !strings.Contains(err.Error(), "open workbook") {
		t.Errorf("error = %v, want open workbook failure", err)
	}
}
