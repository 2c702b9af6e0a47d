// Package loader turns raw file bytes into a grid.Grid. Each supported file
// kind has its own loader behind a single capability interface; the pipeline
// selects the variant by file kind at its boundary.
package loader

import (
	"fmt"
	"strings"

	"github.com/karoltaylor/finance-ingest/internal/grid"
)

// FileKind identifies the source file format.
type FileKind string

const (
	KindCSV  FileKind = "csv"
	KindTXT  FileKind = "txt"
	KindXLS  FileKind = "xls"
	KindXLSX FileKind = "xlsx"
)

// Loader parses file bytes into a raw grid.
type Loader interface {
	Load(data []byte) (grid.Grid, error)
}

// KindFromFilename derives the file kind from a filename extension.
func KindFromFilename(name string) (FileKind, error) {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return "", fmt.Errorf("loader: no extension in filename %q", name)
	}
	return ParseKind(name[idx+1:])
}

// ParseKind validates a file kind string.
func ParseKind(s string) (FileKind, error) {
	switch FileKind(strings.ToLower(strings.TrimPrefix(s, "."))) {
	case KindCSV:
		return KindCSV, nil
	case KindTXT:
		return KindTXT, nil
	case KindXLS:
		return KindXLS, nil
	case KindXLSX:
		return KindXLSX, nil
	default:
		return "", fmt.Errorf("loader: unsupported file kind %q", s)
	}
}

// ForKind returns the loader for the given file kind.
func ForKind(kind FileKind) (Loader, error) {
	switch kind {
	case KindCSV, KindTXT:
		return &CSVLoader{}, nil
	case KindXLSX:
		return &XLSXLoader{}, nil
	case KindXLS:
		return &XLSLoader{}, nil
	default:
		return nil, fmt.Errorf("loader: unsupported file kind %q", kind)
	}
}
