package loader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/karoltaylor/finance-ingest/internal/grid"
)

// candidateDelimiters is tried in order when sniffing; the one producing the
// most columns on the first non-empty line wins.
var candidateDelimiters = []rune{',', '\t', ';', '|'}

// CSVLoader parses CSV and TXT files. The delimiter is sniffed from the
// first non-empty line, so semicolon- and tab-separated exports load without
// caller configuration.
type CSVLoader struct{}

// Load implements Loader.
func (l *CSVLoader) Load(data []byte) (grid.Grid, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("csv loader: empty file")
	}

	// Strip a UTF-8 BOM; Excel exports often carry one.
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv loader: parse: %w", err)
	}

	g := make(grid.Grid, 0, len(records))
	for _, record := range records {
		row := make(grid.Row, 0, len(record))
		for _, field := range record {
			row = append(row, cellFromText(field))
		}
		g = append(g, row)
	}
	return g, nil
}

// sniffDelimiter picks the delimiter yielding the most fields on the first
// non-empty line.
func sniffDelimiter(data []byte) rune {
	var line string
	for _, l := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}

	best := ','
	bestCount := 0
	for _, d := range candidateDelimiters {
		r := csv.NewReader(strings.NewReader(line))
		r.Comma = d
		r.LazyQuotes = true
		fields, err := r.Read()
		if err != nil {
			continue
		}
		if len(fields) > bestCount {
			bestCount = len(fields)
			best = d
		}
	}
	return best
}

// cellFromText classifies a textual field as a number or a string. Date
// detection is left to the materializer, which knows the accepted layouts.
func cellFromText(s string) grid.Cell {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return grid.Empty()
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return grid.Number(f)
	}
	return grid.String(trimmed)
}
