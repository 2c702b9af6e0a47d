// Package detect locates the header row and the start of tabular data in a
// raw grid. Real-world exports bury the table under metadata blocks, blank
// rows and report titles; the detector scores a bounded prefix of rows and
// picks the most header-like one.
package detect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/karoltaylor/finance-ingest/internal/grid"
)

// ErrNoHeader is returned when no row in the scan window looks like a header.
var ErrNoHeader = errors.New("detect: no header row found")

// Scoring weights, mirroring the tuned values of the production detector.
const (
	weightNonEmpty  = 0.30
	weightString    = 0.25
	weightUnique    = 0.20
	weightNumeric   = 0.25
	summaryPenalty  = 0.25
	lookaheadRows   = 5
	defaultMinScore = 0.35
)

// summaryKeywords mark aggregate rows that masquerade as headers.
var summaryKeywords = []string{"total", "subtotal", "summary", "grand total", "balance carried"}

// Detector finds the header row in a raw grid.
type Detector struct {
	// MaxRowsToScan bounds the prefix window so huge metadata blocks do
	// not make detection quadratic.
	MaxRowsToScan int

	// MinColumns is the minimum column count for a valid table.
	MinColumns int

	// MinScore is the score floor below which no candidate is accepted.
	MinScore float64
}

// NewDetector returns a detector with production defaults.
func NewDetector() *Detector {
	return &Detector{MaxRowsToScan: 50, MinColumns: 2, MinScore: defaultMinScore}
}

// Result describes the located table.
type Result struct {
	HeaderRow int
	Columns   []string
	DataRows  []grid.Row
}

// Candidate is a scored header candidate, kept only during detection.
type Candidate struct {
	RowIndex int
	Score    float64
	Columns  []string
}

// Detect scans the grid and returns the header row index, cleaned column
// names and the data rows following the header. Rows that are entirely empty
// are dropped from the data. Fails with ErrNoHeader when the grid is empty,
// has fewer than two rows, or no candidate scores above MinScore.
func (d *Detector) Detect(g grid.Grid) (Result, error) {
	if len(g) < 2 {
		return Result{}, fmt.Errorf("%w: grid has %d rows", ErrNoHeader, len(g))
	}

	window := len(g)
	if d.MaxRowsToScan > 0 && window > d.MaxRowsToScan {
		window = d.MaxRowsToScan
	}

	width := g.Width()
	best := Candidate{RowIndex: -1, Score: -1}
	for idx := 0; idx < window; idx++ {
		score := d.scoreRow(g, idx, width)
		// Strictly greater keeps the earliest row on exact ties;
		// headers sit near the top once metadata is skipped.
		if score > best.Score {
			best = Candidate{RowIndex: idx, Score: score}
		}
	}

	if best.RowIndex < 0 || best.Score < d.MinScore {
		return Result{}, fmt.Errorf("%w: best score %.3f below threshold", ErrNoHeader, best.Score)
	}

	header := g[best.RowIndex]
	if nonEmptyCount(header) < d.MinColumns {
		return Result{}, fmt.Errorf("%w: header has fewer than %d columns", ErrNoHeader, d.MinColumns)
	}

	best.Columns = CleanColumns(header)

	var dataRows []grid.Row
	for _, row := range g[best.RowIndex+1:] {
		if row.IsEmptyRow() {
			continue
		}
		dataRows = append(dataRows, row)
	}

	return Result{HeaderRow: best.RowIndex, Columns: best.Columns, DataRows: dataRows}, nil
}

// scoreRow combines four signals: how full the row is, how string-typed it
// is, how unique its values are, and how numeric the following rows look.
// Ratios are taken against the grid width, not the row length, so short
// metadata rows in ragged files do not score as full rows. Rows containing
// summary keywords are penalized.
func (d *Detector) scoreRow(g grid.Grid, idx, width int) float64 {
	row := g[idx]
	if len(row) == 0 || width == 0 {
		return 0
	}

	stringCells := 0
	for _, c := range row {
		if c.Kind == grid.KindString && !c.IsEmpty() && !c.IsNumericLike() {
			stringCells++
		}
	}
	// A header names its columns; a row without a single textual cell is
	// data, not a header.
	if stringCells == 0 {
		return 0
	}

	score := 0.0

	nonEmpty := nonEmptyCount(row)
	score += float64(nonEmpty) / float64(width) * weightNonEmpty
	score += float64(stringCells) / float64(width) * weightString

	if nonEmpty > 0 {
		seen := make(map[string]struct{}, nonEmpty)
		for _, c := range row {
			if !c.IsEmpty() {
				seen[strings.ToLower(c.Text())] = struct{}{}
			}
		}
		score += float64(len(seen)) / float64(nonEmpty) * weightUnique
	}

	if idx+1 < len(g) {
		end := idx + 1 + lookaheadRows
		if end > len(g) {
			end = len(g)
		}
		score += numericContentRatio(g[idx+1:end]) * weightNumeric
	}

	for _, c := range row {
		if containsSummaryKeyword(c.Text()) {
			score -= summaryPenalty
			break
		}
	}

	return score
}

// numericContentRatio is the fraction of non-empty cells holding numbers.
func numericContentRatio(rows []grid.Row) float64 {
	numeric, total := 0, 0
	for _, row := range rows {
		for _, c := range row {
			if c.IsEmpty() {
				continue
			}
			total++
			if c.IsNumericLike() || c.Kind == grid.KindTime {
				numeric++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(numeric) / float64(total)
}

func containsSummaryKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range summaryKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func nonEmptyCount(row grid.Row) int {
	n := 0
	for _, c := range row {
		if !c.IsEmpty() {
			n++
		}
	}
	return n
}

// CleanColumns normalizes header cells into column names: trimmed, internal
// whitespace collapsed, lowercased with separators as underscores, and
// de-duplicated with a positional suffix. Empty cells become "unnamed".
func CleanColumns(header grid.Row) []string {
	names := make([]string, 0, len(header))
	seen := make(map[string]int, len(header))

	for _, c := range header {
		name := cleanName(c.Text())
		if count, dup := seen[name]; dup {
			seen[name] = count + 1
			name = fmt.Sprintf("%s_%d", name, count)
		} else {
			seen[name] = 1
		}
		names = append(names, name)
	}
	return names
}

func cleanName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unnamed"
	}

	// Collapse runs of whitespace and separators into single underscores.
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '\t' || r == '-' || r == '_':
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			// Drop other punctuation entirely.
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "unnamed"
	}
	return out
}
