// Package grid defines the raw tabular data model produced by file loaders
// and consumed by the header detector and the ingestion pipeline. A grid is
// immutable once a loader returns it.
package grid

import (
	"strconv"
	"strings"
	"time"
)

// Kind classifies a cell value.
type Kind int

const (
	// KindEmpty marks a cell with no value.
	KindEmpty Kind = iota
	// KindString marks a textual cell.
	KindString
	// KindNumber marks a numeric cell.
	KindNumber
	// KindTime marks a date/time cell (native spreadsheet dates).
	KindTime
)

// Cell is one heterogeneous value in a raw grid.
type Cell struct {
	Kind   Kind
	Str    string
	Num    float64
	Time   time.Time
}

// Row is an ordered sequence of cells.
type Row []Cell

// Grid is an ordered sequence of rows.
type Grid []Row

// Empty returns an empty-kind cell.
func Empty() Cell { return Cell{Kind: KindEmpty} }

// String returns a string cell. Whitespace-only text becomes an empty cell.
func String(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Empty()
	}
	return Cell{Kind: KindString, Str: s}
}

// Number returns a numeric cell.
func Number(f float64) Cell { return Cell{Kind: KindNumber, Num: f} }

// Time returns a date/time cell.
func Time(t time.Time) Cell { return Cell{Kind: KindTime, Time: t} }

// IsEmpty reports whether the cell carries no value.
func (c Cell) IsEmpty() bool {
	if c.Kind == KindEmpty {
		return true
	}
	return c.Kind == KindString && strings.TrimSpace(c.Str) == ""
}

// Text renders the cell as a string for mapping and materialization.
// Numbers use the shortest representation that round-trips.
func (c Cell) Text() string {
	switch c.Kind {
	case KindString:
		return strings.TrimSpace(c.Str)
	case KindNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	case KindTime:
		return c.Time.Format("2006-01-02")
	default:
		return ""
	}
}

// IsNumericLike reports whether the cell holds a number or a string that
// parses as one after stripping common formatting (thousands separators,
// currency symbols, comma decimals).
func (c Cell) IsNumericLike() bool {
	switch c.Kind {
	case KindNumber:
		return true
	case KindString:
		s := strings.TrimSpace(c.Str)
		if s == "" {
			return false
		}
		// Strip formatting the way the detector scores cells: currency
		// symbols, spaces and thousands separators.
		s = strings.NewReplacer("$", "", "€", "", "£", "", " ", "", ",", "").Replace(s)
		_, err := strconv.ParseFloat(s, 64)
		return err == nil
	default:
		return false
	}
}

// IsEmptyRow reports whether every cell in the row is empty.
func (r Row) IsEmptyRow() bool {
	for _, c := range r {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// Width returns the widest row in the grid.
func (g Grid) Width() int {
	w := 0
	for _, r := range g {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}
