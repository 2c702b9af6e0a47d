package loader

import (
	"bytes"
	"fmt"

	"github.com/shakinm/xlsReader/xls"

	"github.com/karoltaylor/finance-ingest/internal/grid"
)

// XLSLoader parses legacy Excel workbooks.
type XLSLoader struct{}

// Load implements Loader.
func (l *XLSLoader) Load(data []byte) (grid.Grid, error) {
	book, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xls loader: open workbook: %w", err)
	}

	sheet, err := book.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("xls loader: workbook has no sheets: %w", err)
	}

	var g grid.Grid
	for _, xlsRow := range sheet.GetRows() {
		var row grid.Row
		for _, col := range xlsRow.GetCols() {
			row = append(row, cellFromText(col.GetString()))
		}
		g = append(g, row)
	}
	return g, nil
}
