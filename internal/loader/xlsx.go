package loader

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/karoltaylor/finance-ingest/internal/grid"
)

// XLSXLoader parses modern Excel workbooks. Only the first sheet is read;
// multi-sheet statements keep their data table on the first sheet in every
// export format seen so far.
type XLSXLoader struct{}

// Load implements Loader.
func (l *XLSXLoader) Load(data []byte) (grid.Grid, error) {
	xl, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xlsx loader: open workbook: %w", err)
	}
	defer xl.Close()

	sheet := xl.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("xlsx loader: workbook has no sheets")
	}

	rawRows, err := xl.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx loader: read rows: %w", err)
	}

	g := make(grid.Grid, 0, len(rawRows))
	for _, rawRow := range rawRows {
		row := make(grid.Row, 0, len(rawRow))
		for _, value := range rawRow {
			row = append(row, cellFromText(value))
		}
		g = append(g, row)
	}
	return g, nil
}
