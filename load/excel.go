package load

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/idahopolicy/munipanel/frame"
)

// sheetRows returns the cell grid of one worksheet.
func sheetRows(path, sheet string) ([][]string, error) {
	var (
		wb *excelize.File
		e  error
	)

	if wb, e = excelize.OpenFile(path); e != nil {
		return nil, e
	}
	defer func() { _ = wb.Close() }()

	var rows [][]string
	if rows, e = wb.GetRows(sheet); e != nil {
		return nil, fmt.Errorf("sheet %s: %w", sheet, e)
	}

	return rows, nil
}

// Workbook reads one worksheet into a Frame. headerRow is the 0-based index
// of the header row; rows above it (title banners and the like) are skipped,
// rows below it are data.
func Workbook(path, sheet string, headerRow int) (*frame.Frame, error) {
	var (
		rows [][]string
		e    error
	)

	if rows, e = sheetRows(path, sheet); e != nil {
		return nil, e
	}

	if headerRow >= len(rows) {
		return nil, fmt.Errorf("sheet %s: header row %d past end of sheet", sheet, headerRow)
	}

	fieldNames := headerNames(rows[headerRow : headerRow+1])

	return frame.FromRows(fieldNames, rows[headerRow+1:])
}

// headerNames builds column names from one or more stacked header rows,
// joining the stacked cells and normalizing the result. Blank headers get a
// positional name so the frame stays rectangular.
func headerNames(headRows [][]string) []string {
	width := 0
	for _, r := range headRows {
		if len(r) > width {
			width = len(r)
		}
	}

	names := make([]string, width)
	for ind := 0; ind < width; ind++ {
		var parts []string
		for _, r := range headRows {
			if ind < len(r) && strings.TrimSpace(r[ind]) != "" {
				parts = append(parts, r[ind])
			}
		}

		names[ind] = normalizeName(strings.Join(parts, " "))
		if names[ind] == "" {
			names[ind] = fmt.Sprintf("col_%d", ind)
		}
	}

	return names
}
