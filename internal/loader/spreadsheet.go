package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// loadSpreadsheet reads workbook sheets into one document per data row. The
// first row of each sheet is treated as a header; rows render as
// "header: value" lines with empty cells skipped.
func loadSpreadsheet(path string) ([]Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	var docs []Document
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}

		headers := rows[0]
		for rowNum, row := range rows[1:] {
			var lines []string
			for i, cell := range row {
				cell = strings.TrimSpace(cell)
				if cell == "" {
					continue
				}
				header := "column " + strconv.Itoa(i+1)
				if i < len(headers) && strings.TrimSpace(headers[i]) != "" {
					header = strings.TrimSpace(headers[i])
				}
				lines = append(lines, header+": "+cell)
			}
			if len(lines) == 0 {
				continue
			}

			docs = append(docs, Document{
				Content: strings.Join(lines, "\n"),
				Metadata: map[string]string{
					MetaSource: path,
					"sheet":    sheet,
					"row":      strconv.Itoa(rowNum + 1),
				},
			})
		}
	}
	return docs, nil
}
