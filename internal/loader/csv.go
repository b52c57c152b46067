package loader

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// loadCSV produces one document per data row, rendered as "header: value"
// lines so column context survives chunking.
func loadCSV(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	headers := records[0]
	var docs []Document
	for rowNum, record := range records[1:] {
		var lines []string
		for i, field := range record {
			header := "column " + strconv.Itoa(i+1)
			if i < len(headers) && strings.TrimSpace(headers[i]) != "" {
				header = strings.TrimSpace(headers[i])
			}
			lines = append(lines, header+": "+field)
		}
		docs = append(docs, Document{
			Content: strings.Join(lines, "\n"),
			Metadata: map[string]string{
				MetaSource: path,
				"row":      strconv.Itoa(rowNum + 1),
			},
		})
	}
	return docs, nil
}
