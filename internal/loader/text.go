package loader

import (
	"fmt"
	"os"
)

// loadText returns the whole file as a single document.
func loadText(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text file: %w", err)
	}
	return []Document{{
		Content:  string(data),
		Metadata: map[string]string{MetaSource: path},
	}}, nil
}
