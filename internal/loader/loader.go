// Package loader extracts text from uploaded files. Each supported format
// produces one or more documents carrying a "source" metadata entry with the
// originating path; page- and row-oriented formats add their own keys.
package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType is returned when no parser exists for a file extension.
var ErrUnsupportedType = errors.New("unsupported file type")

// MetaSource is the metadata key holding the file path a document came from.
const MetaSource = "source"

// allowedExtensions mirrors the upload allow-list. It is broader than the
// set of parseable formats: legacy Office and image files are accepted at
// the upload boundary and rejected by Load with ErrUnsupportedType.
var allowedExtensions = map[string]bool{
	".pdf": true, ".docx": true, ".doc": true,
	".ppt": true, ".pptx": true,
	".xls": true, ".xlsx": true,
	".txt": true, ".md": true,
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
}

// Allowed reports whether the file name has an extension accepted for upload.
func Allowed(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Document is a unit of extracted text plus provenance metadata.
type Document struct {
	Content  string
	Metadata map[string]string
}

// Load parses the file at path into documents. The extension (lowercased)
// selects the parser.
func Load(path string) ([]Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return loadPDF(path)
	// Legacy .doc goes through the same path best-effort; a real
	// pre-OOXML file fails at the zip layer with a clear error.
	case ".docx", ".doc":
		return loadDOCX(path)
	case ".xlsx", ".xls":
		return loadSpreadsheet(path)
	case ".csv":
		return loadCSV(path)
	case ".txt":
		return loadText(path)
	case ".md":
		return loadMarkdown(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}
}
