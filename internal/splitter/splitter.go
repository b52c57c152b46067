// Package splitter cuts documents into overlapping chunks sized for
// embedding. Splitting is recursive: paragraph breaks first, then line
// breaks, then spaces, and finally a hard character window for text with no
// usable separators.
package splitter

import (
	"strconv"
	"strings"

	"github.com/castellanodev/ragserve/internal/loader"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter produces chunks of at most chunkSize characters with the
// configured overlap between consecutive chunks.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// New creates a splitter. Non-positive sizes fall back to the defaults and
// an overlap at or above the chunk size is clamped to a fifth of it.
func New(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: defaultSeparators,
	}
}

// Split cuts text into chunks. Whitespace-only chunks are dropped.
func (s *Splitter) Split(text string) []string {
	return s.splitText(text, s.separators)
}

// SplitDocuments splits each document and propagates its metadata to every
// chunk, adding a chunk index.
func (s *Splitter) SplitDocuments(docs []loader.Document) []loader.Document {
	var out []loader.Document
	for _, doc := range docs {
		for i, chunk := range s.Split(doc.Content) {
			meta := make(map[string]string, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			meta["chunk"] = strconv.Itoa(i)
			out = append(out, loader.Document{Content: chunk, Metadata: meta})
		}
	}
	return out
}

func (s *Splitter) splitText(text string, separators []string) []string {
	separator := ""
	var next []string
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	if separator == "" {
		return s.slidingWindow(text)
	}

	splits := strings.Split(text, separator)
	sepLen := len(separator)

	var (
		chunks     []string
		current    []string
		currentLen int
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, piece := range splits {
		pieceLen := len(piece)

		// Pieces larger than a chunk recurse on finer separators.
		if pieceLen > s.chunkSize {
			flush()
			current, currentLen = nil, 0
			chunks = append(chunks, s.splitText(piece, next)...)
			continue
		}

		if currentLen+pieceLen+sepLen > s.chunkSize && len(current) > 0 {
			flush()
			// Drop leading pieces until what remains fits the overlap budget.
			for len(current) > 0 && (currentLen > s.overlap ||
				(currentLen+pieceLen+sepLen > s.chunkSize && currentLen > 0)) {
				currentLen -= len(current[0]) + sepLen
				current = current[1:]
			}
		}

		current = append(current, piece)
		currentLen += pieceLen + sepLen
	}
	flush()
	return chunks
}

// slidingWindow hard-cuts text with no separators into fixed windows
// advancing by chunkSize minus overlap.
func (s *Splitter) slidingWindow(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.chunkSize {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return []string{trimmed}
		}
		return nil
	}

	step := s.chunkSize - s.overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
