package vectordb

// MetaSource is the metadata key carrying the origin path of a document.
// Every ingested chunk has it.
const MetaSource = "source"

// Document represents a piece of content to be stored and searched.
// Metadata is a flat string map; ingestion copies the loader's source
// metadata into it and retrieval filters match against it exactly.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// SearchResult pairs a document with its similarity score.
type SearchResult struct {
	Document   Document
	Similarity float32
}
