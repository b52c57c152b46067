package rag

import (
	"strings"

	"github.com/castellanodev/ragserve/internal/memory"
	"github.com/castellanodev/ragserve/internal/vectordb"
)

const systemPrompt = `You are a helpful assistant that answers questions using the provided document context. Base your answer on the context; if the context does not contain the answer, say so instead of guessing. Answer in the language of the question.`

// buildUserPrompt assembles the stuffed prompt: recalled memories first,
// then the retrieved document chunks, then the question.
func buildUserPrompt(question string, memories []memory.Entry, sources []vectordb.SearchResult) string {
	var sb strings.Builder

	if len(memories) > 0 {
		sb.WriteString("Relevant Memory:\n")
		for _, m := range memories {
			sb.WriteString("- ")
			sb.WriteString(m.Text)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Context:\n")
	if len(sources) == 0 {
		sb.WriteString("(no matching documents found)\n")
	}
	for _, s := range sources {
		sb.WriteString(s.Document.Content)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Question: ")
	sb.WriteString(question)
	return sb.String()
}
