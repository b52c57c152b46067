package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// loadMarkdown parses the file and walks the AST collecting text content,
// so markup like emphasis markers and link targets is stripped while code
// blocks keep their literal lines.
func loadMarkdown(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read markdown file: %w", err)
	}

	md := goldmark.New()
	root := md.Parser().Parse(gmtext.NewReader(data))

	var sb strings.Builder
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Type() == ast.TypeBlock && sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		switch v := n.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(data))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.CodeBlock:
			writeCodeLines(&sb, data, v.Lines())
		case *ast.FencedCodeBlock:
			writeCodeLines(&sb, data, v.Lines())
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk markdown ast: %w", err)
	}

	content := strings.TrimSpace(sb.String())
	if content == "" {
		return nil, nil
	}
	return []Document{{
		Content:  content,
		Metadata: map[string]string{MetaSource: path},
	}}, nil
}

func writeCodeLines(sb *strings.Builder, source []byte, lines *gmtext.Segments) {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
}
