package extractor

import (
	"bytes"
	"os"
	"strings"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdownParser = goldmark.New()

// extractMarkdown reads ATX headings (# through ######) from the goldmark AST.
// Setext headings are ignored. Titles and the full text are both raw source
// so the chunker can locate every heading.
func extractMarkdown(filePath string) (*core.Extraction, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	doc := markdownParser.Parser().Parse(text.NewReader(content))

	var (
		outline []models.OutlineSection
		firstH1 string
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || !isATXHeading(heading, content) {
			return ast.WalkContinue, nil
		}

		title := headingText(heading, content)
		if title == "" {
			return ast.WalkSkipChildren, nil
		}
		if heading.Level == 1 && firstH1 == "" {
			firstH1 = title
		}
		outline = append(outline, newSection(title, heading.Level, len(outline)))
		return ast.WalkSkipChildren, nil
	})

	title := firstH1
	if title == "" && len(outline) > 0 {
		title = outline[0].Title
	}

	return &core.Extraction{
		Title:    title,
		Outline:  outline,
		FullText: string(content),
	}, nil
}

// isATXHeading reports whether the source line holding the heading starts with '#'.
func isATXHeading(h *ast.Heading, source []byte) bool {
	lines := h.Lines()
	if lines.Len() == 0 {
		return false
	}
	start := lines.At(0).Start
	lineStart := bytes.LastIndexByte(source[:start], '\n') + 1
	return bytes.HasPrefix(bytes.TrimLeft(source[lineStart:start], " \t"), []byte("#"))
}

// headingText is the heading's raw source text, inline markup included, so
// the title matches FullText verbatim. goldmark has already dropped the
// opening and closing '#' runs from the segment.
func headingText(h *ast.Heading, source []byte) string {
	seg := h.Lines().At(0)
	return strings.TrimSpace(string(seg.Value(source)))
}
