// Package chunker splits extracted text into overlapping, section-tagged chunks.
// All offsets are rune offsets into the document's full text.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/models"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Span is one window of text. Start and End are rune offsets, End exclusive.
type Span struct {
	Content string
	Start   int
	End     int
}

// ChunkText slides a window of size runes over text, advancing by size-overlap
// (or by size when overlap leaves no forward progress). Windows that are
// blank after trimming are dropped.
func ChunkText(text string, size, overlap int) []Span {
	if size <= 0 {
		size = DefaultChunkSize
	}
	runes := []rune(text)
	n := len(runes)

	if n <= size {
		content := strings.TrimSpace(text)
		if content == "" {
			return nil
		}
		return []Span{{Content: content, Start: 0, End: n}}
	}

	stride := size - overlap
	if stride <= 0 {
		stride = size
	}

	var spans []Span
	for start := 0; start < n; start += stride {
		end := min(start+size, n)
		if content := strings.TrimSpace(string(runes[start:end])); content != "" {
			spans = append(spans, Span{Content: content, Start: start, End: end})
		}
		if end == n {
			break
		}
	}
	return spans
}

type located struct {
	section models.OutlineSection
	start   int // byte offset of the title in the full text
}

// ChunkDocumentBySection chunks each outline section separately and tags the
// chunks with the section. A section spans from its title occurrence to the
// next located title. Titles are searched forward from the previous match, so
// a title that only occurs before its predecessor is skipped. Text before the
// line holding the first located title is chunked without section tags, as is
// the whole text when no title can be found.
//
// Returned chunks carry global offsets and a contiguous ChunkIndex; ID and
// DocumentID are left for the caller.
func ChunkDocumentBySection(doc *core.Extraction, size, overlap int) []models.DocumentChunk {
	if doc == nil || strings.TrimSpace(doc.FullText) == "" {
		return nil
	}
	text := doc.FullText

	var sections []located
	cursor := 0
	for _, s := range doc.Outline {
		if s.Title == "" {
			continue
		}
		idx := strings.Index(text[cursor:], s.Title)
		if idx < 0 {
			continue
		}
		start := cursor + idx
		sections = append(sections, located{section: s, start: start})
		cursor = start + len(s.Title)
	}

	if len(sections) == 0 {
		return toChunks(ChunkText(text, size, overlap), 0, 0, nil)
	}

	var chunks []models.DocumentChunk
	if first := sections[0].start; first > 0 {
		cut := strings.LastIndexByte(text[:first], '\n') + 1
		chunks = toChunks(ChunkText(text[:cut], size, overlap), 0, 0, nil)
	}
	for i, loc := range sections {
		end := len(text)
		if i+1 < len(sections) {
			end = sections[i+1].start
		}
		base := utf8.RuneCountInString(text[:loc.start])
		spans := ChunkText(text[loc.start:end], size, overlap)
		chunks = append(chunks, toChunks(spans, base, len(chunks), &loc.section)...)
	}
	return chunks
}

func toChunks(spans []Span, base, firstIndex int, section *models.OutlineSection) []models.DocumentChunk {
	chunks := make([]models.DocumentChunk, 0, len(spans))
	for i, sp := range spans {
		c := models.DocumentChunk{
			Content:    sp.Content,
			ChunkIndex: firstIndex + i,
			StartChar:  base + sp.Start,
			EndChar:    base + sp.End,
		}
		if section != nil {
			c.SectionID = section.ID
			c.SectionTitle = section.Title
		}
		chunks = append(chunks, c)
	}
	return chunks
}
