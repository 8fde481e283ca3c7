package extractor

import (
	"os"
	"strings"

	"code.sajari.com/docconv"
	"github.com/markdave123-py/docingest/internal/core"
)

func extractDOCX(filePath string) (*core.Extraction, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	text, _, err := docconv.ConvertDocx(f)
	if err != nil {
		return nil, permanent(err, "invalid file: cannot read docx")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	return &core.Extraction{
		Title:    firstNonEmptyLine(text),
		Outline:  heuristicOutline(text),
		FullText: text,
	}, nil
}
