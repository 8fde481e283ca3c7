package extractor

import (
	"strings"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/models"
	"github.com/xuri/excelize/v2"
)

// extractXLSX emits one level-1 section per sheet, in workbook order.
// Each sheet's rows are written tab-separated under a "Sheet: <name>" marker.
func extractXLSX(filePath string) (*core.Extraction, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, permanent(err, "invalid file: cannot open workbook")
	}
	defer f.Close()

	var (
		sb      strings.Builder
		outline []models.OutlineSection
	)
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, permanent(err, "corrupt sheet %q", sheet)
		}

		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Sheet: ")
		sb.WriteString(sheet)
		sb.WriteString("\n")
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteString("\n")
		}

		outline = append(outline, newSection(sheet, 1, len(outline)))
	}

	return &core.Extraction{
		Title:    titleFromFilename(filePath),
		Outline:  outline,
		FullText: sb.String(),
	}, nil
}
