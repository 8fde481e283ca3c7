package extractor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/markdave123-py/docingest/internal/core"
)

// extractPDF prefers the pdftotext binary, which streams the document
// instead of loading it whole, and falls back to the in-process reader
// when the binary is missing or fails.
func (e *Extractor) extractPDF(ctx context.Context, filePath string) (*core.Extraction, error) {
	text, pages, err := e.pdfToolText(ctx, filePath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.WarnContext(ctx, "pdftotext unavailable, using in-process pdf reader", "error", err)
		text, pages, err = readPDF(filePath)
		if err != nil {
			return nil, err
		}
	}

	text = strings.ReplaceAll(text, "\f", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, permanent(nil, "corrupt or image-only pdf: no extractable text")
	}

	ex := &core.Extraction{
		Title:    firstNonEmptyLine(text),
		Outline:  heuristicOutline(text),
		FullText: text,
	}
	if pages > 0 {
		ex.PageCount = &pages
	}
	return ex, nil
}

func (e *Extractor) pdfToolText(ctx context.Context, filePath string) (string, int, error) {
	if e.pdfToText == "" {
		return "", 0, fmt.Errorf("pdftotext disabled")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.pdfToText, "-layout", "-enc", "UTF-8", filePath, "-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", 0, fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), e.pdfPageCount(ctx, filePath), nil
}

// pdfPageCount reads "Pages:" from pdfinfo. Zero means unknown.
func (e *Extractor) pdfPageCount(ctx context.Context, filePath string) int {
	if e.pdfInfo == "" {
		return 0
	}
	out, err := exec.CommandContext(ctx, e.pdfInfo, filePath).Output()
	if err != nil {
		e.logger.DebugContext(ctx, "pdfinfo failed", "error", err)
		return 0
	}
	return parsePdfInfoPages(out)
}

func parsePdfInfoPages(out []byte) int {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), ":")
		if !ok || strings.TrimSpace(key) != "Pages" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// readPDF extracts plain text with ledongthuc/pdf. The library panics on
// some malformed inputs, so panics are reported as corrupt files.
func readPDF(filePath string) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = permanent(nil, "corrupt pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return "", 0, permanent(err, "invalid file: cannot open pdf")
	}
	defer f.Close()

	rd, err := r.GetPlainText()
	if err != nil {
		return "", 0, permanent(err, "corrupt pdf")
	}
	b, err := io.ReadAll(rd)
	if err != nil {
		return "", 0, permanent(err, "corrupt pdf")
	}
	return string(b), r.NumPage(), nil
}
