package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/markdave123-py/docingest/internal/models"
)

const (
	maxTitleRunes   = 200
	maxHeadingRunes = 120

	// FallbackSectionTitle names the single section synthesised when no headings are found.
	FallbackSectionTitle = "Document Content"
)

// numberedHeading matches "1. Intro", "1.2 Scope", "2.3.1 Terms", "A. Annex" and "b) Notes".
var numberedHeading = regexp.MustCompile(`^(?:\d+(?:\.\d+)+\.?|\d+[.)]|[A-Za-z][.)])\s+(\S.*)$`)

// SectionID derives a stable identifier from a section's lowercased title, level and position.
func SectionID(title string, level, position int) string {
	key := strings.ToLower(title) + "|" + strconv.Itoa(level) + "|" + strconv.Itoa(position)
	sum := sha256.Sum256([]byte(key))
	return "sec_" + hex.EncodeToString(sum[:])[:16]
}

func newSection(title string, level, position int) models.OutlineSection {
	return models.OutlineSection{
		ID:       SectionID(title, level, position),
		Title:    title,
		Level:    level,
		Position: position,
	}
}

func fallbackOutline() []models.OutlineSection {
	return []models.OutlineSection{newSection(FallbackSectionTitle, 1, 0)}
}

// heuristicOutline flags short lines as headings when they are ALL-CAPS
// (level 1) or carry a numbering prefix (level 2, prefix stripped).
func heuristicOutline(text string) []models.OutlineSection {
	var outline []models.OutlineSection

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || utf8.RuneCountInString(line) > maxHeadingRunes {
			continue
		}

		if m := numberedHeading.FindStringSubmatch(line); m != nil {
			title := strings.TrimSpace(m[1])
			if title != "" {
				outline = append(outline, newSection(title, 2, len(outline)))
			}
			continue
		}
		if isAllCaps(line) {
			outline = append(outline, newSection(line, 1, len(outline)))
		}
	}
	return outline
}

func isAllCaps(s string) bool {
	if utf8.RuneCountInString(s) <= 3 {
		return false
	}
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			return l
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// titleFromFilename strips the extension and capitalises each word.
func titleFromFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)

	words := strings.Fields(name)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
