package services

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"skillsprint/internal/models"
)

const (
	headingScanLines    = 3
	maxHeadingLen       = 100
	maxHeadingWords     = 8
	fallbackHeadingLen  = 50
	minParagraphLineLen = 20
)

// SegmentPage infers a heading and paragraphs from one page of plain
// extracted text. It reports false when the page has no non-blank line.
// SlideNumber is left for the caller to assign.
func SegmentPage(text string) (models.Slide, bool) {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		if line := strings.TrimSpace(raw); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return models.Slide{}, false
	}

	heading := detectHeading(lines)

	paragraphs := []string{}
	var current []string
	for _, line := range lines {
		if line == heading {
			continue
		}
		if utf8.RuneCountInString(line) > minParagraphLineLen {
			current = append(current, line)
			continue
		}
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
		}
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, " "))
	}

	headings := []string{}
	if heading != "" {
		headings = append(headings, heading)
	}

	return models.Slide{
		Headings:   headings,
		Paragraphs: paragraphs,
		RawText:    text,
	}, true
}

func detectHeading(lines []string) string {
	for i, line := range lines {
		if i >= headingScanLines {
			break
		}
		if looksLikeHeading(line) {
			return line
		}
	}
	return truncateRunes(lines[0], fallbackHeadingLen)
}

func looksLikeHeading(line string) bool {
	if utf8.RuneCountInString(line) >= maxHeadingLen {
		return false
	}
	if isAllUpper(line) {
		return true
	}
	first, _ := utf8.DecodeRuneInString(line)
	return unicode.IsUpper(first) && len(strings.Fields(line)) <= maxHeadingWords
}

// isAllUpper reports whether line has at least one cased letter and no
// lower-case ones.
func isAllUpper(line string) bool {
	cased := false
	for _, r := range line {
		switch {
		case unicode.IsLower(r), unicode.IsTitle(r):
			return false
		case unicode.IsUpper(r):
			cased = true
		}
	}
	return cased
}
