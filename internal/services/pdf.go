package services

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

// ErrUndecodable is returned when uploaded bytes cannot be read as a PDF.
var ErrUndecodable = errors.New("document cannot be decoded")

// PageExtractor returns the plain text of every page, in page order, with
// one line of text per visual line.
type PageExtractor interface {
	ExtractPages(data []byte) ([]string, error)
}

type PDFService struct {
	logger zerolog.Logger
}

func NewPDFService(logger zerolog.Logger) *PDFService {
	return &PDFService{logger: logger.With().Str("component", "pdf").Logger()}
}

// ExtractPages reads data as a PDF. A page whose text cannot be read is
// returned as an empty string so page positions are preserved.
func (s *PDFService) ExtractPages(data []byte) (pages []string, err error) {
	// ledongthuc/pdf panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", ErrUndecodable, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	numPages := reader.NumPage()
	pages = make([]string, 0, numPages)
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := pageText(page)
		if err != nil {
			s.logger.Warn().Int("page", pageNum).Err(err).Msg("read page text")
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// Glyphs whose baselines differ by more than lineTolerance font sizes start a
// new line; a horizontal gap wider than wordGap font sizes is a word break.
const (
	lineTolerance = 0.5
	wordGap       = 0.15
	minFontSize   = 1
)

// pageText returns whichever of the positioned glyph layout and the plain
// text stream yields more lines, preferring the layout on a tie.
func pageText(page pdf.Page) (string, error) {
	lines, err := contentLines(page)
	plain, plainErr := page.GetPlainText(nil)
	if err != nil && plainErr != nil {
		return "", err
	}

	plainLines := nonBlankLines(plain)
	if err != nil || (plainErr == nil && len(plainLines) > len(lines)) {
		return strings.Join(plainLines, "\n"), nil
	}
	return strings.Join(lines, "\n"), nil
}

// contentLines rebuilds text lines from glyph positions.
func contentLines(page pdf.Page) (lines []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines = nil
			err = fmt.Errorf("read page content: %v", r)
		}
	}()

	var (
		b       strings.Builder
		prev    pdf.Text
		started bool
		space   bool
	)
	flush := func() {
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
		b.Reset()
	}

	for _, glyph := range page.Content().Text {
		// TJ arrays end with a synthetic newline glyph
		if strings.TrimFunc(glyph.S, unicode.IsControl) == "" {
			continue
		}
		if strings.TrimSpace(glyph.S) == "" {
			space = true
			continue
		}

		if started {
			size := max(math.Abs(glyph.FontSize), minFontSize)
			switch {
			case math.Abs(glyph.Y-prev.Y) > size*lineTolerance:
				flush()
			case space || glyph.X-(prev.X+prev.W) > size*wordGap:
				b.WriteByte(' ')
			}
		}
		b.WriteString(glyph.S)
		prev, started, space = glyph, true, false
	}
	flush()
	return lines, nil
}

func nonBlankLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
