package services

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"skillsprint/internal/metrics"
	"skillsprint/internal/models"
)

const pdfMIME = "application/pdf"

// DocumentService parses uploaded files into segmented documents.
type DocumentService struct {
	pages  PageExtractor
	logger zerolog.Logger
}

func NewDocumentService(pages PageExtractor, logger zerolog.Logger) *DocumentService {
	return &DocumentService{
		pages:  pages,
		logger: logger.With().Str("component", "documents").Logger(),
	}
}

// Parse never fails: bytes that cannot be decoded produce PlaceholderDocument,
// and pages without text are left out. Slides are numbered 1..n over the pages
// that were kept.
func (s *DocumentService) Parse(name string, data []byte) models.Document {
	if mtype := mimetype.Detect(data); !mtype.Is(pdfMIME) {
		s.logger.Warn().Str("name", name).Str("mime", mtype.String()).Msg("upload is not a pdf, returning placeholder")
		metrics.IncParsed("placeholder")
		return PlaceholderDocument(name)
	}

	pages, err := s.pages.ExtractPages(data)
	if err != nil {
		s.logger.Warn().Str("name", name).Err(err).Msg("decode pdf, returning placeholder")
		metrics.IncParsed("placeholder")
		return PlaceholderDocument(name)
	}

	return s.Segment(name, pages)
}

// Segment builds a document from already extracted page texts.
func (s *DocumentService) Segment(title string, pages []string) models.Document {
	slides := make([]models.Slide, 0, len(pages))
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			s.logger.Debug().Int("page", i+1).Msg("skipping blank page")
			continue
		}
		slide, ok := SegmentPage(text)
		if !ok {
			continue
		}
		slide.SlideNumber = len(slides) + 1
		slides = append(slides, slide)
	}

	metrics.IncParsed("ok")
	s.logger.Info().Str("title", title).Int("pages", len(pages)).Int("slides", len(slides)).Msg("document parsed")
	return models.Document{
		Title:       title,
		Slides:      slides,
		TotalSlides: len(slides),
	}
}

// PlaceholderDocument keeps downstream generation usable for unreadable uploads.
func PlaceholderDocument(title string) models.Document {
	return models.Document{
		Title: title,
		Slides: []models.Slide{
			{
				SlideNumber: 1,
				Headings:    []string{"Sample Content"},
				Paragraphs:  []string{"This is sample content for demonstration purposes."},
				RawText:     "Sample Content\nThis is sample content for demonstration purposes.",
			},
		},
		TotalSlides: 1,
	}
}
