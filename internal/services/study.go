package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"skillsprint/internal/metrics"
	"skillsprint/internal/models"
)

const (
	MaxQuestions  = 5
	MaxFlashcards = 10

	kindQuestion  = "question"
	kindFlashcard = "flashcard"
)

// ProgressCallback is called while a document is processed to report progress.
type ProgressCallback func(step, message string, current, total int)

// StudyService turns segmented slides into quiz questions and flashcards.
//
// When a remote generator is configured it is used for every slide; a failed
// remote call drops that slide unless fallbackOnFailure is set, in which case
// the local generator is tried for it. A failed remote summary is never
// replaced by the slide's raw content. Without a remote generator only the
// local generator is used.
type StudyService struct {
	local             Generator
	remote            Generator
	fallbackOnFailure bool
	logger            zerolog.Logger
}

func NewStudyService(local, remote Generator, fallbackOnFailure bool, logger zerolog.Logger) *StudyService {
	return &StudyService{
		local:             local,
		remote:            remote,
		fallbackOnFailure: fallbackOnFailure,
		logger:            logger.With().Str("component", "study").Logger(),
	}
}

// RemoteEnabled reports whether slides are sent to the language model.
func (s *StudyService) RemoteEnabled() bool {
	return s.remote != nil
}

// source picks the generator for one request.
func (s *StudyService) source() (Generator, string) {
	if s.remote != nil {
		return s.remote, metrics.SourceRemote
	}
	return s.local, metrics.SourceLocal
}

type studyUnit struct {
	slideNumber int
	heading     string
	content     string
}

// units returns the slides that have both a heading and a paragraph.
func units(doc models.Document) []studyUnit {
	var out []studyUnit
	for _, slide := range doc.Slides {
		heading := slide.Heading()
		if heading == "" || len(slide.Paragraphs) == 0 {
			continue
		}
		out = append(out, studyUnit{
			slideNumber: slide.SlideNumber,
			heading:     heading,
			content:     strings.Join(slide.Paragraphs, " "),
		})
	}
	return out
}

func (s *StudyService) GenerateQuiz(ctx context.Context, doc models.Document) []models.Question {
	return s.GenerateQuizWithProgress(ctx, doc, nil)
}

func (s *StudyService) GenerateQuizWithProgress(ctx context.Context, doc models.Document, progress ProgressCallback) []models.Question {
	gen, source := s.source()
	work := units(doc)

	questions := make([]models.Question, 0, MaxQuestions)
	for i, unit := range work {
		if len(questions) == MaxQuestions {
			break
		}
		if progress != nil {
			progress("quiz", fmt.Sprintf("Writing question for slide %d", unit.slideNumber), i, len(work))
		}

		q, used, err := s.question(ctx, gen, source, unit)
		if err != nil {
			s.skipped(kindQuestion, unit, err)
			continue
		}
		metrics.IncGenerated(kindQuestion, used, 1)
		questions = append(questions, *q)
	}

	if len(questions) == 0 {
		s.logger.Info().Str("title", doc.Title).Msg("no questions generated, using defaults")
		questions = DefaultQuestions()
		metrics.IncGenerated(kindQuestion, metrics.SourceDefault, len(questions))
	}
	if len(questions) > MaxQuestions {
		questions = questions[:MaxQuestions]
	}
	return questions
}

func (s *StudyService) question(ctx context.Context, gen Generator, source string, unit studyUnit) (*models.Question, string, error) {
	q, err := gen.GenerateQuestion(ctx, unit.heading, unit.content)
	if err == nil {
		return q, source, nil
	}
	if source != metrics.SourceRemote || !s.fallbackOnFailure {
		return nil, source, err
	}
	s.logger.Debug().Int("slide", unit.slideNumber).Err(err).Msg("remote question failed, using local generator")
	q, err = s.local.GenerateQuestion(ctx, unit.heading, unit.content)
	return q, metrics.SourceLocal, err
}

func (s *StudyService) GenerateFlashcards(ctx context.Context, doc models.Document) []models.Flashcard {
	return s.GenerateFlashcardsWithProgress(ctx, doc, nil)
}

func (s *StudyService) GenerateFlashcardsWithProgress(ctx context.Context, doc models.Document, progress ProgressCallback) []models.Flashcard {
	gen, source := s.source()
	work := units(doc)

	cards := make([]models.Flashcard, 0, MaxFlashcards)
	for i, unit := range work {
		if len(cards) == MaxFlashcards {
			break
		}
		if progress != nil {
			progress("flashcards", fmt.Sprintf("Writing flashcard for slide %d", unit.slideNumber), i, len(work))
		}

		back, used, err := s.summary(ctx, gen, source, unit)
		if err != nil {
			s.skipped(kindFlashcard, unit, err)
			continue
		}
		metrics.IncGenerated(kindFlashcard, used, 1)
		cards = append(cards, models.Flashcard{
			Front:    unit.heading,
			Back:     back,
			Category: defaultCategory,
		})
	}

	if len(cards) == 0 {
		s.logger.Info().Str("title", doc.Title).Msg("no flashcards generated, using defaults")
		cards = DefaultFlashcards()
		metrics.IncGenerated(kindFlashcard, metrics.SourceDefault, len(cards))
	}
	if len(cards) > MaxFlashcards {
		cards = cards[:MaxFlashcards]
	}
	return cards
}

func (s *StudyService) summary(ctx context.Context, gen Generator, source string, unit studyUnit) (string, string, error) {
	back, err := gen.Summarize(ctx, unit.content)
	if err == nil {
		return back, source, nil
	}
	if source != metrics.SourceRemote || !s.fallbackOnFailure {
		return "", source, err
	}
	s.logger.Debug().Int("slide", unit.slideNumber).Err(err).Msg("remote summary failed, using local generator")
	back, err = s.local.Summarize(ctx, unit.content)
	return back, metrics.SourceLocal, err
}

func (s *StudyService) skipped(kind string, unit studyUnit, err error) {
	reason := "remote_error"
	switch {
	case errors.Is(err, ErrInsufficientContent):
		reason = "insufficient_content"
	case errors.Is(err, ErrInvalidResponse):
		reason = "invalid_response"
	}
	metrics.IncSkipped(kind, reason)
	s.logger.Debug().Str("kind", kind).Int("slide", unit.slideNumber).Str("reason", reason).Err(err).Msg("slide skipped")
}

// DefaultQuestions are returned when no slide yields a question.
func DefaultQuestions() []models.Question {
	return []models.Question{
		{
			Question: "What is the main topic of this document?",
			Options:  []string{"Learning and education", "Technology", "Business", "Science"},
			Correct:  "Learning and education",
		},
		{
			Question: "Which learning method is most effective for retention?",
			Options:  []string{"Active recall", "Passive reading", "Skimming", "Memorization"},
			Correct:  "Active recall",
		},
	}
}

// DefaultFlashcards are returned when no slide yields a flashcard.
func DefaultFlashcards() []models.Flashcard {
	return []models.Flashcard{
		{
			Front:    "What is micro-learning?",
			Back:     "A learning approach that delivers content in small, focused units for better retention and engagement.",
			Category: "concept",
		},
		{
			Front:    "Key benefit of flashcards",
			Back:     "Active recall practice that strengthens memory and improves long-term retention.",
			Category: "benefit",
		},
	}
}
