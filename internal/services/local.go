package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"unicode/utf8"

	"skillsprint/internal/models"
)

const (
	minQuestionContentLen = 20
	keyPointSourceLen     = 100
	maxFlashcardBackLen   = 150

	defaultFront    = "Key Concept"
	defaultCategory = "main"
)

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// Purpose, definition, benefits and process questions, each with the phrase
// used when there is no subject.
var questionTemplates = []struct {
	format   string
	fallback string
}{
	{format: "What is the main purpose of %s?", fallback: "this topic"},
	{format: "Which of the following best describes %s?", fallback: "the main concept"},
	{format: "What are the key benefits of %s?", fallback: "this approach"},
	{format: "How does %s work?", fallback: "this process"},
}

var distractors = []string{
	"an unrelated process",
	"a different approach",
	"an outdated method",
	"a competing technology",
}

// LocalGenerator builds questions and flashcards from text heuristics alone.
type LocalGenerator struct {
	rnd Rand
}

// NewLocalGenerator returns a generator drawing from rnd. A nil rnd uses the
// goroutine-safe top-level math/rand/v2 source.
func NewLocalGenerator(rnd Rand) *LocalGenerator {
	if rnd == nil {
		rnd = globalRand{}
	}
	return &LocalGenerator{rnd: rnd}
}

func (g *LocalGenerator) GenerateQuestion(_ context.Context, _ string, content string) (*models.Question, error) {
	clean := CleanText(content)
	if utf8.RuneCountInString(clean) < minQuestionContentLen {
		return nil, fmt.Errorf("%w: %d characters", ErrInsufficientContent, utf8.RuneCountInString(clean))
	}

	concepts := ExtractKeyConcepts(clean)
	if len(concepts) == 0 {
		return nil, fmt.Errorf("%w: no keywords", ErrInsufficientContent)
	}
	subject := concepts[0]

	tmpl := questionTemplates[g.rnd.IntN(len(questionTemplates))]
	topic := subject
	if topic == "" {
		topic = tmpl.fallback
	}

	options := make([]string, 0, 4)
	options = append(options, subject)
	options = append(options, distractors[:3]...)
	g.rnd.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	return &models.Question{
		Question:    fmt.Sprintf(tmpl.format, topic),
		Options:     options,
		Correct:     subject,
		Explanation: fmt.Sprintf("This question tests understanding of %s.", subject),
	}, nil
}

func (g *LocalGenerator) Summarize(_ context.Context, content string) (string, error) {
	return ConciseFlashcard("", content).Back, nil
}

// ConciseFlashcard builds a flashcard whose back is the first sentence of
// content, capped at 150 characters plus an ellipsis.
func ConciseFlashcard(heading, content string) models.Flashcard {
	clean := CleanText(content)

	keyPoint := clean
	if utf8.RuneCountInString(clean) > keyPointSourceLen {
		if sentenceEnd.MatchString(clean) {
			keyPoint = sentenceEnd.Split(clean, 2)[0]
		} else {
			keyPoint = truncateRunes(clean, keyPointSourceLen)
		}
	}

	back := keyPoint
	if utf8.RuneCountInString(keyPoint) > maxFlashcardBackLen {
		back = truncateRunes(keyPoint, maxFlashcardBackLen) + "..."
	}

	front := strings.TrimSpace(heading)
	if front == "" {
		front = defaultFront
	}

	return models.Flashcard{
		Front:    front,
		Back:     back,
		Category: defaultCategory,
	}
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }
func (globalRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }
