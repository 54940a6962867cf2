package services

import (
	"context"
	"errors"

	"skillsprint/internal/models"
)

var (
	// ErrAIUnavailable is returned when the OpenAI integration is not configured.
	ErrAIUnavailable = errors.New("openai integration is not configured")
	// ErrInsufficientContent means a slide is too short or has no usable keywords.
	ErrInsufficientContent = errors.New("insufficient content for generation")
	// ErrInvalidResponse means the language model answered with something unusable.
	ErrInvalidResponse = errors.New("invalid response from language model")
)

// Generator produces study material for a single heading/content pair.
// Any returned error means "no item for this slide".
type Generator interface {
	// Summarize returns a short flashcard answer for content.
	Summarize(ctx context.Context, content string) (string, error)
	// GenerateQuestion returns a four-option multiple-choice question.
	GenerateQuestion(ctx context.Context, heading, content string) (*models.Question, error)
}

// Rand is the randomness used by the local generator. *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}
