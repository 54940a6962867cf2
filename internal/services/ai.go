package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"skillsprint/internal/metrics"
	"skillsprint/internal/models"
)

const (
	summarizeMaxTokens   = 60
	summarizeTemperature = 0.3
	questionMaxTokens    = 200
	questionTemperature  = 0.7

	maxPromptContent = 6000
)

const summarizePrompt = `Create a concise flashcard answer (max 60 words) from this content. Focus on the single most important concept. Use clear, simple language. Avoid jargon unless essential. Make it memorable and easy to recall.

Content: %s

Flashcard answer:`

const questionPrompt = `Based on the following content, write a single multiple-choice question (MCQ) with 4 short, plausible options. The question should be clear and not just copy a paragraph. Mark the correct answer. Format your response as JSON with keys: question, options (list), correct (string). Do not include explanations or extra text.
Heading: %s
Content: %s`

// AIConfig configures the OpenAI-compatible chat completion backend.
type AIConfig struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// AIService generates study material through an OpenAI-compatible chat API.
// A single attempt is made per call; every failure is returned as an error.
type AIService struct {
	client   *openai.Client
	model    string
	timeout  time.Duration
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewAIService(cfg AIConfig, logger zerolog.Logger) *AIService {
	svc := &AIService{
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		validate: validator.New(),
		logger:   logger.With().Str("component", "ai").Logger(),
	}
	if cfg.APIKey == "" {
		return svc
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	svc.client = openai.NewClientWithConfig(clientCfg)
	return svc
}

func (s *AIService) disabled() bool {
	return s.client == nil || s.model == ""
}

func (s *AIService) Summarize(ctx context.Context, content string) (string, error) {
	answer, err := s.complete(ctx, "summarize", fmt.Sprintf(summarizePrompt, sanitizeForPrompt(content, maxPromptContent)), summarizeMaxTokens, summarizeTemperature)
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%w: empty summary", ErrInvalidResponse)
	}
	return answer, nil
}

func (s *AIService) GenerateQuestion(ctx context.Context, heading, content string) (*models.Question, error) {
	prompt := fmt.Sprintf(questionPrompt, sanitizeForPrompt(heading, 200), sanitizeForPrompt(content, maxPromptContent))
	raw, err := s.complete(ctx, "question", prompt, questionMaxTokens, questionTemperature)
	if err != nil {
		return nil, err
	}

	q, err := s.parseQuestion(raw)
	if err != nil {
		s.logger.Debug().Str("raw", raw).Err(err).Msg("discarding model question")
		return nil, err
	}
	return q, nil
}

func (s *AIService) parseQuestion(raw string) (*models.Question, error) {
	jsonStr := extractJSON(raw)
	if !strings.HasPrefix(jsonStr, "{") {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrInvalidResponse)
	}

	var q models.Question
	if err := json.Unmarshal([]byte(jsonStr), &q); err != nil {
		return nil, fmt.Errorf("%w: unmarshal question: %v", ErrInvalidResponse, err)
	}
	q.Question = strings.TrimSpace(q.Question)
	q.Correct = strings.TrimSpace(q.Correct)
	for i := range q.Options {
		q.Options[i] = strings.TrimSpace(q.Options[i])
	}

	if err := s.validate.Struct(q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if !q.HasCorrectOption() {
		return nil, fmt.Errorf("%w: correct answer %q is not an option", ErrInvalidResponse, q.Correct)
	}
	return &q, nil
}

func (s *AIService) complete(ctx context.Context, operation, prompt string, maxTokens int, temperature float32) (string, error) {
	if s.disabled() {
		return "", ErrAIUnavailable
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		metrics.ObserveRemote(operation, s.model, "error", time.Since(start))
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			s.logger.Warn().Str("operation", operation).Int("status", apiErr.HTTPStatusCode).Str("code", fmt.Sprint(apiErr.Code)).Msg("openai request rejected")
		} else {
			s.logger.Warn().Str("operation", operation).Err(err).Msg("openai request failed")
		}
		return "", fmt.Errorf("request openai %s: %w", operation, err)
	}
	if len(resp.Choices) == 0 {
		metrics.ObserveRemote(operation, s.model, "empty", time.Since(start))
		return "", fmt.Errorf("%w: openai returned no choices", ErrInvalidResponse)
	}

	metrics.ObserveRemote(operation, s.model, "ok", time.Since(start))
	return resp.Choices[0].Message.Content, nil
}

// extractJSON removes markdown code block formatting if present and extracts the JSON
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		// Skip the opening fence and its language identifier line
		start := 3
		if newlineIdx := strings.Index(content[start:], "\n"); newlineIdx != -1 {
			start += newlineIdx + 1
		}
		if endIdx := strings.Index(content[start:], "```"); endIdx != -1 {
			content = content[start : start+endIdx]
		} else {
			content = content[start:]
		}
	}

	content = strings.TrimSpace(content)

	// First { through last } so surrounding prose is dropped
	if startIdx := strings.Index(content, "{"); startIdx != -1 {
		if endIdx := strings.LastIndex(content, "}"); endIdx != -1 && endIdx > startIdx {
			content = content[startIdx : endIdx+1]
		}
	}

	return strings.TrimSpace(content)
}

func sanitizeForPrompt(input string, limit int) string {
	collapsed := strings.Join(strings.Fields(strings.TrimSpace(input)), " ")
	if limit <= 0 {
		return collapsed
	}
	runes := []rune(collapsed)
	if len(runes) <= limit {
		return collapsed
	}
	if limit > 3 {
		return string(runes[:limit-3]) + "..."
	}
	return string(runes[:limit])
}
