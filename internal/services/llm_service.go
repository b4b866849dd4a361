package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/justsurfingit/jobtrackai/internal/config"
	"github.com/justsurfingit/jobtrackai/internal/logger"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// Oracle is the narrow boundary to the text-completion model. It is
// non-deterministic and fallible; callers must never trust the output as
// structured without defensive parsing, and must degrade on error rather
// than retry.
type Oracle interface {
	Complete(ctx context.Context, systemPrompt, userMessage string, wantJSON bool) (string, error)
}

var ErrEmptyCompletion = errors.New("oracle returned no content")

type LLMService struct {
	client  llms.Model
	log     *logger.Logger
	timeout time.Duration
}

// NewLLMService initializes the Gemini client. The API key must be present;
// everything else has sane defaults.
func NewLLMService(ctx context.Context, baseLog *logger.Logger) (*LLMService, error) {
	log := baseLog.With("service", "LLMService")

	apiKey := config.GetEnv("GEMINI_API_KEY", "")
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	model := config.GetEnv("GEMINI_MODEL", "gemini-2.5-flash")

	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, err
	}

	return &LLMService{
		client:  llm,
		log:     log,
		timeout: config.GetEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
	}, nil
}

// Complete sends a system instruction plus a user payload and returns the
// raw text. The call is bounded by a client-side timeout.
func (s *LLMService) Complete(ctx context.Context, systemPrompt, userMessage string, wantJSON bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := []llms.CallOption{
		llms.WithTemperature(0.1),
		llms.WithMaxTokens(800),
	}
	if wantJSON {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := s.client.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userMessage),
	}, opts...)
	if err != nil {
		s.log.Warn("Completion failed", "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
