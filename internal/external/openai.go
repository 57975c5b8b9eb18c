package external

import (
	"context"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"swellwatch/internal/types"
)

const defaultCompletionModel = "gpt-4o-mini"

// OpenAIGenerator implements types.TextGenerator over the OpenAI chat
// completions API. It produces short alert copy only; anything long-form
// would be the wrong tool for a push notification body.
type OpenAIGenerator struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// OpenAIGeneratorConfig configures an OpenAIGenerator.
type OpenAIGeneratorConfig struct {
	APIKey types.SecretString
	// Model defaults to gpt-4o-mini.
	Model string
	// MaxTokens caps the completion length, default 120.
	MaxTokens int64
}

// NewOpenAIGenerator creates an OpenAIGenerator.
func NewOpenAIGenerator(cfg OpenAIGeneratorConfig) *OpenAIGenerator {
	model := cfg.Model
	if model == "" {
		model = defaultCompletionModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 120
	}
	return &OpenAIGenerator{
		client:    openai.NewClient(option.WithAPIKey(cfg.APIKey.Unmask())),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Generate returns one completion for the voice instruction applied to the
// condition facts. The caller owns timeout and fallback behavior.
func (g *OpenAIGenerator) Generate(ctx context.Context, instruction, facts string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instruction),
			openai.UserMessage(facts),
		},
		MaxTokens: openai.Int(g.maxTokens),
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeGenerationFailed,
			"completion request failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", types.NewAppError(types.ErrCodeGenerationEmpty,
			"completion returned no choices", nil)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", types.NewAppError(types.ErrCodeGenerationEmpty,
			"completion returned empty content", nil)
	}
	return text, nil
}

var _ types.TextGenerator = (*OpenAIGenerator)(nil)
