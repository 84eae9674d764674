package llm

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI implements Client using the official openai-go SDK (chat completions).
// Groq and DeepSeek expose OpenAI-compatible endpoints and go through here too.
type OpenAI struct {
	Provider    string
	Model       string
	Temperature float64
	client      openai.Client
}

func NewOpenAIFromSettings(cfg *Settings) (*OpenAI, error) {
	if cfg == nil {
		return nil, errors.New("llm settings are nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("llm api key missing; provide llm.api_key or LLM_API_KEY")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	return &OpenAI{
		Provider:    provider,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		client:      openai.NewClient(opts...),
	}, nil
}

func (o *OpenAI) Complete(ctx context.Context, prompt Prompt) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
	}
	if o.Temperature > 0 {
		params.Temperature = openai.Float(o.Temperature)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", &TransformError{Provider: o.Provider, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &TransformError{Provider: o.Provider, Err: errors.New("empty choices")}
	}
	return resp.Choices[0].Message.Content, nil
}
