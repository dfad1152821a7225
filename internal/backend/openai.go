package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/agentgate-oss/agentgate/internal/config"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenAI talks to the OpenAI Chat Completions API (or any compatible
// endpoint, which is how OpenRouter is wired). Structured output is
// requested via the json_schema response format.
type OpenAI struct {
	client openai.Client
	model  string
	name   string
}

// NewOpenAI builds a backend against api.openai.com.
func NewOpenAI(cfg config.BackendConfig) *OpenAI {
	return newOpenAI(cfg, "openai", "gpt-4o-mini", "")
}

// NewOpenRouter builds an OpenAI-compatible backend against OpenRouter,
// which fronts many model families behind one API key.
func NewOpenRouter(cfg config.BackendConfig) *OpenAI {
	return newOpenAI(cfg, "openrouter", "openai/gpt-4o-mini", openRouterBaseURL)
}

func newOpenAI(cfg config.BackendConfig, name, defaultModel, defaultBaseURL string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
		name:   name,
	}
}

func (b *OpenAI) Name() string { return b.name }

func (b *OpenAI) Complete(ctx context.Context, prompt string, outputSchema map[string]interface{}) (*Result, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "agent_output",
					Schema: outputSchema,
				},
			},
		},
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("API error (status %d): %s", apiErr.StatusCode, apiErr.Error())
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("API error (status 502): completion returned no choices")
	}

	return parseResult(resp.Choices[0].Message.Content), nil
}
