package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentgate-oss/agentgate/internal/config"
)

// Anthropic talks to the Anthropic Messages API. The API has no
// structured-output mode, so the output schema is appended to the user
// turn and conformance is enforced by the engine's output validation.
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic builds a backend against the Anthropic Messages API.
func NewAnthropic(cfg config.BackendConfig) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaude3_5SonnetLatest)
	}
	return &Anthropic{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (b *Anthropic) Name() string { return "anthropic" }

func (b *Anthropic) Complete(ctx context.Context, prompt string, outputSchema map[string]interface{}) (*Result, error) {
	userPrompt := prompt
	if schemaJSON, err := json.Marshal(outputSchema); err == nil {
		userPrompt = prompt + "\n\nThe response must conform to this JSON Schema:\n" + string(schemaJSON)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("API error (status %d): %s", apiErr.StatusCode, apiErr.Error())
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	return parseResult(text.String()), nil
}
