package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/platform/config"
	"dronewatch-server-go/internal/platform/errors"
	"dronewatch-server-go/internal/platform/logging"
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint with vision support.
type OpenAI struct {
	client *openai.Client
	model  string
	logger *logging.Logger
}

// NewOpenAI builds the backend. An API key is required.
func NewOpenAI(cfg config.BackendConfig, logger *logging.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.KindConfig, "backend.openai", "OpenAI API key is required")
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = httpClient(cfg.Timeout)

	model := cfg.ModelName
	if model == "" {
		model = openai.GPT4oMini
	}
	logger.DebugTag("BACKEND", "openai backend ready: base_url=%s model=%s", clientConfig.BaseURL, model)

	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger,
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

// Complete sends the instruction and frame as one multimodal user message.
func (o *OpenAI) Complete(ctx context.Context, req detection.Request) (string, error) {
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: req.Instruction},
	}
	if !req.Frame.Empty() {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    req.Frame.DataURI(),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	request := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	o.logger.DebugTag("BACKEND", "openai request: model=%s image_bytes=%d", o.model, len(req.Frame.Data))
	resp, err := o.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
