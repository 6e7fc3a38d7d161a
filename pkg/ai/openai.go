package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig defines configuration options for the OpenAI completer. Setting
// AzureEndpoint switches the client to Azure OpenAI deployments.
type OpenAIConfig struct {
	APIKey          string
	Model           string
	BaseURL         string
	AzureEndpoint   string
	AzureAPIVersion string
	AzureDeployment string
}

// OpenAICompleter implements Completer against the chat completion API.
type OpenAICompleter struct {
	client   *openai.Client
	model    string
	provider string
}

// NewOpenAICompleter builds a completer using the provided configuration.
func NewOpenAICompleter(cfg OpenAIConfig) (*OpenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	provider := "openai"
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.AzureEndpoint != "" {
		provider = "azure-openai"
		config = openai.DefaultAzureConfig(cfg.APIKey, cfg.AzureEndpoint)
		if cfg.AzureAPIVersion != "" {
			config.APIVersion = cfg.AzureAPIVersion
		}
		if deployment := strings.TrimSpace(cfg.AzureDeployment); deployment != "" {
			cfg.Model = deployment
			config.AzureModelMapperFunc = func(string) string { return deployment }
		}
	} else if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAICompleter{
		client:   openai.NewClientWithConfig(config),
		model:    cfg.Model,
		provider: provider,
	}, nil
}

// Provider names the backend for metrics and logs.
func (o *OpenAICompleter) Provider() string {
	return o.provider
}

// Complete sends the prompt and returns the first choice's content. A response
// without choices yields an empty string.
func (o *OpenAICompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	model := o.model
	if prompt.Model != "" {
		model = prompt.Model
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   prompt.MaxTokens,
		Temperature: prompt.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt.User},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
