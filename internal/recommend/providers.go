package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

// recommends with OpenAI Chat Completions
func NewOpenAIRecommender(apiKey string, opts Options) (Recommender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client := openai.NewClient(openaioption.WithAPIKey(apiKey))

	model := opts.Model
	if model == "" {
		model = "gpt-5-mini"
	}

	complete := func(ctx context.Context, prompt string) (string, error) {
		completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model: model,
		})
		if err != nil {
			return "", err
		}
		if completion == nil || len(completion.Choices) == 0 {
			return "", fmt.Errorf("empty response from OpenAI")
		}
		text := completion.Choices[0].Message.Content
		if text == "" {
			return "", fmt.Errorf("no text in OpenAI response")
		}
		return text, nil
	}

	return &llmRecommender{name: "openai", complete: complete, sink: opts.sink()}, nil
}

// recommends with Anthropic Claude
func NewAnthropicRecommender(apiKey string, opts Options) (Recommender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client := anthropic.NewClient(anthropicoption.WithAPIKey(apiKey))

	model := anthropic.Model(opts.Model)
	if opts.Model == "" {
		model = anthropic.ModelClaudeHaiku4_5
	}

	complete := func(ctx context.Context, prompt string) (string, error) {
		message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     model,
			MaxTokens: 4096,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return "", err
		}
		if message == nil || len(message.Content) == 0 {
			return "", fmt.Errorf("empty response from Anthropic")
		}

		var sb strings.Builder
		for _, block := range message.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		if sb.Len() == 0 {
			return "", fmt.Errorf("no text in Anthropic response")
		}
		return sb.String(), nil
	}

	return &llmRecommender{name: "anthropic", complete: complete, sink: opts.sink()}, nil
}

// recommends with Google Gemini
func NewGeminiRecommender(ctx context.Context, apiKey string, opts Options) (Recommender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	complete := func(ctx context.Context, prompt string) (string, error) {
		contents := []*genai.Content{
			genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
		}
		result, err := client.Models.GenerateContent(ctx, model, contents, nil)
		if err != nil {
			return "", err
		}
		if result == nil || len(result.Candidates) == 0 {
			return "", fmt.Errorf("empty response from Gemini")
		}

		var sb strings.Builder
		for _, candidate := range result.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				sb.WriteString(part.Text)
			}
			if sb.Len() > 0 {
				break
			}
		}
		if sb.Len() == 0 {
			return "", fmt.Errorf("no text in Gemini response")
		}
		return sb.String(), nil
	}

	return &llmRecommender{name: "gemini", complete: complete, sink: opts.sink()}, nil
}
