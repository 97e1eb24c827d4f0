// Package llm wraps an OpenAI-compatible chat completion API behind a
// narrow Port, used by internal/extraction's dual-pass extraction and
// internal/exception's root-cause narration (spec §6, §4.4).
package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultTimeout = 60 * time.Second
)

// Port is the narrow interface internal/extraction and internal/exception
// depend on; Client and StubClient both satisfy it.
type Port interface {
	// Chat returns the raw completion text, the model that actually served
	// it, token counts, and latency — callers log all of this to
	// AICallLog regardless of outcome (spec §4.4).
	Chat(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (content, model string, promptTokens, completionTokens, latencyMs int, err error)

	// ChatImage is Chat's multimodal counterpart, used by internal/ocr to
	// transcribe a rendered invoice page (spec §4.10 stage 2).
	ChatImage(ctx context.Context, systemPrompt, userPrompt string, imageData []byte, mimeType string, maxTokens int) (content, model string, promptTokens, completionTokens, latencyMs int, err error)
}

// Client is a thin OpenAI-compatible chat client.
type Client struct {
	client       openai.Client
	defaultModel string
}

func NewClient(apiKey, baseURL, defaultModel string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
			option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
		),
		defaultModel: defaultModel,
	}
}

func (c *Client) Chat(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, string, int, int, int, error) {
	start := time.Now()

	messages := []openai.ChatCompletionMessageParamUnion{}
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.defaultModel,
		Messages:    messages,
		MaxTokens:   param.NewOpt(int64(maxTokens)),
		Temperature: param.NewOpt(0.1),
	})
	latencyMs := int(time.Since(start).Milliseconds())
	if err != nil {
		return "", c.defaultModel, 0, 0, latencyMs, fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", c.defaultModel, 0, 0, latencyMs, fmt.Errorf("llm: no choices in response")
	}

	promptTokens := int(resp.Usage.PromptTokens)
	completionTokens := int(resp.Usage.CompletionTokens)
	return resp.Choices[0].Message.Content, resp.Model, promptTokens, completionTokens, latencyMs, nil
}

// ChatImage sends a multimodal request: a rendered page image alongside a
// text prompt, used to transcribe invoice pages the OCR stage cannot read
// as plain text (spec §4.10 stage 2).
func (c *Client) ChatImage(ctx context.Context, systemPrompt, userPrompt string, imageData []byte, mimeType string, maxTokens int) (string, string, int, int, int, error) {
	start := time.Now()

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData))

	messages := []openai.ChatCompletionMessageParamUnion{}
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(userPrompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
	}))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.defaultModel,
		Messages:    messages,
		MaxTokens:   param.NewOpt(int64(maxTokens)),
		Temperature: param.NewOpt(0.1),
	})
	latencyMs := int(time.Since(start).Milliseconds())
	if err != nil {
		return "", c.defaultModel, 0, 0, latencyMs, fmt.Errorf("llm: vision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", c.defaultModel, 0, 0, latencyMs, fmt.Errorf("llm: no choices in vision response")
	}

	return resp.Choices[0].Message.Content, resp.Model, int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens), latencyMs, nil
}
