// Package openai provides the OpenAI implementation of the summarization provider.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Client is an OpenAI summarization client.
// It implements the summarizer.Provider interface using the OpenAI Chat
// Completions API.
type Client struct {
	client *openai.Client
	model  string
}

// Config is the configuration for the OpenAI summarizer.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// Model is the chat model name (default: gpt-4o-mini).
	Model string

	// BaseURL is the API base URL (optional, defaults to the OpenAI endpoint).
	BaseURL string
}

// NewClient creates a new OpenAI summarization client.
func NewClient(cfg *Config) (*Client, error) {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Summarize converts raw memory content into a short summary, optionally
// addressed to the owner by first name.
func (c *Client) Summarize(ctx context.Context, content, firstName string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summaryPrompt(firstName)},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
		Temperature: 0.3,
		MaxTokens:   120,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("summary generation failed: no choices returned from OpenAI API")
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", errors.New("summary generation failed: empty response")
	}

	return summary, nil
}

// Close closes the client connection.
// The OpenAI SDK client does not require explicit closing; this method is
// retained for interface compatibility.
func (c *Client) Close() error {
	return nil
}

// summaryPrompt returns the system prompt for summary generation.
func summaryPrompt(firstName string) string {
	base := `You summarize facts extracted from a user's journal entries and chat messages.

[Instructions]:
1. Write a single concise summary of the memory content, at most two sentences
2. Keep only durable, factual information; drop filler and conversational framing
3. Write in natural language, not as structured data
4. Never return an empty response; if the content is trivial, restate it briefly`

	if firstName == "" {
		return base
	}
	return base + fmt.Sprintf(`
5. Refer to the user by their first name, %s, so the summary reads personally`, firstName)
}
