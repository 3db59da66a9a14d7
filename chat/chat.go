// Package chat forwards free-text prompts to an OpenAI-compatible language
// model endpoint and returns its prose response. The browser controller
// never depends on it; it is an opaque text generator behind one endpoint.
package chat

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultBaseURL is Gemini's OpenAI-compatible endpoint; any compatible
// server works.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

const DefaultModel = "gemini-2.0-flash"

const systemPrompt = `You are an AI assistant that helps users browse the web and complete tasks. Parse the user's request and provide:
1. A clear understanding of what they want
2. The action to take (browse, search, order, book, etc.)
3. Any specific details or preferences
4. If it requires web browsing, indicate which site or search to perform

Respond in a conversational way and indicate what browsing action you'll take.`

// Client talks to the model endpoint.
type Client struct {
	api   *openai.Client
	model string
}

// New builds a client. Empty baseURL and model fall back to the defaults.
func New(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cfg.BaseURL = baseURL
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}
}

// Respond sends message (plus optional conversational context) to the model
// and returns its text reply.
func (c *Client) Respond(ctx context.Context, message, context_ string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("message is required")
	}

	user := message
	if context_ != "" {
		user = fmt.Sprintf("%s\n\nContext: %s", message, context_)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}
	return resp.Choices[0].Message.Content, nil
}
