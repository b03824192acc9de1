package services

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/Perrohpta23/chatbot/internal/models"
)

// ChatTurn is one entry of the context window sent upstream.
type ChatTurn struct {
	Role    string
	Content string
}

// LLMClient generates a single reply from an assembled context window.
type LLMClient interface {
	Generate(ctx context.Context, turns []ChatTurn) (string, error)
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	model llms.Model
}

func NewOpenAIClient(baseURL, token, model string) (*OpenAIClient, error) {
	llm, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return &OpenAIClient{model: llm}, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, turns []ChatTurn) (string, error) {
	content := make([]llms.MessageContent, 0, len(turns))
	for _, t := range turns {
		content = append(content, llms.TextParts(roleToMessageType(t.Role), t.Content))
	}

	resp, err := c.model.GenerateContent(ctx, content)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("upstream returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func roleToMessageType(role string) schema.ChatMessageType {
	switch role {
	case models.RoleSystem:
		return schema.ChatMessageTypeSystem
	case models.RoleAssistant:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}
