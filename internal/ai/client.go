// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ai wraps an OpenAI-compatible chat API behind a narrow interface.
// The rewrite and filter stages depend on the Chat interface so tests can
// supply mocks.
package ai

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/pdiddy/paper-finder/pkg/types"
)

// Chat issues one chat completion. Implementations report availability so
// callers can degrade instead of erroring when no API key is configured.
type Chat interface {
	Available() bool
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is one chat completion request.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// Client is the langchaingo-backed Chat implementation.
type Client struct {
	model llms.Model
}

// New builds a Client from cfg. An empty API key yields an unavailable
// client rather than an error: the AI stages are optional degradations.
func New(cfg types.AIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return &Client{}, nil
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating chat client: %w", err)
	}
	return &Client{model: model}, nil
}

// Available reports whether completions can be issued.
func (c *Client) Available() bool {
	return c != nil && c.model != nil
}

// Complete sends one system+user exchange and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("chat client not configured")
	}

	content := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextPart(req.System)}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(req.User)}},
	}

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.JSONMode {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := c.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Content, nil
}
