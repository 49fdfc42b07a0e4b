// Package openai adapts OpenAI-compatible chat completion APIs (OpenAI, Groq,
// OpenRouter) to the site.Completer interface.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Base URLs per source.
const (
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	GroqBaseURL       = "https://api.groq.com/openai/v1"
)

// ErrEmptyChoice is returned when the model replies without any choice.
var ErrEmptyChoice = errors.New("completion returned no choices")

// Config configures the completer.
type Config struct {
	Source      string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
	// SiteURL and AppName are sent as OpenRouter attribution headers.
	SiteURL string
	AppName string
}

// Client implements site.Completer via go-openai.
type Client struct {
	api    *goopenai.Client
	cfg    Config
	logger *zap.Logger
}

// New builds a Client for the configured source.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai client: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai client: model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	switch {
	case cfg.BaseURL != "":
		apiCfg.BaseURL = cfg.BaseURL
	case cfg.Source == "groq":
		apiCfg.BaseURL = GroqBaseURL
	case cfg.Source == "openrouter":
		apiCfg.BaseURL = OpenRouterBaseURL
	}
	apiCfg.HTTPClient = &http.Client{
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			headers: attributionHeaders(cfg),
		},
	}

	return &Client{
		api:    goopenai.NewClientWithConfig(apiCfg),
		cfg:    cfg,
		logger: logger.Named("openai"),
	}, nil
}

// Complete sends a system + user message pair and returns the first choice.
func (c *Client) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: userText},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyChoice
	}
	c.logger.Debug("completion finished",
		zap.String("model", c.cfg.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp.Choices[0].Message.Content, nil
}

func attributionHeaders(cfg Config) map[string]string {
	headers := map[string]string{}
	if cfg.SiteURL != "" {
		headers["HTTP-Referer"] = cfg.SiteURL
	}
	if cfg.AppName != "" {
		headers["X-Title"] = cfg.AppName
	}
	return headers
}

// headerTransport adds fixed headers to every outbound request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		if strings.TrimSpace(v) != "" {
			clone.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(clone)
}
