package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
)

// Request is one image plus the instructions for analyzing it.
type Request struct {
	System string
	Prompt string
	Image  shield.Media
}

// Client sends a request to a vision-capable model and returns the raw text
// of its reply.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// OpenAIOptions configures an OpenAIClient.
type OpenAIOptions struct {
	APIKey  string
	Model   string
	BaseURL string // empty uses the public endpoint

	// RequestsPerMinute paces calls across all scans sharing the client.
	// Zero disables pacing.
	RequestsPerMinute int

	Timeout time.Duration

	// BreakerFailures is the number of consecutive failures that opens the
	// circuit. Zero disables the breaker.
	BreakerFailures uint32

	Logger shield.Logger
}

// OpenAIClient calls the chat completions API with the image inlined as a
// data URL. Calls are paced by a token bucket and guarded by a circuit
// breaker so an outage fails scans fast instead of piling up timeouts.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[string]
	logger  shield.Logger
}

// NewOpenAIClient creates an OpenAIClient.
func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("vision API key is not set")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("vision model is not set")
	}
	logger := opts.Logger
	if logger == nil {
		logger = shield.NewNopLogger()
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	c := &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
		logger: logger,
	}
	if opts.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 2)
	}
	if opts.BreakerFailures > 0 {
		c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:    "vision",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= opts.BreakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return c, nil
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}
	if c.breaker == nil {
		return c.complete(ctx, req)
	}

	text, err := c.breaker.Execute(func() (string, error) {
		return c.complete(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("vision service unavailable: %w", err)
	}
	return text, err
}

func (c *OpenAIClient) complete(ctx context.Context, req Request) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", req.Image.MIMEType, base64.StdEncoding.EncodeToString(req.Image.Data))

	chat := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	c.logger.Debug("calling vision model", "model", c.model, "bytes", len(req.Image.Data))
	resp, err := c.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		return "", fmt.Errorf("vision API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision API returned no choices")
	}
	c.logger.Debug("vision model replied", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

var _ Client = (*OpenAIClient)(nil)
