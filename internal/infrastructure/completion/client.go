package completion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/domain/router"
	"github.com/trackimpact/support-api/internal/infrastructure/metrics"
	"github.com/trackimpact/support-api/internal/infrastructure/observability"
	"github.com/trackimpact/support-api/internal/utils/httpclients"
	"github.com/trackimpact/support-api/internal/utils/platformerrors"
)

// Config points the client at an OpenAI compatible chat completions endpoint.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
}

// Client calls /v1/chat/completions and returns the first choice.
type Client struct {
	http   *resty.Client
	apiKey string
	cfg    Config
	log    zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 600
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	log = log.With().Str("component", "completion-client").Logger()

	rc := httpclients.NewClient("completion", log)
	rc.SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/"))
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}

	return &Client{http: rc, apiKey: cfg.APIKey, cfg: cfg, log: log}
}

func (c *Client) Complete(ctx context.Context, prompt router.Prompt) (reply string, err error) {
	ctx, span := observability.StartSpan(ctx, "completion.Complete",
		attribute.String("completion.model", c.cfg.Model),
		attribute.Int("completion.history", len(prompt.History)))
	defer func() {
		observability.RecordError(ctx, err)
		span.End()
	}()

	request := c.buildRequest(prompt)

	start := time.Now()
	var body openai.ChatCompletionResponse
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(request).
		SetResult(&body)
	if strings.TrimSpace(c.apiKey) != "" {
		req.SetAuthToken(c.apiKey)
	}

	resp, err := req.Post("/v1/chat/completions")
	metrics.CompletionDuration.WithLabelValues(c.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CompletionRequests.WithLabelValues(c.cfg.Model, "transport_error").Inc()
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeServiceUnavailable,
			"completion service unreachable", err, "6b1e9d3a-4c72-4f05-a8e6-d2f0b7c4a913")
	}
	if resp.IsError() {
		metrics.CompletionRequests.WithLabelValues(c.cfg.Model, fmt.Sprintf("%d", resp.StatusCode())).Inc()
		return "", platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"completion service returned an error", nil, "d8a4f2c6-1e93-4b57-9c0d-3f6b8e2a7c15",
			map[string]any{"status": resp.StatusCode(), "body": conversation.Truncate(resp.String(), 300)})
	}

	metrics.CompletionRequests.WithLabelValues(c.cfg.Model, "ok").Inc()
	metrics.CompletionTokens.WithLabelValues(c.cfg.Model, "prompt").Add(float64(body.Usage.PromptTokens))
	metrics.CompletionTokens.WithLabelValues(c.cfg.Model, "completion").Add(float64(body.Usage.CompletionTokens))

	if len(body.Choices) == 0 {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"completion service returned no choices", nil, "2f7c0a5e-9b38-4d61-b4e2-8a1d6c3f0e97")
	}

	c.log.Debug().
		Str("model", body.Model).
		Int("prompt_tokens", body.Usage.PromptTokens).
		Int("completion_tokens", body.Usage.CompletionTokens).
		Str("finish_reason", string(body.Choices[0].FinishReason)).
		Msg("completion received")

	return body.Choices[0].Message.Content, nil
}

func (c *Client) buildRequest(prompt router.Prompt) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(prompt.History)+2)
	if prompt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt.System})
	}
	for _, turn := range prompt.History {
		role := openai.ChatMessageRoleUser
		if turn.Role == conversation.MessageRoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt.Message})

	return openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
}

var _ router.CompletionService = (*Client)(nil)
