// Package llm talks to a generative model through the OpenAI-compatible chat
// completions API and asks for JSON constrained by a response schema.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"disasterwatch/internal/bootstrap/config"
	"disasterwatch/internal/bootstrap/logging"
	"disasterwatch/internal/errs"
	"disasterwatch/internal/observability"
	"disasterwatch/internal/ports"
)

// Client implements ports.LanguageModel.
type Client struct {
	api     openai.Client
	model   string
	apiKey  string
	metrics *observability.Metrics
}

var _ ports.LanguageModel = (*Client)(nil)

// NewClient builds the process-wide model client. Retries are disabled: a
// failed call surfaces to the caller as is.
func NewClient(cfg config.LLMConfig, metrics *observability.Metrics) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}

	return &Client{
		api:     openai.NewClient(opts...),
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		metrics: metrics,
	}
}

func (c *Client) GenerateJSON(ctx context.Context, req ports.GenerateRequest) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if strings.TrimSpace(c.apiKey) == "" {
		return "", errs.Mark(errs.ErrConfiguration, nil, "llm.api_key is not set")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errs.Mark(errs.ErrInvalidArgument, nil, "prompt is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "llm"), slog.String("operation", req.Operation))
	started := time.Now()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName(req),
					Schema: req.Schema,
					Strict: openai.Bool(false),
				},
			},
		}
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		c.metrics.ModelRequest(req.Operation, started, err)
		logging.Warn(logCtx, "model call failed", slog.Any("err", errs.Loggable(err)))
		return "", errs.Mark(errs.ErrUpstream, err, "generate content")
	}

	var text string
	if len(resp.Choices) > 0 {
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	if text == "" {
		err := errs.Mark(errs.ErrUpstream, nil, "model returned no text")
		c.metrics.ModelRequest(req.Operation, started, err)
		return "", err
	}

	c.metrics.ModelRequest(req.Operation, started, nil)
	logging.Debug(logCtx, "model call completed", slog.Duration("elapsed", time.Since(started)), slog.Int("chars", len(text)))
	return text, nil
}

func schemaName(req ports.GenerateRequest) string {
	if name := strings.TrimSpace(req.SchemaName); name != "" {
		return name
	}
	if op := strings.TrimSpace(req.Operation); op != "" {
		return op
	}
	return "response"
}
