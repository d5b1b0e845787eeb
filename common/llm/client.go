// Package llm provides the single chat-completions client shared by the
// controller client and the model router. Both components talk to
// OpenAI-chat-completions-compatible endpoints (vLLM servers in production)
// distinguished only by base URL and model name, so one client
// implementation serves both rather than maintaining parallel stacks.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Config configures a Client against one base URL.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Usage reports token consumption for one chat-completions call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ChatOptions carries the per-call knobs a caller may set on top of the
// system+user messages. The zero value requests provider defaults for
// temperature and max_tokens and leaves response_format unset.
type ChatOptions struct {
	Temperature *float64 // nil = model default, explicit 0 = deterministic
	MaxTokens   int      // 0 = provider default
	JSONObject  bool     // sets response_format: {type: "json_object"}
}

// Client sends single-turn system+user chat-completions requests and
// returns the assistant's raw text content. Callers that need structured
// data (the controller, extracting a plan JSON object) parse the text
// themselves — this client never assumes a response shape.
type Client interface {
	Chat(ctx context.Context, system, user string, opts ChatOptions) (string, Usage, error)
	Model() string
}

type client struct {
	openai openai.Client
	model  string
	label  string
}

// New creates a Client for one base URL / model pair. label identifies the
// endpoint in debug logs (e.g. "7b", "20b", "controller").
func New(cfg Config, label string) (Client, error) {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}

	return &client{
		openai: openai.NewClient(opts...),
		model:  model,
		label:  label,
	}, nil
}

func (c *client) Chat(ctx context.Context, system, user string, opts ChatOptions) (string, Usage, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.JSONObject {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	start := time.Now()
	resp, err := c.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", Usage{}, fmt.Errorf("llm(%s): chat completion: %w", c.label, err)
	}

	if len(resp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("llm(%s): no choices in response", c.label)
	}

	usage := Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}

	slog.DebugContext(ctx, "llm chat completed",
		"endpoint", c.label,
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens)

	return resp.Choices[0].Message.Content, usage, nil
}

func (c *client) Model() string {
	return c.model
}

// GenerateSchema reflects a JSON Schema from T, used to embed a
// machine-generated contract in the controller's system prompt rather than
// a hand-maintained example block.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// IsRetryable classifies an error from a Chat call. Rate limits and server
// errors are retryable; client errors (bad request, auth) and a canceled or
// expired context are not.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			slog.WarnContext(ctx, "llm rate limited, will retry", "status_code", apiErr.StatusCode)
			return true
		case apiErr.StatusCode >= 500:
			slog.WarnContext(ctx, "llm server error, will retry", "status_code", apiErr.StatusCode)
			return true
		default:
			slog.ErrorContext(ctx, "llm client error, not retryable",
				"status_code", apiErr.StatusCode, "error_type", apiErr.Type, "error_code", apiErr.Code)
			return false
		}
	}

	// Network errors (no API response) are generally retryable.
	slog.WarnContext(ctx, "llm network error, will retry", "error", err)
	return true
}
