// Package llm wraps an OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Message message structure
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System, User and Assistant build messages.
func System(content string) Message    { return Message{Role: "system", Content: content} }
func User(content string) Message      { return Message{Role: "user", Content: content} }
func Assistant(content string) Message { return Message{Role: "assistant", Content: content} }

// StreamHandler receives content deltas.
type StreamHandler func(content string)

// Client LLM client
type Client struct {
	api         openai.Client
	model       string
	temperature float64
	maxTokens   int

	searchTemplate string
}

type clientOptions struct {
	maxRetries int
	timeout    time.Duration
	httpClient *http.Client
}

// Option configures the underlying API client.
type Option func(*clientOptions)

// WithMaxRetries sets how often failed requests are retried.
func WithMaxRetries(n int) Option {
	return func(o *clientOptions) { o.maxRetries = n }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// New creates a new LLM client
func New(apiKey, baseURL, model string, temperature float64, maxTokens int, opts ...Option) *Client {
	o := clientOptions{maxRetries: 2, timeout: 120 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(o.maxRetries),
		option.WithRequestTimeout(o.timeout),
	}
	if strings.TrimSpace(baseURL) != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimSuffix(baseURL, "/")+"/"))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	return &Client{
		api:            openai.NewClient(reqOpts...),
		model:          model,
		temperature:    temperature,
		maxTokens:      maxTokens,
		searchTemplate: defaultSearchTemplate,
	}
}

// Model returns the default model name.
func (c *Client) Model() string {
	return c.model
}

type callOptions struct {
	model       string
	temperature float64
	maxTokens   int
	stream      StreamHandler
}

// CallOption overrides client defaults for one request.
type CallOption func(*callOptions)

// WithModel selects a different model.
func WithModel(model string) CallOption {
	return func(o *callOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) CallOption {
	return func(o *callOptions) { o.temperature = t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) CallOption {
	return func(o *callOptions) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithStreamHandler asks helpers such as ChatWithSearch to stream the answer
// through h. Chat ignores it.
func WithStreamHandler(h StreamHandler) CallOption {
	return func(o *callOptions) { o.stream = h }
}

// StreamHandlerFrom returns the handler set by WithStreamHandler, if any.
func StreamHandlerFrom(opts ...CallOption) StreamHandler {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.stream
}

func (c *Client) params(messages []Message, opts []CallOption) openai.ChatCompletionNewParams {
	o := callOptions{model: c.model, temperature: c.temperature, maxTokens: c.maxTokens}
	for _, opt := range opts {
		opt(&o)
	}

	params := openai.ChatCompletionNewParams{
		Model:       o.model,
		Messages:    toParams(messages),
		Temperature: openai.Float(o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.maxTokens))
	}
	return params
}

func toParams(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// Chat sends a chat request and returns the first choice's content.
func (c *Client) Chat(ctx context.Context, messages []Message, opts ...CallOption) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, c.params(messages, opts))
	if err != nil {
		return "", wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatStream streams the completion through handler and returns the full text.
func (c *Client) ChatStream(ctx context.Context, messages []Message, handler StreamHandler, opts ...CallOption) (string, error) {
	stream := c.api.Chat.Completions.NewStreaming(ctx, c.params(messages, opts))
	defer stream.Close()

	var content strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		content.WriteString(delta)
		if handler != nil {
			handler(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return content.String(), wrapError(err)
	}
	return content.String(), nil
}

// ListModels returns the model ids the API key can use.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.api.Models.List(ctx)
	if err != nil {
		return nil, wrapError(err)
	}
	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("API error (status %d): %s: %w", apiErr.StatusCode, apiErr.Message, err)
	}
	return fmt.Errorf("LLM request failed: %w", err)
}
