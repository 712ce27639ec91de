package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hession/llmseo/internal/extract"
)

const defaultFetchMaxBytes = int64(200000)

// FetchURLTool retrieves a URL and returns its content as text, markdown or raw HTML.
type FetchURLTool struct {
	fetcher *extract.Fetcher
	opts    extract.Options
}

// NewFetchURLTool creates a URL fetch tool.
func NewFetchURLTool(fetcher *extract.Fetcher, opts extract.Options) *FetchURLTool {
	return &FetchURLTool{fetcher: fetcher, opts: opts}
}

func (t *FetchURLTool) Name() string {
	return "fetch_url"
}

func (t *FetchURLTool) Description() string {
	return "Fetch a URL and return readable content for downstream use."
}

func (t *FetchURLTool) Parameters() []ParameterDef {
	return []ParameterDef{
		{
			Name:        "url",
			Type:        "string",
			Description: "URL to fetch",
			Required:    true,
		},
		{
			Name:        "format",
			Type:        "string",
			Description: "Output format: text (default), markdown or html",
			Enum:        []string{"text", "markdown", "html"},
			Default:     "text",
		},
		{
			Name:        "max_bytes",
			Type:        "integer",
			Description: "Maximum bytes to read from the response body",
			Minimum:     intPtr(1),
		},
	}
}

func (t *FetchURLTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	rawURL, ok := args["url"].(string)
	if !ok || strings.TrimSpace(rawURL) == "" {
		return "", fmt.Errorf("missing required parameter: url")
	}

	format := "text"
	if val, ok := args["format"].(string); ok && strings.TrimSpace(val) != "" {
		format = strings.ToLower(strings.TrimSpace(val))
	}
	if format != "text" && format != "markdown" && format != "html" {
		return "", fmt.Errorf("unsupported format: %s", format)
	}

	maxBytes, err := intArg(args, "max_bytes", int(defaultFetchMaxBytes))
	if err != nil {
		return "", err
	}

	page, err := t.fetcher.FetchLimited(ctx, rawURL, int64(maxBytes))
	if err != nil {
		return "", err
	}

	content := string(page.Body)
	if page.IsHTML() {
		switch format {
		case "text":
			content = extract.MainContent(page, t.opts)
		case "markdown":
			content, err = extract.Markdown(page.Body)
			if err != nil {
				return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
			}
		}
	}

	payload := map[string]any{
		"url":          page.URL.String(),
		"status":       page.StatusCode,
		"content_type": page.ContentType,
		"format":       format,
		"content":      content,
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode response: %w", err)
	}

	return string(encoded), nil
}
