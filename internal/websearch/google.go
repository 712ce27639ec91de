package websearch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// GoogleProvider queries the Google Custom Search JSON API.
type GoogleProvider struct {
	apiKey    string
	cseID     string
	endpoint  string
	userAgent string
	timeout   time.Duration
}

// NewGoogleProvider creates a provider. An empty endpoint uses Google's default.
func NewGoogleProvider(apiKey, cseID, endpoint, userAgent string, timeout time.Duration) *GoogleProvider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint != "" && !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return &GoogleProvider{
		apiKey:    strings.TrimSpace(apiKey),
		cseID:     strings.TrimSpace(cseID),
		endpoint:  endpoint,
		userAgent: userAgent,
		timeout:   timeout,
	}
}

func (p *GoogleProvider) Name() string {
	return "google"
}

func (p *GoogleProvider) Search(ctx context.Context, query string, limit int) (Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Response{}, fmt.Errorf("query cannot be empty")
	}
	if p.apiKey == "" || p.cseID == "" {
		return Response{}, ErrMissingCredentials
	}
	limit = ClampLimit(limit)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// WithHTTPClient would drop the API key, so timeouts go through ctx
	opts := []option.ClientOption{option.WithAPIKey(p.apiKey)}
	if p.endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.endpoint))
	}
	if p.userAgent != "" {
		opts = append(opts, option.WithUserAgent(p.userAgent))
	}

	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create custom search client: %w", err)
	}

	search, err := svc.Cse.List().Cx(p.cseID).Q(query).Num(int64(limit)).Context(ctx).Do()
	if err != nil {
		return Response{}, err
	}

	results := make([]Result, 0, len(search.Items))
	for _, item := range search.Items {
		if item == nil || len(results) >= limit {
			continue
		}
		results = append(results, Result{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
		})
	}

	return Response{
		Query:    query,
		Provider: p.Name(),
		Results:  results,
	}, nil
}
