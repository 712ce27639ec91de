package websearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// backend is a JSON-over-GET search endpoint shared by the keyless providers.
type backend struct {
	base      *url.URL
	userAgent string
	client    *http.Client
}

func newBackend(baseURL, fallbackURL, userAgent string, timeout time.Duration) backend {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = fallbackURL
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = "llmseo/0.1"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		// surfaces on the first Search
		base = nil
	}
	return backend{base: base, userAgent: userAgent, client: &http.Client{Timeout: timeout}}
}

// get fetches path with params and returns the parsed body.
func (b backend) get(ctx context.Context, path string, params url.Values) (gjson.Result, error) {
	if b.base == nil {
		return gjson.Result{}, errors.New("invalid base url")
	}
	endpoint := *b.base
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + path
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gjson.Result{}, &StatusError{Code: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, &DecodeError{Err: err}
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, &DecodeError{Err: errors.New("body is not valid JSON")}
	}
	return gjson.ParseBytes(body), nil
}

// collector keeps the first limit results with distinct, non-empty links.
type collector struct {
	limit   int
	seen    map[string]bool
	results []Result
}

func newCollector(limit int) *collector {
	return &collector{limit: limit, seen: map[string]bool{}, results: make([]Result, 0, limit)}
}

func (c *collector) full() bool {
	return len(c.results) >= c.limit
}

func (c *collector) add(title, link, snippet string) {
	link = strings.TrimSpace(link)
	if c.full() || link == "" || c.seen[link] {
		return
	}
	c.seen[link] = true
	c.results = append(c.results, Result{
		Title:   strings.TrimSpace(title),
		Link:    link,
		Snippet: strings.TrimSpace(snippet),
	})
}

func checkQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("query cannot be empty")
	}
	return query, nil
}
