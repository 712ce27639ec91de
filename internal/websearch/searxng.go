package websearch

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// SearXNGProvider queries a self-hosted SearXNG instance.
type SearXNGProvider struct {
	backend
	apiKey string
}

func NewSearXNGProvider(baseURL, userAgent, apiKey string, timeout time.Duration) *SearXNGProvider {
	return &SearXNGProvider{
		backend: newBackend(baseURL, "http://localhost:8080", userAgent, timeout),
		apiKey:  strings.TrimSpace(apiKey),
	}
}

func (p *SearXNGProvider) Name() string {
	return "searxng"
}

func (p *SearXNGProvider) Search(ctx context.Context, query string, limit int) (Response, error) {
	query, err := checkQuery(query)
	if err != nil {
		return Response{}, err
	}
	limit = ClampLimit(limit)

	params := url.Values{
		"q":          {query},
		"format":     {"json"},
		"categories": {"general"},
		"safesearch": {"1"},
		"count":      {strconv.Itoa(limit)},
	}
	if p.apiKey != "" {
		params.Set("apikey", p.apiKey)
	}
	body, err := p.get(ctx, "/search", params)
	if err != nil {
		return Response{}, err
	}

	c := newCollector(limit)
	body.Get("results").ForEach(func(_, r gjson.Result) bool {
		c.add(r.Get("title").String(), r.Get("url").String(), r.Get("content").String())
		return !c.full()
	})
	return Response{Query: query, Provider: p.Name(), Results: c.results}, nil
}
