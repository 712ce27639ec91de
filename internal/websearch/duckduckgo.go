package websearch

import (
	"context"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

// DuckDuckGoProvider uses the keyless instant answer API. It returns the
// abstract and related-topic links only, so results are thinner than Google's.
type DuckDuckGoProvider struct {
	backend
}

func NewDuckDuckGoProvider(baseURL, userAgent string, timeout time.Duration) *DuckDuckGoProvider {
	return &DuckDuckGoProvider{newBackend(baseURL, "https://api.duckduckgo.com", userAgent, timeout)}
}

func (p *DuckDuckGoProvider) Name() string {
	return "duckduckgo"
}

func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, limit int) (Response, error) {
	query, err := checkQuery(query)
	if err != nil {
		return Response{}, err
	}

	body, err := p.get(ctx, "", url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
	})
	if err != nil {
		return Response{}, err
	}

	c := newCollector(ClampLimit(limit))
	if abstract := body.Get("AbstractText").String(); abstract != "" {
		title := body.Get("Heading").String()
		if title == "" {
			title = abstract
		}
		c.add(title, body.Get("AbstractURL").String(), abstract)
	}
	body.Get("Results").ForEach(func(_, r gjson.Result) bool {
		text := r.Get("Text").String()
		c.add(text, r.Get("FirstURL").String(), text)
		return !c.full()
	})
	walkTopics(c, body.Get("RelatedTopics"))

	return Response{Query: query, Provider: p.Name(), Results: c.results}, nil
}

// walkTopics flattens topic groups depth first.
func walkTopics(c *collector, topics gjson.Result) {
	topics.ForEach(func(_, t gjson.Result) bool {
		if sub := t.Get("Topics"); sub.IsArray() && len(sub.Array()) > 0 {
			walkTopics(c, sub)
		} else {
			text := t.Get("Text").String()
			c.add(text, t.Get("FirstURL").String(), text)
		}
		return !c.full()
	})
}
