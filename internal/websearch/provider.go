package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"

	"google.golang.org/api/googleapi"
)

const (
	// DefaultLimit is used when the caller does not ask for a count.
	DefaultLimit = 5
	// MaxLimit is the Google Custom Search per-request maximum.
	MaxLimit = 10
)

// ErrMissingCredentials is returned when a provider lacks its API key or engine id.
var ErrMissingCredentials = errors.New("search credentials missing")

// Result is a single search result entry, or an error entry when Error is set.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Error   string `json:"error,omitempty"`
}

// MarshalJSON writes error entries as {"error": "..."} only.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}
	type plain Result
	return json.Marshal(plain(r))
}

// IsError reports whether r is an error entry.
func (r Result) IsError() bool {
	return r.Error != ""
}

// Response is a normalized search response.
type Response struct {
	Query    string   `json:"query"`
	Provider string   `json:"provider"`
	Results  []Result `json:"results"`
}

// Provider performs web searches.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) (Response, error)
}

// StatusError is a non-2xx answer from a search backend.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("search request failed with status %d", e.Code)
}

// DecodeError wraps a malformed backend payload.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ClampLimit maps n into [1, MaxLimit]; non-positive values become DefaultLimit.
func ClampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// ErrorResults is the single-entry result list returned in place of a failure.
func ErrorResults(msg string) []Result {
	return []Result{{Error: msg}}
}

// Describe converts a search failure into the message shown to MCP clients.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrMissingCredentials) {
		return "Server configuration error: API keys missing."
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Message != "" {
			return fmt.Sprintf("Google API Error: %s", gerr.Message)
		}
		return fmt.Sprintf("HTTP error during search: %v", err)
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("HTTP error during search: %v", err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("Search request timed out: %v", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("Search request timed out: %v", err)
	}

	var opErr *net.OpError
	var urlErr *url.Error
	if errors.As(err, &opErr) || errors.As(err, &urlErr) {
		return fmt.Sprintf("Network connection error during search: %v", err)
	}

	var decodeErr *DecodeError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &decodeErr) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Sprintf("Failed to decode API response: %v", err)
	}

	return fmt.Sprintf("Unexpected search request error: %v", err)
}
