package websearch

import (
	"strings"
	"time"

	"github.com/hession/llmseo/internal/config"
)

// New builds the provider named in the search config. Google is the default.
func New(cfg config.SearchConfig) Provider {
	timeout := 15 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "searxng":
		return NewSearXNGProvider(cfg.BaseURL, cfg.UserAgent, cfg.APIKey, timeout)
	case "duckduckgo", "ddg":
		return NewDuckDuckGoProvider(cfg.BaseURL, cfg.UserAgent, timeout)
	default:
		return NewGoogleProvider(cfg.APIKey, cfg.CSEID, cfg.BaseURL, cfg.UserAgent, timeout)
	}
}
