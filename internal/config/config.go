package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// configDir is the configuration directory path
	// Can be set via SetConfigDir before loading config
	configDir     string
	configDirInit bool
)

// SetConfigDir sets a custom configuration directory
// Must be called before any config loading functions
func SetConfigDir(dir string) {
	configDir = dir
	configDirInit = true
}

// GetConfigDir returns the configuration directory
// Priority: 1. Manually set via SetConfigDir, 2. ./config in current directory
func GetConfigDir() string {
	if !configDirInit {
		cwd, err := os.Getwd()
		if err == nil {
			configDir = filepath.Join(cwd, "config")
		}
		configDirInit = true
	}
	return configDir
}

// Config application configuration structure
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Model       ModelConfig       `yaml:"model"`
	Search      SearchConfig      `yaml:"search"`
	Enhancement EnhancementConfig `yaml:"enhancement"`
	Traffic     TrafficConfig     `yaml:"traffic"`
	Extract     ExtractConfig     `yaml:"extract"`
	Optimize    OptimizeConfig    `yaml:"optimize"`
	Store       StoreConfig       `yaml:"store"`
	Logging     LoggingConfig     `yaml:"logging"`
	Client      ClientConfig      `yaml:"client"`
}

// ServerConfig search proxy server configuration
type ServerConfig struct {
	Name           string `yaml:"name"`
	Address        string `yaml:"address"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	PIDFile        string `yaml:"pid_file"`
}

// ModelConfig LLM model configuration
type ModelConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	MaxRetries     int     `yaml:"max_retries"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// SearchConfig web search provider configuration
type SearchConfig struct {
	Provider       string `yaml:"provider"`
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	CSEID          string `yaml:"cse_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	DefaultLimit   int    `yaml:"default_limit"`
	UserAgent      string `yaml:"user_agent"`
}

// Entry is a search result injected by the enhancer.
type Entry struct {
	Title   string `yaml:"title" json:"title"`
	Link    string `yaml:"link" json:"link"`
	Snippet string `yaml:"snippet" json:"snippet"`
}

// EnhancementConfig result enhancement configuration
type EnhancementConfig struct {
	Enabled       bool               `yaml:"enabled"`
	CustomEntries map[string][]Entry `yaml:"custom_entries"`
	TestEntry     *Entry             `yaml:"test_entry,omitempty"`
}

// TrafficConfig MCP traffic log configuration
type TrafficConfig struct {
	LogDir        string `yaml:"log_dir"`
	RetentionDays int    `yaml:"retention_days"`
	Schedule      string `yaml:"schedule"`
	Console       bool   `yaml:"console"`
}

// ExtractConfig page fetching and content extraction configuration
type ExtractConfig struct {
	UserAgent         string  `yaml:"user_agent"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	MaxChars          int     `yaml:"max_chars"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MinBlockChars     int     `yaml:"min_block_chars"`
}

// OptimizeConfig snippet/website optimization workflow configuration
type OptimizeConfig struct {
	WorkDir           string `yaml:"work_dir"`
	CompanyInfoFile   string `yaml:"company_info_file"`
	WebsiteFile       string `yaml:"website_file"`
	TargetSnippetFile string `yaml:"target_snippet_file"`
	ProposalFile      string `yaml:"proposal_file"`
	MaxRounds         int    `yaml:"max_rounds"`
	MaxSites          int    `yaml:"max_sites"`
	SearchResults     int    `yaml:"search_results"`
	TestEntryMarker   string `yaml:"test_entry_marker"`
}

// StoreConfig run history storage configuration
type StoreConfig struct {
	DBPath string `yaml:"db_path"`
}

// LoggingConfig application log configuration
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Dir     string `yaml:"dir"`
	MaxDays int    `yaml:"max_days"`
	Console bool   `yaml:"console"`
}

// ClientConfig settings used by commands that talk to a running server
type ClientConfig struct {
	MCPURL         string `yaml:"mcp_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// DefaultCustomEntries returns the built-in keyword entries.
func DefaultCustomEntries() map[string][]Entry {
	return map[string][]Entry{
		"openai": {
			{
				Title:   "🚀 OpenAI Official Documentation",
				Link:    "https://platform.openai.com/docs",
				Snippet: "Official OpenAI API documentation and guides for developers.",
			},
			{
				Title:   "💡 OpenAI Community",
				Link:    "https://community.openai.com/",
				Snippet: "Join the OpenAI community for discussions, tips, and support.",
			},
		},
		"gpt": {
			{
				Title:   "🤖 GPT Models Overview",
				Link:    "https://platform.openai.com/docs/models",
				Snippet: "Comprehensive guide to all GPT models and their capabilities.",
			},
		},
		"python": {
			{
				Title:   "🐍 Python Official Documentation",
				Link:    "https://docs.python.org/",
				Snippet: "Official Python documentation and tutorials.",
			},
			{
				Title:   "📚 Python Tutorial",
				Link:    "https://docs.python.org/3/tutorial/",
				Snippet: "Learn Python programming from the official tutorial.",
			},
		},
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			Name:           "llmseo",
			Address:        "0.0.0.0:8000",
			TimeoutSeconds: 30,
			PIDFile:        filepath.Join(homeDir, ".llmseo", "server.pid"),
		},
		Model: ModelConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o",
			Temperature:    0.7,
			MaxTokens:      4096,
			MaxRetries:     2,
			TimeoutSeconds: 60,
		},
		Search: SearchConfig{
			Provider:       "google",
			TimeoutSeconds: 15,
			DefaultLimit:   5,
			UserAgent:      "llmseo/0.1",
		},
		Enhancement: EnhancementConfig{
			Enabled:       true,
			CustomEntries: DefaultCustomEntries(),
		},
		Traffic: TrafficConfig{
			LogDir:        "mcp_logs",
			RetentionDays: 7,
			Schedule:      "@daily",
			Console:       true,
		},
		Extract: ExtractConfig{
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			TimeoutSeconds:    10,
			MaxChars:          5000,
			RequestsPerSecond: 1,
			MinBlockChars:     100,
		},
		Optimize: OptimizeConfig{
			WorkDir:           ".",
			CompanyInfoFile:   "company_info.md",
			WebsiteFile:       "company_website.html",
			TargetSnippetFile: "target_snippet.txt",
			ProposalFile:      "proposed_website_changes.md",
			MaxRounds:         5,
			MaxSites:          3,
			SearchResults:     10,
			TestEntryMarker:   "MCP Test Entry",
		},
		Store: StoreConfig{
			DBPath: filepath.Join(homeDir, ".llmseo", "history.db"),
		},
		Logging: LoggingConfig{
			Level:   "info",
			MaxDays: 7,
		},
		Client: ClientConfig{
			MCPURL:         "http://localhost:8000",
			TimeoutSeconds: 30,
		},
	}
}

// ConfigDir returns the configuration directory path
func ConfigDir() (string, error) {
	dir := GetConfigDir()
	if dir == "" {
		return "", fmt.Errorf("failed to determine config directory")
	}
	return dir, nil
}

// LogDir returns the application log directory path
func LogDir() string {
	dir := GetConfigDir()
	if dir == "" {
		return "logs"
	}
	return filepath.Join(dir, "logs")
}

// ConfigPath returns the configuration file path
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from file and merges with secrets
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := Save(cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		// Keys are merged after saving so they never land in config.yaml
		secrets, _ := LoadSecrets()
		cfg.applySecrets(secrets)
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	secrets, _ := LoadSecrets()
	cfg.applySecrets(secrets)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applySecrets fills credentials that are not set in the YAML file.
func (c *Config) applySecrets(s *Secrets) {
	if s == nil {
		return
	}
	fill := func(dst *string, value string) {
		if *dst == "" && value != "" {
			*dst = value
		}
	}
	fill(&c.Model.APIKey, s.GetOpenAIAPIKey())
	fill(&c.Search.APIKey, s.GetGoogleAPIKey())
	fill(&c.Search.CSEID, s.GetGoogleCSEID())
	if base := s.Get(KeyOpenAIBaseURL); base != "" {
		c.Model.BaseURL = base
	}
	if strings.EqualFold(c.Search.Provider, "searxng") {
		if key := s.Get(KeySearXNGAPIKey); key != "" {
			c.Search.APIKey = key
		}
	}
}

// Save saves configuration to file
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	content := "# llmseo Configuration File\n# API keys belong in .env or config/.secrets, not here\n\n" + string(data)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Address) == "" {
		return fmt.Errorf("config error: server.address cannot be empty")
	}
	if c.Server.TimeoutSeconds <= 0 {
		return fmt.Errorf("config error: server.timeout_seconds must be greater than 0")
	}

	if c.Model.BaseURL == "" {
		return fmt.Errorf("config error: model.base_url cannot be empty")
	}
	if c.Model.Model == "" {
		return fmt.Errorf("config error: model.model cannot be empty")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("config error: model.temperature must be between 0 and 2")
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("config error: model.max_tokens must be greater than 0")
	}

	provider := strings.ToLower(strings.TrimSpace(c.Search.Provider))
	switch provider {
	case "", "google", "duckduckgo", "ddg":
	case "searxng":
		if strings.TrimSpace(c.Search.BaseURL) == "" {
			return fmt.Errorf("config error: search.base_url cannot be empty for searxng provider")
		}
	default:
		return fmt.Errorf("config error: search.provider %q is not supported", c.Search.Provider)
	}
	if c.Search.TimeoutSeconds <= 0 {
		return fmt.Errorf("config error: search.timeout_seconds must be greater than 0")
	}
	if c.Search.DefaultLimit <= 0 || c.Search.DefaultLimit > 10 {
		return fmt.Errorf("config error: search.default_limit must be between 1 and 10")
	}

	if strings.TrimSpace(c.Traffic.LogDir) == "" {
		return fmt.Errorf("config error: traffic.log_dir cannot be empty")
	}
	if c.Traffic.RetentionDays < 0 {
		return fmt.Errorf("config error: traffic.retention_days cannot be negative")
	}

	if c.Extract.MaxChars <= 0 {
		return fmt.Errorf("config error: extract.max_chars must be greater than 0")
	}
	if c.Extract.RequestsPerSecond <= 0 {
		return fmt.Errorf("config error: extract.requests_per_second must be greater than 0")
	}

	if c.Optimize.MaxRounds <= 0 {
		return fmt.Errorf("config error: optimize.max_rounds must be greater than 0")
	}
	if c.Optimize.MaxSites <= 0 {
		return fmt.Errorf("config error: optimize.max_sites must be greater than 0")
	}

	if c.Store.DBPath == "" {
		return fmt.Errorf("config error: store.db_path cannot be empty")
	}

	return nil
}

// IsAPIKeyConfigured checks if the LLM API key is configured
func (c *Config) IsAPIKeyConfigured() bool {
	return c.Model.APIKey != ""
}

// IsSearchConfigured reports whether the Google provider has both credentials.
func (c *Config) IsSearchConfigured() bool {
	return c.Search.APIKey != "" && c.Search.CSEID != ""
}

// Path resolves a workflow file relative to optimize.work_dir.
func (o OptimizeConfig) Path(name string) string {
	if filepath.IsAbs(name) || o.WorkDir == "" {
		return name
	}
	return filepath.Join(o.WorkDir, name)
}

// String returns string representation of config (hides sensitive info)
func (c *Config) String() string {
	return fmt.Sprintf(`llmseo Configuration:
  Server:
    Address: %s
    Timeout Seconds: %d
  Model:
    API Key: %s
    Base URL: %s
    Model: %s
    Temperature: %.1f
    Max Tokens: %d
  Search:
    Provider: %s
    API Key: %s
    CSE ID: %s
    Default Limit: %d
  Enhancement:
    Enabled: %v
    Keywords: %d
  Traffic:
    Log Dir: %s
    Retention Days: %d
  Optimize:
    Work Dir: %s
    Max Rounds: %d
    Max Sites: %d
  Store:
    DB Path: %s
  Client:
    MCP URL: %s`,
		c.Server.Address,
		c.Server.TimeoutSeconds,
		redactAPIKey(c.Model.APIKey),
		c.Model.BaseURL,
		c.Model.Model,
		c.Model.Temperature,
		c.Model.MaxTokens,
		c.Search.Provider,
		redactAPIKey(c.Search.APIKey),
		redactAPIKey(c.Search.CSEID),
		c.Search.DefaultLimit,
		c.Enhancement.Enabled,
		len(c.Enhancement.CustomEntries),
		c.Traffic.LogDir,
		c.Traffic.RetentionDays,
		c.Optimize.WorkDir,
		c.Optimize.MaxRounds,
		c.Optimize.MaxSites,
		c.Store.DBPath,
		c.Client.MCPURL,
	)
}

func redactAPIKey(value string) string {
	if value == "" {
		return "(not configured)"
	}
	if len(value) > 8 {
		return value[:8] + "..."
	}
	return "***"
}
