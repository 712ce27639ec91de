package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("Expected BaseURL to be https://api.openai.com/v1, got %s", cfg.Model.BaseURL)
	}

	if cfg.Model.Model != "gpt-4o" {
		t.Errorf("Expected Model to be gpt-4o, got %s", cfg.Model.Model)
	}

	if cfg.Search.Provider != "google" {
		t.Errorf("Expected search provider to be google, got %s", cfg.Search.Provider)
	}

	if cfg.Traffic.LogDir != "mcp_logs" {
		t.Errorf("Expected traffic log dir mcp_logs, got %s", cfg.Traffic.LogDir)
	}

	if len(cfg.Enhancement.CustomEntries["openai"]) != 2 {
		t.Errorf("Expected 2 default openai entries, got %d", len(cfg.Enhancement.CustomEntries["openai"]))
	}

	if cfg.Optimize.MaxRounds != 5 {
		t.Errorf("Expected MaxRounds 5, got %d", cfg.Optimize.MaxRounds)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty BaseURL",
			mutate:  func(c *Config) { c.Model.BaseURL = "" },
			wantErr: "model.base_url",
		},
		{
			name:    "invalid Temperature",
			mutate:  func(c *Config) { c.Model.Temperature = 3.0 },
			wantErr: "model.temperature",
		},
		{
			name:    "default limit above google maximum",
			mutate:  func(c *Config) { c.Search.DefaultLimit = 11 },
			wantErr: "search.default_limit",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Search.Provider = "bing" },
			wantErr: "search.provider",
		},
		{
			name: "searxng without base url",
			mutate: func(c *Config) {
				c.Search.Provider = "searxng"
				c.Search.BaseURL = ""
			},
			wantErr: "search.base_url",
		},
		{
			name:    "empty traffic dir",
			mutate:  func(c *Config) { c.Traffic.LogDir = " " },
			wantErr: "traffic.log_dir",
		},
		{
			name:    "zero rounds",
			mutate:  func(c *Config) { c.Optimize.MaxRounds = 0 },
			wantErr: "optimize.max_rounds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "llmseo-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	configTestDir := filepath.Join(tmpDir, "config")
	SetConfigDir(configTestDir)

	cfg := DefaultConfig()
	cfg.Model.APIKey = "test-api-key"
	cfg.Enhancement.TestEntry = &Entry{Title: "🧪 MCP Test Entry", Link: "https://example.org", Snippet: "test"}

	if err := Save(cfg); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	configPath := filepath.Join(configTestDir, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal("Config file not created")
	}
	if !strings.HasPrefix(string(data), "# llmseo Configuration File") {
		t.Error("Config file should start with header comment")
	}

	loadedCfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loadedCfg.Model.APIKey != cfg.Model.APIKey {
		t.Errorf("API Key mismatch: expected %s, got %s", cfg.Model.APIKey, loadedCfg.Model.APIKey)
	}
	if loadedCfg.Enhancement.TestEntry == nil || loadedCfg.Enhancement.TestEntry.Link != "https://example.org" {
		t.Errorf("Test entry not round-tripped: %+v", loadedCfg.Enhancement.TestEntry)
	}
}

func TestLoadMergesSecrets(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "llmseo-secrets")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	configTestDir := filepath.Join(tmpDir, "config")
	SetConfigDir(configTestDir)
	if err := os.MkdirAll(configTestDir, 0755); err != nil {
		t.Fatal(err)
	}

	oldEnv := envFile
	envFile = filepath.Join(tmpDir, ".env")
	defer func() { envFile = oldEnv }()

	if err := os.WriteFile(envFile, []byte("GOOGLE_API_KEY=from-dotenv\nGOOGLE_CSE_ID=cx-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	secrets := "# secrets\nOPENAI_API_KEY=sk-from-secrets\nGOOGLE_CSE_ID=cx-secrets\n"
	if err := os.WriteFile(filepath.Join(configTestDir, ".secrets"), []byte(secrets), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(KeyOpenAIAPIKey, "")
	t.Setenv(KeyGoogleAPIKey, "")
	t.Setenv(KeyGoogleCSEID, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Model.APIKey != "sk-from-secrets" {
		t.Errorf("Expected OpenAI key from .secrets, got %q", cfg.Model.APIKey)
	}
	if cfg.Search.APIKey != "from-dotenv" {
		t.Errorf("Expected Google key from .env, got %q", cfg.Search.APIKey)
	}
	if cfg.Search.CSEID != "cx-secrets" {
		t.Errorf(".secrets should override .env, got %q", cfg.Search.CSEID)
	}
	if !cfg.IsSearchConfigured() {
		t.Error("Search should be configured")
	}

	// A fresh default config file must not contain the merged keys.
	data, _ := os.ReadFile(filepath.Join(configTestDir, "config.yaml"))
	if strings.Contains(string(data), "sk-from-secrets") {
		t.Error("Secrets must not be written to config.yaml")
	}
}

func TestEnvironmentOverridesSecrets(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "llmseo-env")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	SetConfigDir(tmpDir)
	if err := os.WriteFile(filepath.Join(tmpDir, ".secrets"), []byte("OPENAI_API_KEY=file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(KeyOpenAIAPIKey, "env")

	s, err := LoadSecrets()
	if err != nil {
		t.Fatalf("LoadSecrets() error: %v", err)
	}
	if got := s.GetOpenAIAPIKey(); got != "env" {
		t.Errorf("Expected env value, got %q", got)
	}
	if !s.Has(KeyOpenAIAPIKey) {
		t.Error("Has should report the key")
	}
	if got := s.GetOrDefault("MISSING", "fallback"); got != "fallback" {
		t.Errorf("GetOrDefault = %q", got)
	}
}

func TestIsAPIKeyConfigured(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.IsAPIKeyConfigured() {
		t.Error("Default config should not have API Key")
	}

	cfg.Model.APIKey = "test-key"
	if !cfg.IsAPIKeyConfigured() {
		t.Error("Should return true after setting API Key")
	}
}

func TestStringRedactsKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.APIKey = "sk-1234567890abcdef"
	cfg.Search.APIKey = "short"

	out := cfg.String()
	if strings.Contains(out, "sk-1234567890abcdef") {
		t.Error("Full API key should not be shown")
	}
	if !strings.Contains(out, "sk-12345...") {
		t.Error("Expected redacted prefix of API key")
	}
	if !strings.Contains(out, "***") {
		t.Error("Short key should be masked")
	}
}

func TestOptimizePath(t *testing.T) {
	o := OptimizeConfig{WorkDir: "/work"}
	if got := o.Path("a.md"); got != filepath.Join("/work", "a.md") {
		t.Errorf("Path() = %s", got)
	}
	if got := o.Path("/abs/a.md"); got != "/abs/a.md" {
		t.Errorf("absolute path should be kept, got %s", got)
	}
}

func TestRenderPrompt(t *testing.T) {
	p := DefaultPromptConfig().Prompts

	out, err := Render(p.SiteSelector, map[string]any{
		"Query":    "best go books",
		"Results":  "1. A\n",
		"MaxSites": 3,
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(out, `search for: "best go books"`) {
		t.Error("Query not rendered")
	}
	if !strings.Contains(out, "select the 3 most valuable") {
		t.Error("MaxSites not rendered")
	}

	if _, err := Render(p.SiteSelector, map[string]any{"Query": "q"}); err == nil {
		t.Error("Missing template keys should fail")
	}
}

func TestLoadPromptConfigOverride(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "llmseo-prompt")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)
	SetConfigDir(tmpDir)

	content := "prompts:\n  company_info: \"Summarise {{.Text}}\"\n"
	if err := os.WriteFile(filepath.Join(tmpDir, "prompt.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	pc, err := LoadPromptConfig()
	if err != nil {
		t.Fatalf("LoadPromptConfig() error: %v", err)
	}
	if pc.Prompts.CompanyInfo != "Summarise {{.Text}}" {
		t.Errorf("Override not applied: %q", pc.Prompts.CompanyInfo)
	}
	if pc.Prompts.SiteSelector == "" {
		t.Error("Unset prompts should keep defaults")
	}
}
