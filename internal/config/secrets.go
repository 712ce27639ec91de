package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Secret keys recognised in .env, .secrets and the process environment.
const (
	KeyOpenAIAPIKey  = "OPENAI_API_KEY"
	KeyOpenAIBaseURL = "OPENAI_BASE_URL"
	KeyGoogleAPIKey  = "GOOGLE_API_KEY"
	KeyGoogleCSEID   = "GOOGLE_CSE_ID"
	KeySearXNGAPIKey = "SEARXNG_API_KEY"
)

var secretKeys = []string{
	KeyOpenAIAPIKey,
	KeyOpenAIBaseURL,
	KeyGoogleAPIKey,
	KeyGoogleCSEID,
	KeySearXNGAPIKey,
}

// envFile is the dotenv file read from the working directory.
var envFile = ".env"

// Secrets sensitive configuration loaded from .env, .secrets and the environment
type Secrets struct {
	values map[string]string
}

// NewSecrets creates a new Secrets instance
func NewSecrets() *Secrets {
	return &Secrets{
		values: make(map[string]string),
	}
}

// SecretsPath returns the secrets file path
func SecretsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".secrets"), nil
}

// LoadSecrets merges, lowest priority first: ./.env, config/.secrets, process env.
// Missing files are not an error.
func LoadSecrets() (*Secrets, error) {
	secrets := NewSecrets()

	var firstErr error
	if err := secrets.mergeFile(envFile); err != nil {
		firstErr = err
	}

	if secretsPath, err := SecretsPath(); err == nil {
		if err := secrets.mergeFile(secretsPath); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, key := range secretKeys {
		if value, ok := os.LookupEnv(key); ok && value != "" {
			secrets.values[key] = value
		}
	}

	return secrets, firstErr
}

func (s *Secrets) mergeFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return err
	}
	for k, v := range values {
		if v != "" {
			s.values[k] = v
		}
	}
	return nil
}

// Get returns the value for a key
func (s *Secrets) Get(key string) string {
	if s == nil || s.values == nil {
		return ""
	}
	return s.values[key]
}

// GetOrDefault returns the value for a key, or the default value if not found
func (s *Secrets) GetOrDefault(key, defaultValue string) string {
	if value := s.Get(key); value != "" {
		return value
	}
	return defaultValue
}

// Has checks if a key exists
func (s *Secrets) Has(key string) bool {
	if s == nil || s.values == nil {
		return false
	}
	_, ok := s.values[key]
	return ok
}

// GetOpenAIAPIKey returns the OpenAI API key
func (s *Secrets) GetOpenAIAPIKey() string {
	return s.Get(KeyOpenAIAPIKey)
}

// GetGoogleAPIKey returns the Google API key
func (s *Secrets) GetGoogleAPIKey() string {
	return s.Get(KeyGoogleAPIKey)
}

// GetGoogleCSEID returns the Google Custom Search engine id
func (s *Secrets) GetGoogleCSEID() string {
	return s.Get(KeyGoogleCSEID)
}
