package freeplay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variable names read by ConfigFromEnv and reported by Validate.
const (
	EnvAPIKey          = "FREEPLAY_API_KEY"
	EnvProjectID       = "FREEPLAY_PROJECT_ID"
	EnvAPIURL          = "FREEPLAY_API_URL"
	EnvPromptVersionID = "FREEPLAY_PROMPT_VERSION_ID"
)

// DefaultAPIURL is the API base used when no URL is configured.
const DefaultAPIURL = "https://app.freeplay.ai/api/v2"

// Config holds the settings needed to talk to the Freeplay API. Values are
// fixed at construction time; validation happens separately so callers can
// report every missing setting at once.
type Config struct {
	APIKey          string `yaml:"api_key"`
	ProjectID       string `yaml:"project_id"`
	APIURL          string `yaml:"api_url"`
	PromptVersionID string `yaml:"prompt_version_id"`
}

// ConfigFromEnv builds a Config from the FREEPLAY_* environment variables.
// No validation or I/O beyond reading the environment happens here.
func ConfigFromEnv() Config {
	return withDefaults(Config{
		APIKey:          os.Getenv(EnvAPIKey),
		ProjectID:       os.Getenv(EnvProjectID),
		APIURL:          os.Getenv(EnvAPIURL),
		PromptVersionID: os.Getenv(EnvPromptVersionID),
	})
}

// LoadConfigFile reads a Config from a YAML file holding the same four
// settings as the environment form (api_key, project_id, api_url,
// prompt_version_id).
func LoadConfigFile(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	return withDefaults(cfg), nil
}

func withDefaults(cfg Config) Config {
	if strings.TrimSpace(cfg.APIURL) == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return cfg
}

// Validate checks that the named settings are present. With no arguments it
// requires the API key and project id, the minimum for any network
// operation. The returned *ConfigurationError lists every missing name, not
// just the first.
func (c Config) Validate(required ...string) error {
	if len(required) == 0 {
		required = []string{EnvAPIKey, EnvProjectID}
	}

	values := map[string]string{
		EnvAPIKey:          c.APIKey,
		EnvProjectID:       c.ProjectID,
		EnvAPIURL:          c.APIURL,
		EnvPromptVersionID: c.PromptVersionID,
	}

	var missing []string
	for _, name := range required {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}
