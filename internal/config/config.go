// Package config handles agenty configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/martinemde/agenty/agentloop"
	"github.com/martinemde/agenty/unifiedllm"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AGENTY_"

// DefaultSearchPaths returns the config file search order used when no
// explicit path is given: ./agenty.yaml, then ~/.config/agenty/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"agenty.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "agenty", "config.yaml"))
	}
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise the first existing DefaultSearchPaths entry is returned, or ""
// when there is none; a config file is optional.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// Config holds all agenty configuration.
type Config struct {
	Provider string   `yaml:"provider" env:"PROVIDER" validate:"required"`
	Model    string   `yaml:"model" env:"MODEL"` // empty = catalog default for Provider
	APIKey   string   `yaml:"api_key" env:"API_KEY"`
	BaseURL  string   `yaml:"base_url" env:"BASE_URL" validate:"omitempty,url"`
	Root     string   `yaml:"root" env:"ROOT"`
	System   string   `yaml:"system" env:"SYSTEM"`
	Prefix   string   `yaml:"prefix" env:"PREFIX"`
	LogLevel string   `yaml:"log_level" env:"LOG_LEVEL"`
	MaxSteps int      `yaml:"max_steps" env:"MAX_STEPS" validate:"gte=0"`
	Settings Settings `yaml:"settings" envPrefix:"SETTINGS_"`
}

// Settings are the generation settings applied to every step.
type Settings struct {
	Temperature     float64       `yaml:"temperature" env:"TEMPERATURE" validate:"gte=0,lte=2"`
	PresencePenalty float64       `yaml:"presence_penalty" env:"PRESENCE_PENALTY" validate:"gte=-2,lte=2"`
	MaxTokens       int           `yaml:"max_tokens" env:"MAX_TOKENS" validate:"gte=0"`
	ToolChoice      string        `yaml:"tool_choice" env:"TOOL_CHOICE" validate:"omitempty,oneof=auto none required"`
	Timeout         time.Duration `yaml:"timeout" env:"TIMEOUT" validate:"gte=0"`
	MaxRetries      int           `yaml:"max_retries" env:"MAX_RETRIES" validate:"gte=0"`
}

// Default returns the configuration used before any file or environment
// overrides are applied.
func Default() *Config {
	s := agentloop.DefaultSettings()
	return &Config{
		Provider: "openai",
		Root:     ".",
		LogLevel: "info",
		Settings: Settings{
			Temperature:     s.Temperature,
			PresencePenalty: s.PresencePenalty,
			MaxTokens:       s.MaxTokens,
			ToolChoice:      s.ToolChoice.Mode,
			Timeout:         s.Timeout,
			MaxRetries:      s.Retry.MaxRetries,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty), and AGENTY_* environment variables, in that order,
// then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and the log level.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// AgentSettings converts Settings for the agent loop.
func (c *Config) AgentSettings() agentloop.Settings {
	retry := unifiedllm.DefaultRetryPolicy()
	retry.MaxRetries = c.Settings.MaxRetries

	s := agentloop.Settings{
		Temperature:     c.Settings.Temperature,
		PresencePenalty: c.Settings.PresencePenalty,
		MaxTokens:       c.Settings.MaxTokens,
		Timeout:         c.Settings.Timeout,
		Retry:           retry,
	}
	if c.Settings.ToolChoice != "" {
		s.ToolChoice = unifiedllm.ToolChoice{Mode: c.Settings.ToolChoice}
	}
	return s
}

// ResolvedModel returns Model with aliases resolved, falling back to the
// catalog default for Provider.
func (c *Config) ResolvedModel() string {
	if c.Model != "" {
		return unifiedllm.ResolveModel(c.Model)
	}
	return unifiedllm.DefaultModel(c.Provider)
}
