package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when the LLM providers are enabled without a key.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv     KeySource = "environment"
	KeySourceConfig  KeySource = "config_file"
	KeySourceBedrock KeySource = "aws_bedrock"
	KeySourceNone    KeySource = "none"
)

// NeedsLLM reports whether any configured component calls the Anthropic API.
func (c *Config) NeedsLLM() bool {
	return c.Classifier.UseLLM || c.Translation.Provider == "llm"
}

// GetAPIKey returns the Anthropic API key, checking the environment first.
func GetAPIKey(cfg *Config) (string, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, nil
	}
	if cfg != nil {
		if key := os.ExpandEnv(cfg.Anthropic.APIKey); key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}
	return "", ErrNoAPIKey
}

// GetAPIKeySource returns where the API credentials come from.
func GetAPIKeySource(cfg *Config) KeySource {
	if cfg != nil && cfg.Anthropic.UseAWSBedrock {
		return KeySourceBedrock
	}
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return KeySourceEnv
	}
	if _, err := GetAPIKey(cfg); err == nil {
		return KeySourceConfig
	}
	return KeySourceNone
}

// MaskAPIKey returns a masked version of the API key for display.
func MaskAPIKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 15:
		return "***"
	default:
		return key[:7] + "..." + key[len(key)-4:]
	}
}
