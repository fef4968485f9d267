package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Workers.Timeout != 5*time.Second {
		t.Errorf("expected worker timeout 5s, got %v", cfg.Workers.Timeout)
	}
	if cfg.Orchestrator.QueryDeadline != 10*time.Second {
		t.Errorf("expected query deadline 10s, got %v", cfg.Orchestrator.QueryDeadline)
	}
	if cfg.Classifier.InclusionThreshold != 0.35 {
		t.Errorf("expected inclusion threshold 0.35, got %v", cfg.Classifier.InclusionThreshold)
	}
	if cfg.Classifier.ClarificationThreshold != 0.5 {
		t.Errorf("expected clarification threshold 0.5, got %v", cfg.Classifier.ClarificationThreshold)
	}
	if cfg.Conflict.MinimalImpactThreshold != 0.15 {
		t.Errorf("expected minimal impact 0.15, got %v", cfg.Conflict.MinimalImpactThreshold)
	}
	if cfg.Response.TargetWords != 250 {
		t.Errorf("expected target words 250, got %d", cfg.Response.TargetWords)
	}
	if cfg.Translation.Timeout != time.Second {
		t.Errorf("expected translation timeout 1s, got %v", cfg.Translation.Timeout)
	}
	if cfg.Translation.ReviewThreshold != 0.7 {
		t.Errorf("expected review threshold 0.7, got %v", cfg.Translation.ReviewThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	configContent := `
anthropic:
  api_key: test-key
orchestrator:
  query_deadline: 8s
  max_in_flight: 4
workers:
  timeout: 2s
  pool_size: 8
classifier:
  inclusion_threshold: 0.4
response:
  format: structured
  line_width: 0
translation:
  provider: llm
store:
  history_limit: 3
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}
	if cfg.Orchestrator.QueryDeadline != 8*time.Second {
		t.Errorf("expected query deadline 8s, got %v", cfg.Orchestrator.QueryDeadline)
	}
	if cfg.Orchestrator.MaxInFlight != 4 {
		t.Errorf("expected max_in_flight 4, got %d", cfg.Orchestrator.MaxInFlight)
	}
	if cfg.Workers.Timeout != 2*time.Second || cfg.Workers.PoolSize != 8 {
		t.Errorf("workers = %+v", cfg.Workers)
	}
	if cfg.Classifier.InclusionThreshold != 0.4 {
		t.Errorf("expected inclusion threshold 0.4, got %v", cfg.Classifier.InclusionThreshold)
	}
	if cfg.Response.Format != "structured" || cfg.Response.LineWidth != 0 {
		t.Errorf("response = %+v", cfg.Response)
	}
	if !cfg.NeedsLLM() {
		t.Error("llm translation provider should need the API")
	}

	// Unset keys keep their defaults.
	if cfg.Classifier.ClarificationThreshold != 0.5 {
		t.Errorf("expected default clarification threshold, got %v", cfg.Classifier.ClarificationThreshold)
	}
	if cfg.Store.InactivityWindow != 720*time.Hour {
		t.Errorf("expected default inactivity window, got %v", cfg.Store.InactivityWindow)
	}
}

func TestLoadFromPath_EnvOverride(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("workers:\n  pool_size: 8\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("KRISHI_WORKERS_POOL_SIZE", "3")

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Workers.PoolSize != 3 {
		t.Errorf("expected env override pool_size 3, got %d", cfg.Workers.PoolSize)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"threshold out of range", "classifier:\n  inclusion_threshold: 1.5\n"},
		{"inclusion above clarification", "classifier:\n  inclusion_threshold: 0.6\n  clarification_threshold: 0.5\n"},
		{"unknown format", "response:\n  format: html\n"},
		{"zero pool", "workers:\n  pool_size: 0\n"},
		{"unknown provider", "translation:\n  provider: magic\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}
			_, err := LoadFromPath(path)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("LoadFromPath error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Workers.PoolSize = 12
	cfg.Routing.File = "/etc/krishi/routing.yaml"
	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Workers.PoolSize != 12 || loaded.Routing.File != "/etc/krishi/routing.yaml" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
	if loaded.Orchestrator.QueryDeadline != 10*time.Second {
		t.Errorf("QueryDeadline = %v", loaded.Orchestrator.QueryDeadline)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	if got := expandEnv("${TEST_VAR}"); got != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", got)
	}
	if got := expandEnv("prefix-${TEST_VAR}-suffix"); got != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", got)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	if dir := getUserConfigDir(); dir != "/custom/config/krishi" {
		t.Errorf("expected /custom/config/krishi, got %q", dir)
	}
}
