// Package config handles configuration loading and management for krishi.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrInvalid is returned when a loaded configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration for krishi.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Workers      WorkersConfig      `mapstructure:"workers"`
	Classifier   ClassifierConfig   `mapstructure:"classifier"`
	Conflict     ConflictConfig     `mapstructure:"conflict"`
	Response     ResponseConfig     `mapstructure:"response"`
	Translation  TranslationConfig  `mapstructure:"translation"`
	Store        StoreConfig        `mapstructure:"store"`
	Routing      RoutingConfig      `mapstructure:"routing"`
}

// AnthropicConfig holds Anthropic API settings. The API is only used when
// the LLM translator or similarity scorer is enabled.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	MaxTokens     int64  `mapstructure:"max_tokens" validate:"gte=0"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// OrchestratorConfig holds admission and deadline settings.
type OrchestratorConfig struct {
	QueryDeadline time.Duration `mapstructure:"query_deadline" validate:"gt=0"`
	MaxInFlight   int           `mapstructure:"max_in_flight" validate:"gte=1"`
	// MaxQueue bounds queries waiting for a slot; 0 means unbounded.
	MaxQueue      int           `mapstructure:"max_queue" validate:"gte=0"`
	// AvgProcessing seeds the wait estimate until real timings exist.
	AvgProcessing time.Duration `mapstructure:"avg_processing" validate:"gt=0"`
}

// WorkersConfig holds worker execution settings.
type WorkersConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	PoolSize      int           `mapstructure:"pool_size" validate:"gte=1"`
	MinConfidence float64       `mapstructure:"min_confidence" validate:"gte=0,lte=1"`
}

// ClassifierConfig holds intent routing thresholds.
type ClassifierConfig struct {
	InclusionThreshold     float64       `mapstructure:"inclusion_threshold" validate:"gte=0,lte=1"`
	ClarificationThreshold float64       `mapstructure:"clarification_threshold" validate:"gte=0,lte=1"`
	SimilarityTimeout      time.Duration `mapstructure:"similarity_timeout" validate:"gte=0"`
	// UseLLM enables the language-model similarity signal.
	UseLLM bool `mapstructure:"use_llm"`
}

// ConflictConfig holds conflict resolution settings.
type ConflictConfig struct {
	MinimalImpactThreshold float64 `mapstructure:"minimal_impact_threshold" validate:"gte=0,lte=1"`
}

// ResponseConfig holds response synthesis settings.
type ResponseConfig struct {
	TargetWords       int    `mapstructure:"target_words" validate:"gte=1"`
	LowBandwidthWords int    `mapstructure:"low_bandwidth_words" validate:"gte=1"`
	// LineWidth wraps plain-text answers; 0 uses the 160-column SMS default.
	LineWidth         int    `mapstructure:"line_width" validate:"gte=0"`
	Format            string `mapstructure:"format" validate:"oneof=plain structured"`
}

// TranslationConfig holds translation settings.
type TranslationConfig struct {
	// Provider selects the translator: glossary or llm.
	Provider        string        `mapstructure:"provider" validate:"oneof=glossary llm"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	ReviewThreshold float64       `mapstructure:"review_threshold" validate:"gte=0,lte=1"`
	PrimaryLanguage string        `mapstructure:"primary_language" validate:"required"`
}

// StoreConfig holds profile and history store settings.
type StoreConfig struct {
	// Path is the sqlite database path. Empty means the XDG data directory.
	Path             string        `mapstructure:"path"`
	HistoryLimit     int           `mapstructure:"history_limit" validate:"gte=1"`
	InactivityWindow time.Duration `mapstructure:"inactivity_window" validate:"gt=0"`
}

// RoutingConfig points at an optional routing file with keyword tables,
// lexicon, unit map and glossary overrides.
type RoutingConfig struct {
	File  string `mapstructure:"file"`
	Watch bool   `mapstructure:"watch"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (KRISHI_*, ANTHROPIC_API_KEY)
// 2. Project config (.krishi.yaml in current directory or parent)
// 3. User config (~/.config/krishi/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	bindEnv(v)
	return decode(v)
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)
	return decode(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("KRISHI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "KRISHI_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Store.Path = expandEnv(cfg.Store.Path)
	cfg.Routing.File = expandEnv(cfg.Routing.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Classifier.InclusionThreshold > c.Classifier.ClarificationThreshold {
		return fmt.Errorf("%w: classifier.inclusion_threshold must not exceed clarification_threshold", ErrInvalid)
	}
	if c.Response.LowBandwidthWords > c.Response.TargetWords {
		return fmt.Errorf("%w: response.low_bandwidth_words must not exceed target_words", ErrInvalid)
	}
	return nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return SaveTo(cfg, filepath.Join(userConfigDir, "config.yaml"))
}

// SaveTo writes the configuration to path.
func SaveTo(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.use_aws_bedrock", cfg.Anthropic.UseAWSBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("orchestrator.query_deadline", cfg.Orchestrator.QueryDeadline.String())
	v.Set("orchestrator.max_in_flight", cfg.Orchestrator.MaxInFlight)
	v.Set("orchestrator.max_queue", cfg.Orchestrator.MaxQueue)
	v.Set("orchestrator.avg_processing", cfg.Orchestrator.AvgProcessing.String())
	v.Set("workers.timeout", cfg.Workers.Timeout.String())
	v.Set("workers.pool_size", cfg.Workers.PoolSize)
	v.Set("workers.min_confidence", cfg.Workers.MinConfidence)
	v.Set("classifier.inclusion_threshold", cfg.Classifier.InclusionThreshold)
	v.Set("classifier.clarification_threshold", cfg.Classifier.ClarificationThreshold)
	v.Set("classifier.similarity_timeout", cfg.Classifier.SimilarityTimeout.String())
	v.Set("classifier.use_llm", cfg.Classifier.UseLLM)
	v.Set("conflict.minimal_impact_threshold", cfg.Conflict.MinimalImpactThreshold)
	v.Set("response.target_words", cfg.Response.TargetWords)
	v.Set("response.low_bandwidth_words", cfg.Response.LowBandwidthWords)
	v.Set("response.line_width", cfg.Response.LineWidth)
	v.Set("response.format", cfg.Response.Format)
	v.Set("translation.provider", cfg.Translation.Provider)
	v.Set("translation.timeout", cfg.Translation.Timeout.String())
	v.Set("translation.review_threshold", cfg.Translation.ReviewThreshold)
	v.Set("translation.primary_language", cfg.Translation.PrimaryLanguage)
	v.Set("store.path", cfg.Store.Path)
	v.Set("store.history_limit", cfg.Store.HistoryLimit)
	v.Set("store.inactivity_window", cfg.Store.InactivityWindow.String())
	v.Set("routing.file", cfg.Routing.File)
	v.Set("routing.watch", cfg.Routing.Watch)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.max_tokens", d.Anthropic.MaxTokens)
	v.SetDefault("anthropic.use_aws_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("orchestrator.query_deadline", "10s")
	v.SetDefault("orchestrator.max_in_flight", d.Orchestrator.MaxInFlight)
	v.SetDefault("orchestrator.max_queue", d.Orchestrator.MaxQueue)
	v.SetDefault("orchestrator.avg_processing", "3s")

	v.SetDefault("workers.timeout", "5s")
	v.SetDefault("workers.pool_size", d.Workers.PoolSize)
	v.SetDefault("workers.min_confidence", d.Workers.MinConfidence)

	v.SetDefault("classifier.inclusion_threshold", d.Classifier.InclusionThreshold)
	v.SetDefault("classifier.clarification_threshold", d.Classifier.ClarificationThreshold)
	v.SetDefault("classifier.similarity_timeout", "1s")
	v.SetDefault("classifier.use_llm", false)

	v.SetDefault("conflict.minimal_impact_threshold", d.Conflict.MinimalImpactThreshold)

	v.SetDefault("response.target_words", d.Response.TargetWords)
	v.SetDefault("response.low_bandwidth_words", d.Response.LowBandwidthWords)
	v.SetDefault("response.line_width", d.Response.LineWidth)
	v.SetDefault("response.format", d.Response.Format)

	v.SetDefault("translation.provider", d.Translation.Provider)
	v.SetDefault("translation.timeout", "1s")
	v.SetDefault("translation.review_threshold", d.Translation.ReviewThreshold)
	v.SetDefault("translation.primary_language", d.Translation.PrimaryLanguage)

	v.SetDefault("store.path", "")
	v.SetDefault("store.history_limit", d.Store.HistoryLimit)
	v.SetDefault("store.inactivity_window", "720h")

	v.SetDefault("routing.file", "")
	v.SetDefault("routing.watch", false)
}

// getUserConfigDir returns the XDG config directory for krishi.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "krishi")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "krishi")
	}
	return filepath.Join(home, ".config", "krishi")
}

// findProjectConfig searches for .krishi.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ".krishi.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-haiku-4-5-20251001",
			MaxTokens: 1024,
		},
		Orchestrator: OrchestratorConfig{
			QueryDeadline: 10 * time.Second,
			MaxInFlight:   10,
			MaxQueue:      500,
			AvgProcessing: 3 * time.Second,
		},
		Workers: WorkersConfig{
			Timeout:       5 * time.Second,
			PoolSize:      16,
			MinConfidence: 0.3,
		},
		Classifier: ClassifierConfig{
			InclusionThreshold:     0.35,
			ClarificationThreshold: 0.5,
			SimilarityTimeout:      time.Second,
		},
		Conflict: ConflictConfig{
			MinimalImpactThreshold: 0.15,
		},
		Response: ResponseConfig{
			TargetWords:       250,
			LowBandwidthWords: 100,
			LineWidth:         160,
			Format:            "plain",
		},
		Translation: TranslationConfig{
			Provider:        "glossary",
			Timeout:         time.Second,
			ReviewThreshold: 0.7,
			PrimaryLanguage: "hi",
		},
		Store: StoreConfig{
			HistoryLimit:     10,
			InactivityWindow: 30 * 24 * time.Hour,
		},
	}
}
