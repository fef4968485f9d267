package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/krishi/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Show configuration",
	Long: `View krishi configuration.

Without arguments, displays the effective configuration.
With one argument (key), displays the value for that key.

Configuration is stored at ~/.config/krishi/config.yaml
Project-specific overrides can be placed in .krishi.yaml
Environment variables use the KRISHI_ prefix (KRISHI_ORCHESTRATOR_MAX_IN_FLIGHT).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show [key]",
	Short: "Show the effective configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write default config and routing files",
	Long: `Write the default configuration to ~/.config/krishi/config.yaml and the
default routing tables (keywords, lexicon, units, glossary) next to it.
Existing files are left alone unless --force is given.`,
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing files")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	entries := configEntries(cfg)
	if len(args) == 0 {
		for _, e := range entries {
			fmt.Printf("%s: %s\n", e.key, e.value)
		}
		return nil
	}
	for _, e := range entries {
		if e.key == args[0] {
			fmt.Println(e.value)
			return nil
		}
	}
	return fmt.Errorf("unknown config key: %s", args[0])
}

type configEntry struct {
	key   string
	value string
}

// configEntries lists every configuration value in display order.
func configEntries(cfg *config.Config) []configEntry {
	key, _ := config.GetAPIKey(cfg)
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	return []configEntry{
		{"anthropic.api_key", config.MaskAPIKey(key)},
		{"anthropic.model", cfg.Anthropic.Model},
		{"anthropic.max_tokens", strconv.FormatInt(cfg.Anthropic.MaxTokens, 10)},
		{"anthropic.use_aws_bedrock", strconv.FormatBool(cfg.Anthropic.UseAWSBedrock)},
		{"anthropic.aws_region", cfg.Anthropic.AWSRegion},
		{"orchestrator.query_deadline", cfg.Orchestrator.QueryDeadline.String()},
		{"orchestrator.max_in_flight", strconv.Itoa(cfg.Orchestrator.MaxInFlight)},
		{"orchestrator.max_queue", strconv.Itoa(cfg.Orchestrator.MaxQueue)},
		{"orchestrator.avg_processing", cfg.Orchestrator.AvgProcessing.String()},
		{"workers.timeout", cfg.Workers.Timeout.String()},
		{"workers.pool_size", strconv.Itoa(cfg.Workers.PoolSize)},
		{"workers.min_confidence", f(cfg.Workers.MinConfidence)},
		{"classifier.inclusion_threshold", f(cfg.Classifier.InclusionThreshold)},
		{"classifier.clarification_threshold", f(cfg.Classifier.ClarificationThreshold)},
		{"classifier.similarity_timeout", cfg.Classifier.SimilarityTimeout.String()},
		{"classifier.use_llm", strconv.FormatBool(cfg.Classifier.UseLLM)},
		{"conflict.minimal_impact_threshold", f(cfg.Conflict.MinimalImpactThreshold)},
		{"response.target_words", strconv.Itoa(cfg.Response.TargetWords)},
		{"response.low_bandwidth_words", strconv.Itoa(cfg.Response.LowBandwidthWords)},
		{"response.line_width", strconv.Itoa(cfg.Response.LineWidth)},
		{"response.format", cfg.Response.Format},
		{"translation.provider", cfg.Translation.Provider},
		{"translation.timeout", cfg.Translation.Timeout.String()},
		{"translation.review_threshold", f(cfg.Translation.ReviewThreshold)},
		{"translation.primary_language", cfg.Translation.PrimaryLanguage},
		{"store.path", cfg.Store.Path},
		{"store.history_limit", strconv.Itoa(cfg.Store.HistoryLimit)},
		{"store.inactivity_window", cfg.Store.InactivityWindow.String()},
		{"routing.file", cfg.Routing.File},
		{"routing.watch", strconv.FormatBool(cfg.Routing.Watch)},
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := config.GetUserConfigPath()
	routingFile := filepath.Join(filepath.Dir(configFile), "routing.yaml")

	if err := os.MkdirAll(filepath.Dir(configFile), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	wrote, err := writeIfAbsent(routingFile, config.WriteDefaultRouting)
	if err != nil {
		return fmt.Errorf("write routing: %w", err)
	}
	reportWrite(routingFile, wrote)

	cfg := config.Default()
	cfg.Routing.File = routingFile
	wrote, err = writeIfAbsent(configFile, func(path string) error {
		return config.SaveTo(cfg, path)
	})
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	reportWrite(configFile, wrote)
	return nil
}

// writeIfAbsent calls write unless path exists and --force was not given.
func writeIfAbsent(path string, write func(string) error) (bool, error) {
	if !configForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return false, err
		}
	}
	return true, write(path)
}

func reportWrite(path string, wrote bool) {
	if wrote {
		printStatus("✓", fmt.Sprintf("Wrote %s", path), color.FgGreen)
		return
	}
	printStatus("-", fmt.Sprintf("%s exists (use --force to overwrite)", path), color.FgYellow)
}
