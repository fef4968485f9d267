package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/krishi/internal/config"
	"github.com/ShayCichocki/krishi/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store contents and configuration health",
	Long: `Display the state of the local krishi installation.

Shows:
  - Farmers, sessions and turns in the store
  - Translator and intent scorer in use
  - Admission limits and deadlines
  - Where API credentials come from`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}

	fmt.Println("Store")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		printStatus("-", fmt.Sprintf("No database yet at %s. Run 'krishi ask <question>' to start.", dbPath), color.FgYellow)
	} else {
		db, err := state.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		stats, err := db.Stats(ctx)
		if err != nil {
			printStatus("✗", fmt.Sprintf("Store unavailable: %v", err), color.FgRed)
		} else {
			printStatus("✓", dbPath, color.FgGreen)
			fmt.Printf("  Farmers:  %s\n", formatNumber(stats.Farmers))
			fmt.Printf("  Sessions: %s\n", formatNumber(stats.Sessions))
			fmt.Printf("  Turns:    %s\n", formatNumber(stats.Turns))
		}
	}

	fmt.Println("\nPipeline")
	fmt.Printf("  Translator:     %s (primary language %s)\n", cfg.Translation.Provider, cfg.Translation.PrimaryLanguage)
	scorer := "keywords + entities"
	if cfg.Classifier.UseLLM {
		scorer += " + llm similarity"
	}
	fmt.Printf("  Intent scoring: %s\n", scorer)
	queue := formatNumber(cfg.Orchestrator.MaxQueue)
	if cfg.Orchestrator.MaxQueue == 0 {
		queue = "unbounded"
	}
	fmt.Printf("  Admission:      %d in flight, queue %s\n", cfg.Orchestrator.MaxInFlight, queue)
	fmt.Printf("  Deadlines:      query %s, worker %s\n", formatDuration(cfg.Orchestrator.QueryDeadline), formatDuration(cfg.Workers.Timeout))
	fmt.Printf("  Sessions expire after %s of inactivity\n", formatDuration(cfg.Store.InactivityWindow))

	fmt.Println("\nCredentials")
	switch src := config.GetAPIKeySource(cfg); {
	case !cfg.NeedsLLM():
		printStatus("-", "Not needed (no LLM components enabled)", color.FgWhite)
	case src == config.KeySourceNone:
		printStatus("✗", "LLM components enabled but no API key found (set ANTHROPIC_API_KEY)", color.FgRed)
	default:
		printStatus("✓", fmt.Sprintf("API key from %s", src), color.FgGreen)
	}
	return nil
}

// printStatus prints a status line with a colored symbol.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

// formatDuration formats a duration in human-readable form.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}

// formatNumber formats a number with commas.
func formatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
