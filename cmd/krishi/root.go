package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath   string
	debugLogPath string
	farmerID     string
	sessionID    string
)

var rootCmd = &cobra.Command{
	Use:   "krishi",
	Short: "Multilingual farmer advisory orchestrator",
	Long: `Krishi answers farmer questions by routing each query to the advisory
workers it needs (agriculture, policy, sustainability), running them
concurrently with dependencies honored, reconciling conflicting advice and
replying in the farmer's language.

With no arguments, launches the interactive chat.

Core capabilities:
- Detects the farmer's language and translates with an approved glossary
- Scores intent and asks for clarification when a question is ambiguous
- Runs workers within per-worker and per-query deadlines
- Resolves water and income conflicts with a sustainability-first policy
- Remembers each farmer's crops and the recent conversation`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/krishi/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&debugLogPath, "debug-log", "", "Write a pipeline debug log to this file")
	rootCmd.PersistentFlags().StringVar(&farmerID, "farmer", "", "Farmer ID for profile and history")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "Session ID to continue (default: new session)")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
