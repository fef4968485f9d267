package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/krishi/internal/orchestrator"
	"github.com/ShayCichocki/krishi/pkg/models"
)

var (
	askLang         string
	askFormat       string
	askLowBandwidth bool
	askTrace        bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and print the answer",
	Long: `Ask a single question and print the answer.

The language is detected unless --lang is given. Structured output prints
the full response as JSON, plain output prints only the answer text.

Examples:
  krishi ask "धान में कितना पानी देना चाहिए?"
  krishi ask --farmer f-102 --format structured "best crop for low rainfall"
  krishi ask --low-bandwidth "PM-KISAN eligibility"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askLang, "lang", "", "Language of the question (default: detect)")
	askCmd.Flags().StringVar(&askFormat, "format", "", "Response format: plain or structured (default from config)")
	askCmd.Flags().BoolVar(&askLowBandwidth, "low-bandwidth", false, "Shorten the answer for SMS and slow links")
	askCmd.Flags().BoolVar(&askTrace, "trace", false, "Print the pipeline state trace to stderr")
}

func runAsk(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(askFormat)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, orchestrator.WithDeliverer(orchestrator.NewWriterDeliverer(os.Stdout)))
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.orch.Handle(ctx, orchestrator.Submission{
		SessionID:    sessionID,
		FarmerID:     farmerID,
		Text:         strings.Join(args, " "),
		Language:     askLang,
		Format:       format,
		LowBandwidth: askLowBandwidth,
	})
	if res != nil {
		printOutcome(res)
	}
	return err
}

// parseFormat accepts an empty value to mean the configured default.
func parseFormat(s string) (models.FormatType, error) {
	switch f := models.FormatType(strings.ToLower(s)); f {
	case "", models.FormatPlain, models.FormatStructured:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want plain or structured)", s)
	}
}

// printOutcome writes delivery notes to stderr so stdout stays the answer.
func printOutcome(res *orchestrator.Result) {
	resp := res.Response
	yellow := color.New(color.FgYellow)

	if resp.FlaggedForReview {
		yellow.Fprintln(os.Stderr, "! translation flagged for review")
	}
	if resp.Partial && len(resp.MissingTopics) > 0 {
		yellow.Fprintf(os.Stderr, "! partial answer, missing: %s\n", strings.Join(resp.MissingTopics, ", "))
	}
	for _, c := range resp.Conflicts {
		detail := c.TradeOff
		if c.Chosen != "" {
			detail = "kept " + string(c.Chosen)
		}
		yellow.Fprintf(os.Stderr, "! %s conflict %s: %s\n", c.Axis, c.Outcome, detail)
	}

	if askTrace {
		dim := color.New(color.Faint)
		for _, tr := range res.Trace.Transitions {
			line := fmt.Sprintf("  %s %s", tr.At.Format("15:04:05.000"), tr.To)
			if tr.Note != "" {
				line += " (" + tr.Note + ")"
			}
			dim.Fprintln(os.Stderr, line)
		}
		dim.Fprintf(os.Stderr, "  query %s in %s\n", res.Query.ID, resp.Duration.Round(time.Millisecond))
	}
}
