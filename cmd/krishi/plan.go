package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/krishi/internal/intent"
	"github.com/ShayCichocki/krishi/internal/scheduler"
	"github.com/ShayCichocki/krishi/pkg/models"
)

var planCmd = &cobra.Command{
	Use:   "plan <english question>",
	Short: "Show how a question would be routed without answering it",
	Long: `Classify an English question and print the intent scores, the selected
workers and the batches they would run in. No worker is invoked and nothing
is recorded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cls, plan, err := a.orch.Explain(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	printPlan(cls, plan)
	return nil
}

func printPlan(cls intent.Classification, plan scheduler.Plan) {
	bold := color.New(color.Bold)

	bold.Println("Intent scores")
	workers := make([]models.WorkerType, 0, len(cls.Scores))
	for w := range cls.Scores {
		workers = append(workers, w)
	}
	sort.Slice(workers, func(i, j int) bool {
		if cls.Scores[workers[i]] != cls.Scores[workers[j]] {
			return cls.Scores[workers[i]] > cls.Scores[workers[j]]
		}
		return workers[i] < workers[j]
	})
	included := make(map[models.WorkerType]bool, len(cls.Workers))
	for _, w := range cls.Workers {
		included[w] = true
	}
	for _, w := range workers {
		mark := " "
		if included[w] {
			mark = color.GreenString("*")
		}
		fmt.Printf("  %s %-16s %.2f  %s\n", mark, w, cls.Scores[w], w.Topic())
	}
	fmt.Println()

	if cls.NeedsClarification {
		printStatus("?", fmt.Sprintf("Needs clarification (confidence %.2f)", cls.Confidence), color.FgYellow)
		return
	}

	printStatus("✓", fmt.Sprintf("Primary %s, confidence %.2f", cls.Primary, cls.Confidence), color.FgGreen)
	bold.Println("\nBatches")
	for i, batch := range plan.Batches {
		names := make([]string, len(batch))
		for j, w := range batch {
			names[j] = string(w)
			if deps := plan.Dependencies[w]; len(deps) > 0 {
				names[j] += fmt.Sprintf(" (after %s)", joinWorkers(deps))
			}
		}
		fmt.Printf("  %d. %s\n", i+1, strings.Join(names, ", "))
	}
}

func joinWorkers(ws []models.WorkerType) string {
	s := make([]string, len(ws))
	for i, w := range ws {
		s[i] = string(w)
	}
	return strings.Join(s, ", ")
}
