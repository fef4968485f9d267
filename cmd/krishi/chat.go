package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/krishi/internal/orchestrator"
	"github.com/ShayCichocki/krishi/internal/tui"
	"github.com/ShayCichocki/krishi/pkg/models"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive advisory chat",
	Long: `Launch the interactive chat.

Every question in the chat belongs to one session, so follow-up questions
see the earlier turns. Use --session to continue an earlier session and
--farmer to load a farmer's profile.`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// The chat renders answers from the returned Result.
	quiet := orchestrator.DelivererFunc(func(context.Context, models.Response, models.FormatType) error {
		return nil
	})
	a, err := newApp(ctx, orchestrator.WithDeliverer(quiet), orchestrator.WithEvents(256))
	if err != nil {
		return err
	}

	farmer := farmerID
	if farmer == "" {
		farmer = "local"
	}
	session := sessionID
	if session == "" {
		session = uuid.NewString()
	}

	// Suppress log output while TUI is active (it corrupts the display)
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	program, chat := tui.NewChatProgram(farmer)
	chat.SetSubmitHandler(func(turn int, question string) tea.Cmd {
		return func() tea.Msg {
			res, err := a.orch.Handle(ctx, orchestrator.Submission{
				SessionID: session,
				FarmerID:  farmer,
				Text:      question,
				Format:    models.FormatPlain,
			})
			msg := tui.AnswerMsg{Turn: turn, Err: err}
			if res != nil {
				msg.QueryID = res.Query.ID
				msg.Response = res.Response
			}
			return msg
		}
	})

	go forwardEventsToTUI(program, a.orch)

	_, runErr := program.Run()
	cancel()
	closeErr := a.Close()

	if runErr != nil {
		return fmt.Errorf("run chat: %w", runErr)
	}
	if closeErr != nil {
		return closeErr
	}
	fmt.Fprintf(os.Stderr, "session %s\n", session)
	return nil
}

// forwardEventsToTUI converts orchestrator events to TUI messages.
func forwardEventsToTUI(program *tea.Program, o *orchestrator.Orchestrator) {
	for event := range o.Events() {
		msg := tui.PipelineMsg{QueryID: event.QueryID}
		switch event.Type {
		case orchestrator.EventStateChanged:
			msg.Stage = string(event.State)
			msg.Detail = event.Message
		case orchestrator.EventWorkerFinished:
			msg.Stage = string(event.Worker)
			msg.Detail = fmt.Sprintf("%s in %s", event.Status, event.Duration.Round(time.Millisecond))
		case orchestrator.EventQueryQueued:
			msg.Stage = "QUEUED"
			msg.Detail = "about " + event.EstimatedWait.Round(time.Second).String()
		case orchestrator.EventConflict:
			msg.Stage = "conflict"
			msg.Detail = event.Message
		default:
			msg = tui.PipelineMsg{}
		}
		if msg.Stage != "" {
			program.Send(msg)
		}

		load := o.Load()
		program.Send(tui.LoadMsg{
			InFlight:      load.InFlight,
			Queued:        load.Queued,
			EstimatedWait: load.EstimatedWait,
		})
	}
}
