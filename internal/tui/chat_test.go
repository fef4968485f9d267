package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/krishi/pkg/models"
)

func TestChatApp_SubmitCallsHandler(t *testing.T) {
	app := NewChatApp("f-1")

	var gotTurn int
	var gotQuestion string
	app.SetSubmitHandler(func(turn int, question string) tea.Cmd {
		gotTurn, gotQuestion = turn, question
		return func() tea.Msg {
			return AnswerMsg{Turn: turn, QueryID: "q-1", Response: models.Response{Text: "Sow after the first rain."}}
		}
	})

	_, cmd := app.Update(QuestionSubmittedMsg{Text: "when to sow paddy?"})
	if cmd == nil {
		t.Fatal("expected command from submit handler")
	}
	if gotTurn != 0 || gotQuestion != "when to sow paddy?" {
		t.Errorf("handler got (%d, %q)", gotTurn, gotQuestion)
	}
	if app.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", app.Pending())
	}

	app.Update(cmd())
	if app.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 after answer", app.Pending())
	}
	if !strings.Contains(app.View(), "Sow after the first rain.") {
		t.Error("view should contain the answer")
	}
}

func TestChatApp_NoHandler(t *testing.T) {
	app := NewChatApp("f-1")
	_, cmd := app.Update(QuestionSubmittedMsg{Text: "hello"})
	if cmd != nil {
		t.Error("expected no command without a handler")
	}
	if app.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", app.Pending())
	}
}

func TestChatApp_AnswerNotes(t *testing.T) {
	tests := []struct {
		name string
		msg  AnswerMsg
		want string
	}{
		{
			name: "error without text",
			msg:  AnswerMsg{Err: errors.New("queue full")},
			want: "error: queue full",
		},
		{
			name: "flagged translation",
			msg:  AnswerMsg{Response: models.Response{Text: "answer", FlaggedForReview: true}},
			want: "translation flagged for review",
		},
		{
			name: "partial",
			msg:  AnswerMsg{Response: models.Response{Text: "answer", Partial: true, MissingTopics: []string{"water and soil"}}},
			want: "missing: water and soil",
		},
		{
			name: "retryable failure with text",
			msg: AnswerMsg{
				Response: models.Response{Text: "Service is busy.", Error: &models.ErrorPayload{Retryable: true}},
				Err:      errors.New("busy"),
			},
			want: "you can try again",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewChatApp("f-1")
			app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
			app.Update(QuestionSubmittedMsg{Text: "q"})
			app.Update(tt.msg)
			if view := app.View(); !strings.Contains(view, tt.want) {
				t.Errorf("view missing %q:\n%s", tt.want, view)
			}
		})
	}
}

func TestChatApp_AnswerOutOfRangeIgnored(t *testing.T) {
	app := NewChatApp("f-1")
	app.Update(AnswerMsg{Turn: 3})
	if len(app.turns) != 0 {
		t.Errorf("turns = %d, want 0", len(app.turns))
	}
}

func TestChatApp_StatusLine(t *testing.T) {
	app := NewChatApp("f-1")
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	app.Update(LoadMsg{InFlight: 10, Queued: 50, EstimatedWait: 15 * time.Second})
	app.Update(PipelineMsg{QueryID: "0123456789", Stage: "EXECUTING"})

	view := app.View()
	for _, want := range []string{"10 in flight", "50 queued (~15s)", "01234567 EXECUTING"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	app.Update(AnswerMsg{QueryID: "0123456789"})
	if strings.Contains(app.View(), "EXECUTING") {
		t.Error("stage should clear when its query is answered")
	}
}

func TestChatApp_Quit(t *testing.T) {
	app := NewChatApp("f-1")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("expected QuitMsg, got %T", cmd())
	}
	if app.View() != "" {
		t.Error("view should be empty after quitting")
	}
}

func TestTail(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"a\nb\nc", 2, "b\nc"},
		{"a\nb\n", 5, "a\nb"},
		{"a", 0, ""},
	}
	for _, tt := range tests {
		if got := tail(tt.in, tt.n); got != tt.want {
			t.Errorf("tail(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
