package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/krishi/pkg/models"
)

// SubmitHandler starts answering a question and returns a command that
// yields the AnswerMsg for the given turn.
type SubmitHandler func(turn int, question string) tea.Cmd

// AnswerMsg carries the outcome of one submitted question.
type AnswerMsg struct {
	Turn     int
	QueryID  string
	Response models.Response
	Err      error
}

// PipelineMsg reports progress of an in-flight query.
type PipelineMsg struct {
	QueryID string
	Stage   string
	Detail  string
}

// LoadMsg reports admission load.
type LoadMsg struct {
	InFlight      int
	Queued        int
	EstimatedWait time.Duration
}

// chatTurn is one question and its answer.
type chatTurn struct {
	question string
	answer   models.Response
	err      error
	pending  bool
}

// ChatApp is the bubbletea model for the interactive advisory chat.
type ChatApp struct {
	farmerID string
	input    *InputField
	spinner  spinner.Model
	turns    []chatTurn
	stage    PipelineMsg
	load     LoadMsg
	width    int
	height   int
	quitting bool

	submit SubmitHandler

	titleStyle    lipgloss.Style
	subtleStyle   lipgloss.Style
	questionStyle lipgloss.Style
	answerStyle   lipgloss.Style
	flagStyle     lipgloss.Style
	errorStyle    lipgloss.Style
}

// NewChatApp creates a new ChatApp for a farmer.
func NewChatApp(farmerID string) *ChatApp {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))

	return &ChatApp{
		farmerID: farmerID,
		input:    NewInputField(),
		spinner:  sp,
		width:    80,
		height:   24,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("28")).
			Padding(0, 1),

		subtleStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		questionStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true),

		answerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),

		flagStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
	}
}

// SetSubmitHandler sets the callback invoked for each submitted question.
func (a *ChatApp) SetSubmitHandler(h SubmitHandler) {
	a.submit = h
}

// Init implements tea.Model.
func (a *ChatApp) Init() tea.Cmd {
	return tea.Batch(a.input.Focus(), a.spinner.Tick)
}

// Update implements tea.Model.
func (a *ChatApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			a.quitting = true
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.SetWidth(msg.Width)
		return a, nil

	case QuestionSubmittedMsg:
		a.turns = append(a.turns, chatTurn{question: msg.Text, pending: true})
		if a.submit == nil {
			return a, nil
		}
		return a, a.submit(len(a.turns)-1, msg.Text)

	case AnswerMsg:
		if msg.Turn >= 0 && msg.Turn < len(a.turns) {
			t := &a.turns[msg.Turn]
			t.pending = false
			t.answer = msg.Response
			t.err = msg.Err
		}
		if a.stage.QueryID == msg.QueryID {
			a.stage = PipelineMsg{}
		}
		return a, nil

	case PipelineMsg:
		a.stage = msg
		return a, nil

	case LoadMsg:
		a.load = msg
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// View implements tea.Model.
func (a *ChatApp) View() string {
	if a.quitting {
		return ""
	}

	header := a.titleStyle.Render("krishi") + " " + a.subtleStyle.Render("farmer "+a.farmerID)
	footer := a.renderStatus() + "\n" + a.input.View()

	avail := a.height - lipgloss.Height(header) - lipgloss.Height(footer) - 1
	body := tail(a.renderTurns(), avail)

	return header + "\n" + body + "\n" + footer
}

// Pending reports how many questions are still awaiting an answer.
func (a *ChatApp) Pending() int {
	n := 0
	for _, t := range a.turns {
		if t.pending {
			n++
		}
	}
	return n
}

func (a *ChatApp) renderTurns() string {
	if len(a.turns) == 0 {
		return a.subtleStyle.Render("Ask a question in your language. Esc to quit.")
	}

	width := max(a.width-2, 20)
	wrap := lipgloss.NewStyle().Width(width)
	var b strings.Builder
	for i, t := range a.turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(a.questionStyle.Render("you: "))
		b.WriteString(wrap.Render(t.question))
		b.WriteString("\n")

		switch {
		case t.pending:
			b.WriteString(a.spinner.View() + a.subtleStyle.Render(" thinking..."))
		case t.err != nil && t.answer.Text == "":
			b.WriteString(a.errorStyle.Render("error: " + t.err.Error()))
		default:
			b.WriteString(a.answerStyle.Width(width).Render(t.answer.Text))
			if note := a.answerNote(t.answer); note != "" {
				b.WriteString("\n" + a.flagStyle.Render(note))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (a *ChatApp) answerNote(r models.Response) string {
	var notes []string
	if r.FlaggedForReview {
		notes = append(notes, "translation flagged for review")
	}
	if r.Partial && len(r.MissingTopics) > 0 {
		notes = append(notes, "missing: "+strings.Join(r.MissingTopics, ", "))
	}
	if r.Error != nil && r.Error.Retryable {
		notes = append(notes, "you can try again")
	}
	if len(notes) == 0 {
		return ""
	}
	return "! " + strings.Join(notes, "; ")
}

func (a *ChatApp) renderStatus() string {
	parts := []string{fmt.Sprintf("%d in flight", a.load.InFlight)}
	if a.load.Queued > 0 {
		parts = append(parts, fmt.Sprintf("%d queued (~%s)", a.load.Queued, a.load.EstimatedWait.Round(time.Second)))
	}
	if a.stage.Stage != "" {
		s := shortID(a.stage.QueryID) + " " + a.stage.Stage
		if a.stage.Detail != "" {
			s += ": " + a.stage.Detail
		}
		parts = append(parts, s)
	}
	return a.subtleStyle.Render(strings.Join(parts, " | "))
}

// tail keeps the last n lines of s.
func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// NewChatProgram creates a new tea.Program running a ChatApp.
func NewChatProgram(farmerID string) (*tea.Program, *ChatApp) {
	app := NewChatApp(farmerID)
	p := tea.NewProgram(app, tea.WithAltScreen())
	return p, app
}
