// Package tui provides the interactive chat interface for krishi.
//
// The chat shows each question with its advisory answer, marks answers that
// were flagged for translation review or are missing topics, and keeps a
// status line with admission load and the pipeline stage of the query in
// progress.
//
// Usage:
//
//	program, app := tui.NewChatProgram(farmerID)
//	app.SetSubmitHandler(func(turn int, question string) tea.Cmd {
//	    return func() tea.Msg {
//	        res, err := orch.Handle(ctx, sub)
//	        return tui.AnswerMsg{Turn: turn, Response: res.Response, Err: err}
//	    }
//	})
//	program.Run()
//
// Pipeline progress is pushed with program.Send(tui.PipelineMsg{...}).
package tui
