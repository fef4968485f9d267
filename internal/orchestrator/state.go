package orchestrator

import (
	"fmt"
	"time"
)

// State is a query's position in the pipeline.
type State string

const (
	StateReceived     State = "RECEIVED"
	StateContextBuilt State = "CONTEXT_BUILT"
	StateClassified   State = "CLASSIFIED"
	StateClarifying   State = "CLARIFYING"
	StateExecuting    State = "EXECUTING"
	StateResolved     State = "RESOLVED"
	StateSynthesized  State = "SYNTHESIZED"
	StateDelivered    State = "DELIVERED"
	StateFailed       State = "FAILED"
)

// transitions lists the allowed successors of each state. FAILED is
// reachable from every non-terminal state and is added in canTransition.
var transitions = map[State][]State{
	StateReceived:     {StateContextBuilt},
	StateContextBuilt: {StateClassified},
	StateClassified:   {StateClarifying, StateExecuting},
	StateExecuting:    {StateResolved},
	StateResolved:     {StateSynthesized},
	StateSynthesized:  {StateDelivered},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateClarifying || s == StateDelivered || s == StateFailed
}

func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition is one recorded state change.
type Transition struct {
	From State     `json:"from,omitempty"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
	Note string    `json:"note,omitempty"`
}

// Trace is the ordered state history of one query.
type Trace struct {
	QueryID     string       `json:"query_id"`
	Transitions []Transition `json:"transitions"`
}

// State returns the current state.
func (t *Trace) State() State {
	if len(t.Transitions) == 0 {
		return ""
	}
	return t.Transitions[len(t.Transitions)-1].To
}

// States lists the visited states in order.
func (t *Trace) States() []State {
	out := make([]State, 0, len(t.Transitions))
	for _, tr := range t.Transitions {
		out = append(out, tr.To)
	}
	return out
}

// start records entry into RECEIVED.
func (t *Trace) start(at time.Time) {
	t.Transitions = append(t.Transitions[:0], Transition{To: StateReceived, At: at})
}

// advance records a transition. An illegal transition is a programming
// error and is reported rather than recorded.
func (t *Trace) advance(to State, at time.Time, note string) error {
	from := t.State()
	if !canTransition(from, to) {
		return fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	t.Transitions = append(t.Transitions, Transition{From: from, To: to, At: at, Note: note})
	return nil
}
