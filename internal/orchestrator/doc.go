// Package orchestrator answers farmer queries by coordinating specialized
// workers.
//
// Each query moves through a fixed pipeline:
//
//	RECEIVED -> CONTEXT_BUILT -> CLASSIFIED -> EXECUTING -> RESOLVED -> SYNTHESIZED -> DELIVERED
//
// A weakly classified query stops in CLARIFYING with a prompt asking the
// farmer to rephrase; an unrecoverable error stops in FAILED with a
// structured error payload. Every transition is recorded on the query's
// Trace and emitted as an Event.
//
// Queries above the in-flight limit wait in a FIFO queue. Submit returns
// immediately with an estimated wait; Handle submits and waits.
//
// Example usage:
//
//	orch, err := orchestrator.New(orchestrator.RequiredConfig{
//		Registry: registry,
//		Builder:  builder,
//	}, orchestrator.WithTranslator(tr))
//	res, err := orch.Handle(ctx, orchestrator.Submission{FarmerID: "f-1", Text: "which crop for kharif?"})
package orchestrator
