// Package worker defines the capability contract every orchestrated worker
// satisfies, and a registry that dispatches by worker type.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ShayCichocki/krishi/pkg/models"
)

// DefaultTimeout is the per-invocation budget when a descriptor sets none.
const DefaultTimeout = 5 * time.Second

var (
	// ErrPeerNotDeclared is returned when a worker asks for a peer result it
	// did not declare in its descriptor.
	ErrPeerNotDeclared = errors.New("peer not declared")
	// ErrPeerUnavailable is returned when the requested peer has no usable
	// result at the time of the request.
	ErrPeerUnavailable = errors.New("peer result unavailable")
)

// Descriptor declares a worker's participation metadata.
type Descriptor struct {
	// Type is the worker's type tag. It is the registry key.
	Type models.WorkerType
	// DependsOn lists workers whose results must exist before this one runs.
	DependsOn []models.WorkerType
	// Peers lists workers whose results this worker may request ad hoc
	// through the orchestrator while running.
	Peers []models.WorkerType
	// Timeout is the invocation budget. Zero means DefaultTimeout.
	Timeout time.Duration
}

// EffectiveTimeout returns the declared timeout or the default.
func (d Descriptor) EffectiveTimeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultTimeout
}

// DeclaresPeer reports whether target is a declared peer.
func (d Descriptor) DeclaresPeer(target models.WorkerType) bool {
	for _, p := range d.Peers {
		if p == target {
			return true
		}
	}
	return false
}

// PeerProxy lets a running worker read another worker's already-available
// result. Workers never call each other directly.
type PeerProxy interface {
	Request(ctx context.Context, target models.WorkerType) (models.WorkerResult, error)
}

// Request is the input to a single worker invocation.
type Request struct {
	// Query is the classified query.
	Query models.Query
	// Context is the shared read-only context, annotated with any absent
	// dependencies for this invocation.
	Context models.SharedContext
	// Upstream holds the usable results of this worker's dependencies.
	Upstream map[models.WorkerType]models.WorkerResult
	// Peers proxies ad hoc requests for declared peer results. May be nil.
	Peers PeerProxy
}

// Worker is a specialized capability unit.
//
// Process must return within the descriptor's timeout, reporting TIMEOUT or
// ERROR status rather than blocking. It must honor ctx cancellation. A worker
// whose dependency is marked absent in Request.Context must degrade rather
// than fail.
type Worker interface {
	Descriptor() Descriptor
	Process(ctx context.Context, req Request) models.WorkerResult
}

// Func adapts a plain function into a Worker.
type Func struct {
	Desc Descriptor
	Fn   func(ctx context.Context, req Request) models.WorkerResult
}

// Descriptor implements Worker.
func (f Func) Descriptor() Descriptor { return f.Desc }

// Process implements Worker.
func (f Func) Process(ctx context.Context, req Request) models.WorkerResult {
	return f.Fn(ctx, req)
}
