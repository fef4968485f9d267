package orchestrator

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/krishi/internal/scheduler"
	"github.com/ShayCichocki/krishi/internal/worker"
	"github.com/ShayCichocki/krishi/pkg/models"
)

// peerBroker routes ad hoc peer requests to the results a query has
// already collected. Workers never reach each other directly.
type peerBroker struct{}

var _ scheduler.PeerBroker = (*peerBroker)(nil)

// ProxyFor implements scheduler.PeerBroker.
func (b *peerBroker) ProxyFor(from worker.Descriptor, view scheduler.ResultView) worker.PeerProxy {
	return &peerProxy{from: from, view: view}
}

type peerProxy struct {
	from worker.Descriptor
	view scheduler.ResultView
}

// Request returns target's result if from declared it as a peer and the
// result is usable.
func (p *peerProxy) Request(ctx context.Context, target models.WorkerType) (models.WorkerResult, error) {
	if err := ctx.Err(); err != nil {
		return models.WorkerResult{}, err
	}
	if !p.from.DeclaresPeer(target) {
		return models.WorkerResult{}, fmt.Errorf("%s -> %s: %w", p.from.Type, target, worker.ErrPeerNotDeclared)
	}
	res, ok := p.view.Get(target)
	if !ok || res.Status.Failed() {
		return models.WorkerResult{}, fmt.Errorf("%s -> %s: %w", p.from.Type, target, worker.ErrPeerUnavailable)
	}
	debugLog("[broker] %s read peer result from %s", p.from.Type, target)
	return res, nil
}
