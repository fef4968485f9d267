package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/ShayCichocki/krishi/internal/worker"
	"github.com/ShayCichocki/krishi/pkg/models"
)

type viewMap map[models.WorkerType]models.WorkerResult

func (v viewMap) Get(w models.WorkerType) (models.WorkerResult, bool) {
	r, ok := v[w]
	return r, ok
}

func TestPeerProxy_Request(t *testing.T) {
	from := worker.Descriptor{Type: models.WorkerSustainability, Peers: []models.WorkerType{models.WorkerAgriculture}}

	tests := []struct {
		name    string
		view    viewMap
		target  models.WorkerType
		wantErr error
	}{
		{
			name:   "declared and available",
			view:   viewMap{models.WorkerAgriculture: {Worker: models.WorkerAgriculture, Status: models.StatusOK, Content: "paddy"}},
			target: models.WorkerAgriculture,
		},
		{
			name:    "not declared",
			view:    viewMap{models.WorkerPolicy: {Worker: models.WorkerPolicy, Status: models.StatusOK}},
			target:  models.WorkerPolicy,
			wantErr: worker.ErrPeerNotDeclared,
		},
		{
			name:    "declared but not finished",
			view:    viewMap{},
			target:  models.WorkerAgriculture,
			wantErr: worker.ErrPeerUnavailable,
		},
		{
			name:    "declared but failed",
			view:    viewMap{models.WorkerAgriculture: {Worker: models.WorkerAgriculture, Status: models.StatusTimeout}},
			target:  models.WorkerAgriculture,
			wantErr: worker.ErrPeerUnavailable,
		},
	}

	b := &peerBroker{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := b.ProxyFor(from, tt.view).Request(context.Background(), tt.target)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Request: %v", err)
			}
			if res.Content != "paddy" {
				t.Errorf("Content = %q, want paddy", res.Content)
			}
		})
	}
}

func TestPeerProxy_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	from := worker.Descriptor{Type: models.WorkerSustainability, Peers: []models.WorkerType{models.WorkerAgriculture}}
	_, err := (&peerBroker{}).ProxyFor(from, viewMap{}).Request(ctx, models.WorkerAgriculture)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want Canceled", err)
	}
}
