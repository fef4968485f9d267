package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ShayCichocki/krishi/internal/graph"
	"github.com/ShayCichocki/krishi/internal/worker"
	"github.com/ShayCichocki/krishi/pkg/models"
)

func okWorker(t models.WorkerType, deps ...models.WorkerType) worker.Func {
	return worker.Func{
		Desc: worker.Descriptor{Type: t, DependsOn: deps},
		Fn: func(ctx context.Context, req worker.Request) models.WorkerResult {
			return models.WorkerResult{Worker: t, Status: models.StatusOK, Content: string(t) + " advice", Confidence: 0.9}
		},
	}
}

func slowWorker(t models.WorkerType, timeout time.Duration) worker.Func {
	return worker.Func{
		Desc: worker.Descriptor{Type: t, Timeout: timeout},
		Fn: func(ctx context.Context, req worker.Request) models.WorkerResult {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return models.WorkerResult{Worker: t, Status: models.StatusOK, Content: "late", Confidence: 0.9}
		},
	}
}

func input() Input {
	return Input{
		Query:   models.Query{ID: "q-1", RawText: "what to sow"},
		Context: models.NewSharedContext(models.ContextInput{Season: models.SeasonKharif}),
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(worker.NewRegistry(), Config{})
	if s.cfg.WorkerTimeout != worker.DefaultTimeout {
		t.Errorf("WorkerTimeout = %v, want %v", s.cfg.WorkerTimeout, worker.DefaultTimeout)
	}
	if s.cfg.PoolSize != DefaultPoolSize {
		t.Errorf("PoolSize = %d, want %d", s.cfg.PoolSize, DefaultPoolSize)
	}
}

func TestPlan_Cycle(t *testing.T) {
	_, err := buildPlan(
		[]models.WorkerType{models.WorkerAgriculture, models.WorkerSustainability},
		map[models.WorkerType][]models.WorkerType{
			models.WorkerAgriculture:    {models.WorkerSustainability},
			models.WorkerSustainability: {models.WorkerAgriculture},
		},
		nil,
	)
	if !errors.Is(err, graph.ErrCycleDetected) {
		t.Errorf("buildPlan() error = %v, want ErrCycleDetected", err)
	}
}

func TestPlan_Deduplicates(t *testing.T) {
	plan, err := buildPlan([]models.WorkerType{models.WorkerPolicy, models.WorkerPolicy}, nil, nil)
	if err != nil {
		t.Fatalf("buildPlan() error = %v", err)
	}
	if got := plan.Workers(); len(got) != 1 {
		t.Errorf("Workers() = %v, want one policy worker", got)
	}
}

func TestPlan_ForwardsDebugLog(t *testing.T) {
	reg := worker.NewRegistry().MustRegister(
		okWorker(models.WorkerAgriculture),
		okWorker(models.WorkerSustainability, models.WorkerAgriculture),
	)
	s := New(reg, Config{})
	var lines []string
	s.SetDebugLog(func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	})

	if _, err := s.Plan([]models.WorkerType{models.WorkerSustainability}); err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	found := false
	for _, l := range lines {
		if strings.Contains(l, "[graph.Build]") && strings.Contains(l, "not required") {
			found = true
		}
	}
	if !found {
		t.Errorf("graph debug lines not forwarded, got %q", lines)
	}
}

func TestRun_OneResultPerWorker(t *testing.T) {
	reg := worker.NewRegistry().MustRegister(
		okWorker(models.WorkerAgriculture),
		okWorker(models.WorkerPolicy),
		okWorker(models.WorkerSustainability, models.WorkerAgriculture),
	)
	s := New(reg, Config{})

	plan, err := s.Plan([]models.WorkerType{models.WorkerPolicy, models.WorkerAgriculture, models.WorkerSustainability})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(plan.Batches) != 2 {
		t.Fatalf("expected 2 batches, got %v", plan.Batches)
	}

	results := s.Run(context.Background(), plan, input())
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for w, r := range results {
		if r.Worker != w {
			t.Errorf("result keyed %s carries worker %s", w, r.Worker)
		}
		if r.Status != models.StatusOK {
			t.Errorf("%s status = %s, want OK", w, r.Status)
		}
	}
}

func TestRun_DependentSeesUpstream(t *testing.T) {
	var seen models.WorkerResult
	reg := worker.NewRegistry().MustRegister(
		okWorker(models.WorkerAgriculture),
		worker.Func{
			Desc: worker.Descriptor{Type: models.WorkerSustainability, DependsOn: []models.WorkerType{models.WorkerAgriculture}},
			Fn: func(ctx context.Context, req worker.Request) models.WorkerResult {
				seen = req.Upstream[models.WorkerAgriculture]
				return models.WorkerResult{Status: models.StatusOK, Content: "ok", Confidence: 0.8}
			},
		},
	)
	s := New(reg, Config{})
	plan, _ := s.Plan([]models.WorkerType{models.WorkerAgriculture, models.WorkerSustainability})

	s.Run(context.Background(), plan, input())
	if seen.Worker != models.WorkerAgriculture || seen.Status != models.StatusOK {
		t.Errorf("upstream = %+v, want the agriculture OK result", seen)
	}
}

func TestRun_TimeoutIsolatesFailure(t *testing.T) {
	var absent bool
	reg := worker.NewRegistry().MustRegister(
		slowWorker(models.WorkerAgriculture, 20*time.Millisecond),
		okWorker(models.WorkerPolicy),
		worker.Func{
			Desc: worker.Descriptor{Type: models.WorkerSustainability, DependsOn: []models.WorkerType{models.WorkerAgriculture}},
			Fn: func(ctx context.Context, req worker.Request) models.WorkerResult {
				absent = req.Context.DependencyAbsent(models.WorkerAgriculture)
				return models.WorkerResult{Status: models.StatusOK, Content: "degraded", Confidence: 0.6}
			},
		},
	)
	s := New(reg, Config{})
	plan, _ := s.Plan([]models.WorkerType{models.WorkerAgriculture, models.WorkerPolicy, models.WorkerSustainability})

	results := s.Run(context.Background(), plan, input())

	if got := results[models.WorkerAgriculture].Status; got != models.StatusTimeout {
		t.Errorf("agriculture status = %s, want TIMEOUT", got)
	}
	if got := results[models.WorkerPolicy].Status; got != models.StatusOK {
		t.Errorf("policy status = %s, want OK", got)
	}
	if got := results[models.WorkerSustainability].Status; got != models.StatusOK {
		t.Errorf("sustainability status = %s, want OK", got)
	}
	if !absent {
		t.Error("sustainability should see agriculture marked absent")
	}
}

func TestRun_PanicBecomesError(t *testing.T) {
	reg := worker.NewRegistry().MustRegister(worker.Func{
		Desc: worker.Descriptor{Type: models.WorkerPolicy},
		Fn: func(ctx context.Context, req worker.Request) models.WorkerResult {
			panic("boom")
		},
	})
	s := New(reg, Config{})
	plan, _ := s.Plan([]models.WorkerType{models.WorkerPolicy})

	results := s.Run(context.Background(), plan, input())
	if got := results[models.WorkerPolicy].Status; got != models.StatusError {
		t.Errorf("status = %s, want ERROR", got)
	}
}

func TestRun_UnregisteredWorker(t *testing.T) {
	s := New(worker.NewRegistry(), Config{})
	plan, _ := buildPlan([]models.WorkerType{models.WorkerPolicy}, nil, nil)

	results := s.Run(context.Background(), plan, input())
	if got := results[models.WorkerPolicy].Status; got != models.StatusError {
		t.Errorf("status = %s, want ERROR", got)
	}
}

func TestRun_DeadlineMarksRemainingTimeout(t *testing.T) {
	reg := worker.NewRegistry().MustRegister(
		slowWorker(models.WorkerAgriculture, time.Second),
		okWorker(models.WorkerSustainability, models.WorkerAgriculture),
	)
	s := New(reg, Config{})
	plan, _ := s.Plan([]models.WorkerType{models.WorkerAgriculture, models.WorkerSustainability})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	results := s.Run(ctx, plan, input())
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Run took %v, should stop at the query deadline", elapsed)
	}
	for _, w := range []models.WorkerType{models.WorkerAgriculture, models.WorkerSustainability} {
		if got := results[w].Status; got != models.StatusTimeout {
			t.Errorf("%s status = %s, want TIMEOUT", w, got)
		}
	}
}

func TestRun_NormalizesResults(t *testing.T) {
	tests := []struct {
		name string
		in   models.WorkerResult
		want models.ResultStatus
	}{
		{"unknown status", models.WorkerResult{Status: "MAYBE", Content: "x", Confidence: 0.9}, models.StatusError},
		{"empty content", models.WorkerResult{Status: models.StatusOK, Confidence: 0.9}, models.StatusError},
		{"below confidence floor", models.WorkerResult{Status: models.StatusOK, Content: "x", Confidence: 0.1}, models.StatusLowConfidence},
		{"confidence clamped", models.WorkerResult{Status: models.StatusOK, Content: "x", Confidence: 4}, models.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			reg := worker.NewRegistry().MustRegister(worker.Func{
				Desc: worker.Descriptor{Type: models.WorkerPolicy},
				Fn: func(ctx context.Context, req worker.Request) models.WorkerResult {
					return in
				},
			})
			s := New(reg, Config{})
			plan, _ := s.Plan([]models.WorkerType{models.WorkerPolicy})

			got := s.Run(context.Background(), plan, input())[models.WorkerPolicy]
			if got.Status != tt.want {
				t.Errorf("status = %s, want %s", got.Status, tt.want)
			}
			if got.Confidence > 1 {
				t.Errorf("confidence = %v, want <= 1", got.Confidence)
			}
		})
	}
}

func TestRun_PoolBoundsConcurrency(t *testing.T) {
	var running, peak int32
	var mu sync.Mutex
	track := func(t models.WorkerType) worker.Func {
		return worker.Func{
			Desc: worker.Descriptor{Type: t},
			Fn: func(ctx context.Context, req worker.Request) models.WorkerResult {
				n := atomic.AddInt32(&running, 1)
				mu.Lock()
				if n > peak {
					peak = n
				}
				mu.Unlock()
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return models.WorkerResult{Status: models.StatusOK, Content: "ok", Confidence: 0.9}
			},
		}
	}
	reg := worker.NewRegistry().MustRegister(
		track(models.WorkerAgriculture),
		track(models.WorkerPolicy),
		track(models.WorkerSustainability),
	)
	s := New(reg, Config{PoolSize: 1})
	plan, _ := s.Plan(models.DomainWorkers())

	s.Run(context.Background(), plan, input())
	if peak != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak)
	}
}

type recordingBroker struct {
	from []models.WorkerType
	mu   sync.Mutex
}

func (b *recordingBroker) ProxyFor(from worker.Descriptor, view ResultView) worker.PeerProxy {
	b.mu.Lock()
	b.from = append(b.from, from.Type)
	b.mu.Unlock()
	return nil
}

func TestRun_UsesPeerBroker(t *testing.T) {
	reg := worker.NewRegistry().MustRegister(okWorker(models.WorkerPolicy))
	s := New(reg, Config{})
	b := &recordingBroker{}
	s.SetPeerBroker(b)
	plan, _ := s.Plan([]models.WorkerType{models.WorkerPolicy})

	s.Run(context.Background(), plan, input())
	if len(b.from) != 1 || b.from[0] != models.WorkerPolicy {
		t.Errorf("broker calls = %v, want [policy]", b.from)
	}
}
