// Package scheduler plans worker execution into dependency-ordered batches
// and runs each batch concurrently under per-worker timeouts.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ShayCichocki/krishi/internal/graph"
	"github.com/ShayCichocki/krishi/internal/worker"
	"github.com/ShayCichocki/krishi/pkg/models"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultPoolSize      = 16
	DefaultMinConfidence = 0.3
)

// Config holds scheduler settings.
type Config struct {
	// WorkerTimeout is the per-invocation budget for workers whose
	// descriptor declares none.
	WorkerTimeout time.Duration
	// PoolSize caps concurrent worker invocations across all queries.
	PoolSize int
	// MinConfidence demotes OK results below it to LOW_CONFIDENCE.
	MinConfidence float64
}

// Plan is an ordered list of batches. Every worker's dependencies sit in a
// strictly earlier batch.
type Plan struct {
	Batches [][]models.WorkerType
	// Dependencies are the in-plan dependencies of each worker.
	Dependencies map[models.WorkerType][]models.WorkerType
}

// Workers returns every worker in the plan, in batch order.
func (p Plan) Workers() []models.WorkerType {
	var out []models.WorkerType
	for _, b := range p.Batches {
		out = append(out, b...)
	}
	return out
}

// Input is what a Run needs beyond the plan.
type Input struct {
	Query   models.Query
	Context models.SharedContext
}

// ResultView is a read-only view of results collected so far.
type ResultView interface {
	Get(w models.WorkerType) (models.WorkerResult, bool)
}

// PeerBroker builds the proxy a worker uses for ad hoc peer requests.
type PeerBroker interface {
	ProxyFor(from worker.Descriptor, view ResultView) worker.PeerProxy
}

// Scheduler coordinates the execution of planned workers.
type Scheduler struct {
	registry *worker.Registry
	cfg      Config
	// pool bounds concurrent invocations across every Run.
	pool   *semaphore.Weighted
	broker PeerBroker
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a Scheduler dispatching to the registry's workers.
func New(registry *worker.Registry, cfg Config) *Scheduler {
	if cfg.WorkerTimeout <= 0 {
		cfg.WorkerTimeout = worker.DefaultTimeout
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	return &Scheduler{
		registry: registry,
		cfg:      cfg,
		pool:     semaphore.NewWeighted(int64(cfg.PoolSize)),
		debugLog: func(format string, args ...interface{}) {},
	}
}

// SetPeerBroker sets the broker for inter-worker requests.
// If not set, workers receive no peer proxy.
func (s *Scheduler) SetPeerBroker(b PeerBroker) {
	s.broker = b
}

// SetDebugLog sets the debug logging function.
func (s *Scheduler) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		s.debugLog = fn
	}
}

// Plan orders the required workers using the registry's declared dependencies.
// A dependency cycle among required workers is a configuration error and
// returns graph.ErrCycleDetected.
func (s *Scheduler) Plan(required []models.WorkerType) (Plan, error) {
	return buildPlan(required, s.registry.Dependencies(), s.debugLog)
}

// buildPlan layers the required workers into batches.
func buildPlan(required []models.WorkerType, deps map[models.WorkerType][]models.WorkerType, debugLog func(format string, args ...interface{})) (Plan, error) {
	g := graph.New()
	g.SetDebugLog(debugLog)
	if err := g.Build(dedupe(required), deps); err != nil {
		return Plan{}, fmt.Errorf("build plan: %w", err)
	}
	batches, err := g.Batches()
	if err != nil {
		return Plan{}, fmt.Errorf("build plan: %w", err)
	}

	inPlan := make(map[models.WorkerType][]models.WorkerType)
	for _, b := range batches {
		for _, w := range b {
			inPlan[w] = g.GetDependencies(w)
		}
	}
	return Plan{Batches: batches, Dependencies: inPlan}, nil
}

// Run executes the plan batch by batch and returns exactly one result per
// planned worker. Batches run strictly in order; workers within a batch run
// concurrently. When ctx ends, running workers are canceled and every worker
// without a result is reported as TIMEOUT.
func (s *Scheduler) Run(ctx context.Context, plan Plan, in Input) map[models.WorkerType]models.WorkerResult {
	board := newBoard()

	for i, batch := range plan.Batches {
		if err := ctx.Err(); err != nil {
			s.debugLog("[scheduler] deadline reached before batch %d: %v", i, err)
			break
		}
		s.debugLog("[scheduler] running batch %d: %v", i, batch)

		var g errgroup.Group
		for _, w := range batch {
			w := w
			g.Go(func() error {
				board.put(s.invoke(ctx, w, plan, in, board))
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, w := range plan.Workers() {
		if _, ok := board.Get(w); !ok {
			board.put(models.WorkerResult{
				Worker: w,
				Status: models.StatusTimeout,
				Error:  "query deadline exceeded before the worker could run",
			})
		}
	}
	return board.snapshot()
}

// invoke runs one worker under its timeout and normalizes the result.
func (s *Scheduler) invoke(ctx context.Context, w models.WorkerType, plan Plan, in Input, board *resultBoard) models.WorkerResult {
	start := time.Now()

	wk := s.registry.Get(w)
	if wk == nil {
		return models.WorkerResult{Worker: w, Status: models.StatusError, Error: "no worker registered"}
	}
	desc := wk.Descriptor()

	if err := s.pool.Acquire(ctx, 1); err != nil {
		return models.WorkerResult{Worker: w, Status: models.StatusTimeout, Error: "waiting for worker pool: " + err.Error()}
	}
	defer s.pool.Release(1)

	timeout := s.cfg.WorkerTimeout
	if desc.Timeout > 0 {
		timeout = desc.Timeout
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := worker.Request{Query: in.Query, Context: in.Context}
	var absent []models.WorkerType
	for _, dep := range plan.Dependencies[w] {
		if r, ok := board.Get(dep); ok && !r.Status.Failed() {
			if req.Upstream == nil {
				req.Upstream = make(map[models.WorkerType]models.WorkerResult)
			}
			req.Upstream[dep] = r
			continue
		}
		absent = append(absent, dep)
	}
	if len(absent) > 0 {
		s.debugLog("[scheduler] %s: dependencies absent: %v", w, absent)
		req.Context = in.Context.WithAbsent(absent...)
	}
	if s.broker != nil {
		req.Peers = s.broker.ProxyFor(desc, board)
	}

	done := make(chan models.WorkerResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- models.WorkerResult{Worker: w, Status: models.StatusError, Error: fmt.Sprintf("worker panicked: %v", r)}
			}
		}()
		done <- wk.Process(wctx, req)
	}()

	var res models.WorkerResult
	select {
	case res = <-done:
		res = s.normalize(w, res)
	case <-wctx.Done():
		msg := fmt.Sprintf("worker exceeded its %s budget", timeout)
		if ctx.Err() != nil {
			msg = "query deadline exceeded"
			if errors.Is(ctx.Err(), context.Canceled) {
				msg = "query canceled"
			}
		}
		res = models.WorkerResult{Worker: w, Status: models.StatusTimeout, Error: msg}
	}
	res.Duration = time.Since(start)
	s.debugLog("[scheduler] %s finished: status=%s confidence=%.2f in %s", w, res.Status, res.Confidence, res.Duration)
	return res
}

// normalize enforces the result contract: the type tag matches, the status
// is known, and confidence lies in [0,1].
func (s *Scheduler) normalize(w models.WorkerType, res models.WorkerResult) models.WorkerResult {
	res.Worker = w
	if res.Status == "" {
		res.Status = models.StatusOK
	}
	if !res.Status.Valid() {
		return models.WorkerResult{Worker: w, Status: models.StatusError, Error: fmt.Sprintf("invalid result status %q", res.Status)}
	}
	if res.Confidence < 0 {
		res.Confidence = 0
	}
	if res.Confidence > 1 {
		res.Confidence = 1
	}
	if res.Status == models.StatusOK && res.Content == "" {
		return models.WorkerResult{Worker: w, Status: models.StatusError, Error: "invalid result: empty content"}
	}
	if res.Status == models.StatusOK && res.Confidence < s.cfg.MinConfidence {
		res.Status = models.StatusLowConfidence
	}
	return res
}

func dedupe(ws []models.WorkerType) []models.WorkerType {
	seen := make(map[models.WorkerType]bool, len(ws))
	out := make([]models.WorkerType, 0, len(ws))
	for _, w := range ws {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// resultBoard collects results from concurrently running workers.
type resultBoard struct {
	mu      sync.RWMutex
	results map[models.WorkerType]models.WorkerResult
}

func newBoard() *resultBoard {
	return &resultBoard{results: make(map[models.WorkerType]models.WorkerResult)}
}

// Get implements ResultView.
func (b *resultBoard) Get(w models.WorkerType) (models.WorkerResult, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.results[w]
	return r, ok
}

func (b *resultBoard) put(r models.WorkerResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[r.Worker] = r
}

func (b *resultBoard) snapshot() map[models.WorkerType]models.WorkerResult {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[models.WorkerType]models.WorkerResult, len(b.results))
	for k, v := range b.results {
		out[k] = v
	}
	return out
}
