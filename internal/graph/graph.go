// Package graph provides a dependency graph for worker scheduling.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ShayCichocki/krishi/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the worker graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph represents a directed acyclic graph of worker dependencies.
// Workers are nodes, and edges represent "needs the result of" relationships.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes is the set of workers in the graph.
	nodes map[models.WorkerType]bool
	// edges maps a worker to the workers it depends on.
	edges map[models.WorkerType][]models.WorkerType
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:    make(map[models.WorkerType]bool),
		edges:    make(map[models.WorkerType][]models.WorkerType),
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the graph for the required workers.
// deps maps each worker to the workers whose results it consumes. Dependencies
// on workers outside the required set are dropped: they impose no ordering
// because nothing will produce them. Returns ErrCycleDetected on a cycle.
func (g *DependencyGraph) Build(required []models.WorkerType, deps map[models.WorkerType][]models.WorkerType) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d workers", len(required))

	for _, w := range required {
		if !w.Valid() {
			return fmt.Errorf("unknown worker type %q", w)
		}
		g.nodes[w] = true
		g.edges[w] = nil
	}

	for _, w := range required {
		for _, dep := range deps[w] {
			if dep == w {
				return fmt.Errorf("worker %s depends on itself: %w", w, ErrCycleDetected)
			}
			if !g.nodes[dep] {
				g.debugLog("[graph.Build] %s: dependency %s not required, ignoring", w, dep)
				continue
			}
			g.edges[w] = append(g.edges[w], dep)
		}
	}

	g.debugLog("[graph.Build] final edges map: %v", g.edges)

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}
	return nil
}

// hasCycleLocked uses depth-first search with coloring to detect back edges.
// Caller must hold g.mu.
func (g *DependencyGraph) hasCycleLocked() bool {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[models.WorkerType]int, len(g.nodes))

	var visit func(w models.WorkerType) bool
	visit = func(w models.WorkerType) bool {
		colors[w] = 1
		for _, dep := range g.edges[w] {
			switch colors[dep] {
			case 1:
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}
		colors[w] = 2
		return false
	}

	for _, w := range g.sortedNodesLocked() {
		if colors[w] == 0 && visit(w) {
			return true
		}
	}
	return false
}

// Batches layers the graph so that every worker in batch k depends only on
// workers in batches 0..k-1. Workers within a batch are in priority order.
func (g *DependencyGraph) Batches() ([][]models.WorkerType, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	placed := make(map[models.WorkerType]bool, len(g.nodes))
	var batches [][]models.WorkerType

	for len(placed) < len(g.nodes) {
		var batch []models.WorkerType
		for _, w := range g.sortedNodesLocked() {
			if placed[w] {
				continue
			}
			ready := true
			for _, dep := range g.edges[w] {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				batch = append(batch, w)
			}
		}
		if len(batch) == 0 {
			// Unreachable after the cycle check.
			return nil, ErrCycleDetected
		}
		// Mark after the scan so a batch never contains its own dependency.
		for _, w := range batch {
			placed[w] = true
		}
		g.debugLog("[graph.Batches] batch %d: %v", len(batches), batch)
		batches = append(batches, batch)
	}

	return batches, nil
}

// Size returns the number of workers in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// GetDependencies returns the workers the given worker depends on.
func (g *DependencyGraph) GetDependencies(w models.WorkerType) []models.WorkerType {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]models.WorkerType(nil), g.edges[w]...)
}

// GetDependents returns the workers that depend on the given worker.
func (g *DependencyGraph) GetDependents(w models.WorkerType) []models.WorkerType {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []models.WorkerType
	for _, id := range g.sortedNodesLocked() {
		for _, dep := range g.edges[id] {
			if dep == w {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

func (g *DependencyGraph) sortedNodesLocked() []models.WorkerType {
	out := make([]models.WorkerType, 0, len(g.nodes))
	for w := range g.nodes {
		out = append(out, w)
	}
	models.SortWorkers(out)
	return out
}
