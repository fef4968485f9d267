package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"
)

// recentWindow is how many completed queries feed the processing average.
const recentWindow = 32

// AdmissionPool admits queries up to a concurrency limit and queues the
// rest in arrival order. Every mutation happens under one mutex, so enqueue
// and dequeue are atomic with respect to each other.
type AdmissionPool struct {
	mu          sync.Mutex
	maxInFlight int
	maxQueue    int
	inFlight    int
	queue       []*admissionTicket

	// recent is a ring of the latest processing times.
	recent   [recentWindow]time.Duration
	recentN  int
	recentAt int
	seedAvg  time.Duration
}

type admissionTicket struct {
	ready chan struct{}
	// granted is set under the pool mutex when the ticket gets a slot.
	granted bool
}

// NewAdmissionPool creates a pool. maxQueue of zero means unbounded.
// seedAvg is the processing time assumed before any query completes.
func NewAdmissionPool(maxInFlight, maxQueue int, seedAvg time.Duration) *AdmissionPool {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &AdmissionPool{
		maxInFlight: maxInFlight,
		maxQueue:    maxQueue,
		seedAvg:     seedAvg,
	}
}

// Admission is a granted or pending slot.
type Admission struct {
	pool   *AdmissionPool
	ticket *admissionTicket
	// Queued is set when the query had to wait.
	Queued bool
	// Position is the 1-based queue position at admission time.
	Position int
	// EstimatedWait is the wait estimate at admission time.
	EstimatedWait time.Duration
	started       time.Time
}

// Reserve takes a slot if one is free, otherwise joins the queue. It never
// blocks. When the queue is full it returns ErrQueueFull along with the
// wait estimate.
func (p *AdmissionPool) Reserve() (*Admission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := &admissionTicket{ready: make(chan struct{})}
	a := &Admission{pool: p, ticket: t}

	if p.inFlight < p.maxInFlight && len(p.queue) == 0 {
		p.inFlight++
		t.granted = true
		close(t.ready)
		return a, nil
	}

	a.EstimatedWait = p.estimateLocked()
	if p.maxQueue > 0 && len(p.queue) >= p.maxQueue {
		return a, ErrQueueFull
	}
	p.queue = append(p.queue, t)
	a.Queued = true
	a.Position = len(p.queue)
	return a, nil
}

// Wait blocks until the admission holds a slot. If ctx ends first the
// admission leaves the queue.
func (a *Admission) Wait(ctx context.Context) error {
	select {
	case <-a.ticket.ready:
		a.started = time.Now()
		return nil
	case <-ctx.Done():
	}

	p := a.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	if a.ticket.granted {
		// Granted while we were giving up: pass the slot on.
		p.releaseLocked()
		return ctx.Err()
	}
	for i, t := range p.queue {
		if t == a.ticket {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			break
		}
	}
	return ctx.Err()
}

// Release frees the slot and records the processing time.
func (a *Admission) Release() {
	p := a.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	if !a.started.IsZero() {
		p.recordLocked(time.Since(a.started))
	}
	p.releaseLocked()
}

// releaseLocked hands the slot to the head of the queue or frees it.
func (p *AdmissionPool) releaseLocked() {
	if len(p.queue) > 0 {
		next := p.queue[0]
		p.queue = p.queue[1:]
		next.granted = true
		close(next.ready)
		return
	}
	if p.inFlight > 0 {
		p.inFlight--
	} else {
		log.Printf("[pool] WARNING: release without a held slot")
	}
}

func (p *AdmissionPool) recordLocked(d time.Duration) {
	p.recent[p.recentAt] = d
	p.recentAt = (p.recentAt + 1) % recentWindow
	if p.recentN < recentWindow {
		p.recentN++
	}
}

// EstimateWait returns ceil(depth / maxInFlight) times the recent average
// processing time.
func (p *AdmissionPool) EstimateWait() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.estimateLocked()
}

func (p *AdmissionPool) estimateLocked() time.Duration {
	depth := len(p.queue)
	if depth == 0 && p.inFlight < p.maxInFlight {
		return 0
	}
	rounds := (depth + p.maxInFlight - 1) / p.maxInFlight
	if rounds == 0 {
		rounds = 1
	}
	return time.Duration(rounds) * p.averageLocked()
}

// AverageProcessing returns the recent average processing time.
func (p *AdmissionPool) AverageProcessing() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.averageLocked()
}

func (p *AdmissionPool) averageLocked() time.Duration {
	if p.recentN == 0 {
		return p.seedAvg
	}
	var sum time.Duration
	for i := 0; i < p.recentN; i++ {
		sum += p.recent[i]
	}
	return sum / time.Duration(p.recentN)
}

// Depth returns the number of waiting queries.
func (p *AdmissionPool) Depth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// InFlight returns the number of admitted queries.
func (p *AdmissionPool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}
