// Package scheduler runs the bake's parallel phases.
//
// A phase is a fixed number of coarse work units (usually mapping indices).
// The pool's workers and the calling goroutine claim units from a shared
// atomic counter. Units may split themselves into fine-grained tasks that go
// through a shared queue, and a unit waiting on its tasks helps drain the
// queue instead of idling. The caller also watches worker health: the first
// fault aborts the whole phase.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrAborted is returned when a phase stops because a worker faulted or the
// context was cancelled.
var ErrAborted = errors.New("bake aborted")

// FaultError records the first failure of a phase.
type FaultError struct {
	Phase  string
	Worker int
	Err    error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("phase %s: worker %d: %v", e.Phase, e.Worker, e.Err)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}

// Phase describes one parallel step of the bake.
type Phase struct {
	Name  string
	Units int
	// Work processes one unit. A returned error or a panic faults the phase.
	Work func(w *Worker, unit int) error
}

// Pool is a fixed set of workers. The goroutine calling Run is one of them.
type Pool struct {
	threads int
	log     *zap.Logger
}

// NewPool creates a pool running threads workers in total. Zero or a negative
// count uses GOMAXPROCS.
func NewPool(threads int, log *zap.Logger) *Pool {
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{threads: threads, log: log}
}

// Threads returns the number of workers including the caller.
func (p *Pool) Threads() int {
	return p.threads
}

// run is the shared state of one phase execution.
type run struct {
	phase    Phase
	next     atomic.Int64
	inFlight atomic.Int64
	queue    *Queue
	aborted  atomic.Bool
	failed   chan struct{}

	faultOnce sync.Once
	fault     *FaultError
}

func (r *run) fail(worker int, err error) {
	r.faultOnce.Do(func() {
		r.fault = &FaultError{Phase: r.phase.Name, Worker: worker, Err: err}
		r.aborted.Store(true)
		close(r.failed)
	})
}

// Worker is the handle a unit of work runs on.
type Worker struct {
	ID  int
	run *run
}

// Failed is closed once the phase has faulted. Long waits select on it.
func (w *Worker) Failed() <-chan struct{} {
	return w.run.failed
}

// Aborted reports whether the phase has faulted.
func (w *Worker) Aborted() bool {
	return w.run.aborted.Load()
}

// Run executes the phase on every worker and blocks until all units and
// tasks are finished. The first fault, or cancellation of ctx, aborts the
// phase and is returned wrapped in ErrAborted.
func (p *Pool) Run(ctx context.Context, phase Phase) error {
	start := time.Now()
	r := &run{phase: phase, queue: NewQueue(), failed: make(chan struct{})}

	var wg sync.WaitGroup
	for id := 1; id < p.threads; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(&Worker{ID: id, run: r}, nil)
		}(id)
	}

	main := &Worker{ID: 0, run: r}
	p.loop(main, func() {
		if r.aborted.Load() {
			return
		}
		if err := ctx.Err(); err != nil {
			r.fail(main.ID, err)
		}
	})
	wg.Wait()

	if r.fault != nil {
		p.log.Error("phase aborted",
			zap.String("phase", phase.Name),
			zap.Int("worker", r.fault.Worker),
			zap.Error(r.fault.Err))
		return fmt.Errorf("%w: %w", ErrAborted, r.fault)
	}
	p.log.Debug("phase complete",
		zap.String("phase", phase.Name),
		zap.Int("units", phase.Units),
		zap.Int("threads", p.threads),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// loop claims tasks and units until the phase is drained or aborted. The
// main worker passes a health check that runs between items.
func (p *Pool) loop(w *Worker, health func()) {
	r := w.run
	for {
		if health != nil {
			health()
		}
		if r.aborted.Load() {
			return
		}
		if task, ok := r.queue.Pop(); ok {
			w.execute(task)
			continue
		}
		// The claim is counted before it is made: a starting unit is in flight.
		r.inFlight.Add(1)
		if unit := int(r.next.Add(1) - 1); unit < r.phase.Units {
			w.protect(func() error { return r.phase.Work(w, unit) })
			r.inFlight.Add(-1)
			continue
		}
		if r.inFlight.Add(-1) == 0 && r.queue.Len() == 0 {
			return
		}
		// Another unit may still submit tasks.
		runtime.Gosched()
	}
}

// protect runs fn and converts a returned error or a panic into a fault.
func (w *Worker) protect(fn func() error) {
	defer func() {
		if v := recover(); v != nil {
			w.run.fail(w.ID, fmt.Errorf("panic: %v", v))
		}
	}()
	if err := fn(); err != nil {
		w.run.fail(w.ID, err)
	}
}
