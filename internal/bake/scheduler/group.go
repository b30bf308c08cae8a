package scheduler

import (
	"runtime"
	"sync/atomic"
)

// Group tracks tasks a unit spawned so it can wait for them.
type Group struct {
	pending atomic.Int64
}

// Go queues fn as a task of g. Any worker of the phase may run it.
func (w *Worker) Go(g *Group, fn func(w *Worker) error) {
	g.pending.Add(1)
	w.run.queue.Push(&Task{group: g, fn: fn})
}

// Wait blocks until every task of g has finished, running queued tasks on w
// in the meantime. It returns early if the phase faults.
func (g *Group) Wait(w *Worker) {
	for g.pending.Load() > 0 {
		if w.Aborted() {
			return
		}
		if task, ok := w.run.queue.Pop(); ok {
			w.execute(task)
			continue
		}
		runtime.Gosched()
	}
}

func (w *Worker) execute(t *Task) {
	defer t.group.pending.Add(-1)
	w.protect(func() error { return t.fn(w) })
}
