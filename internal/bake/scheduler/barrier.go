package scheduler

import (
	"runtime"
	"sync/atomic"
)

// PassBarrier orders the passes of a multi-pass phase whose units are laid
// out pass-major: unit u belongs to pass u / unitsPerPass. A unit of pass p
// waits for every unit of pass p-1 before touching data they write.
type PassBarrier struct {
	unitsPerPass int64
	counts       []atomic.Int64
	done         []chan struct{}
}

// NewPassBarrier creates a barrier for passes passes of unitsPerPass units.
func NewPassBarrier(passes, unitsPerPass int) *PassBarrier {
	b := &PassBarrier{
		unitsPerPass: int64(unitsPerPass),
		counts:       make([]atomic.Int64, passes),
		done:         make([]chan struct{}, passes),
	}
	for i := range b.done {
		b.done[i] = make(chan struct{})
		if unitsPerPass == 0 {
			close(b.done[i])
		}
	}
	return b
}

// Done records that one unit of pass finished.
func (b *PassBarrier) Done(pass int) {
	if b.counts[pass].Add(1) == b.unitsPerPass {
		close(b.done[pass])
	}
}

// Complete reports whether every unit of pass has finished.
func (b *PassBarrier) Complete(pass int) bool {
	select {
	case <-b.done[pass]:
		return true
	default:
		return false
	}
}

// Wait blocks until pass is complete, running queued tasks on w while it
// waits. It returns false if the phase faulted first.
func (b *PassBarrier) Wait(w *Worker, pass int) bool {
	if pass < 0 {
		return true
	}
	for {
		select {
		case <-b.done[pass]:
			return true
		case <-w.Failed():
			return false
		default:
		}
		if task, ok := w.run.queue.Pop(); ok {
			w.execute(task)
			continue
		}
		runtime.Gosched()
	}
}
