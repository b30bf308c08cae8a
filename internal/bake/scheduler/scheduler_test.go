package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunProcessesEveryUnitOnce(t *testing.T) {
	for _, threads := range []int{1, 2, 8} {
		counts := make([]atomic.Int32, 100)
		err := NewPool(threads, nil).Run(context.Background(), Phase{
			Name:  "count",
			Units: len(counts),
			Work: func(_ *Worker, unit int) error {
				counts[unit].Add(1)
				return nil
			},
		})
		require.NoError(t, err)
		for i := range counts {
			assert.Equal(t, int32(1), counts[i].Load(), "threads=%d unit=%d", threads, i)
		}
	}
}

func TestRunZeroUnits(t *testing.T) {
	err := NewPool(4, nil).Run(context.Background(), Phase{Name: "empty", Work: func(*Worker, int) error {
		t.Fatal("no unit should run")
		return nil
	}})
	assert.NoError(t, err)
}

var errBroken = errors.New("broken unit")

func TestRunReportsFirstFault(t *testing.T) {
	err := NewPool(4, nil).Run(context.Background(), Phase{
		Name:  "faulty",
		Units: 50,
		Work: func(_ *Worker, unit int) error {
			if unit == 7 {
				return errBroken
			}
			return nil
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, errBroken)

	var fault *FaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "faulty", fault.Phase)
}

func TestRunRecoversPanics(t *testing.T) {
	err := NewPool(3, nil).Run(context.Background(), Phase{
		Name:  "panicky",
		Units: 10,
		Work: func(_ *Worker, unit int) error {
			if unit == 3 {
				panic("boom")
			}
			return nil
		},
	})
	require.ErrorIs(t, err, ErrAborted)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewPool(2, nil).Run(ctx, Phase{Name: "cancelled", Units: 1000, Work: func(*Worker, int) error { return nil }})
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGroupWaitsForTasks(t *testing.T) {
	for _, threads := range []int{1, 4} {
		var total atomic.Int64
		sums := make([]int64, 8)
		err := NewPool(threads, nil).Run(context.Background(), Phase{
			Name:  "tasks",
			Units: len(sums),
			Work: func(w *Worker, unit int) error {
				parts := make([]int64, 16)
				var g Group
				for i := range parts {
					w.Go(&g, func(*Worker) error {
						parts[i] = int64(i + unit)
						total.Add(1)
						return nil
					})
				}
				g.Wait(w)
				for _, v := range parts {
					sums[unit] += v
				}
				return nil
			},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(8*16), total.Load())
		for unit, sum := range sums {
			assert.Equal(t, int64(120+16*unit), sum, "threads=%d", threads)
		}
	}
}

func TestTaskFaultAbortsPhase(t *testing.T) {
	err := NewPool(2, nil).Run(context.Background(), Phase{
		Name:  "task-fault",
		Units: 2,
		Work: func(w *Worker, unit int) error {
			var g Group
			w.Go(&g, func(*Worker) error { return errBroken })
			g.Wait(w)
			return nil
		},
	})
	assert.ErrorIs(t, err, errBroken)
}

func TestPassBarrierOrdersPasses(t *testing.T) {
	const passes, perPass = 4, 6
	for _, threads := range []int{1, 3, 8} {
		b := NewPassBarrier(passes, perPass)
		finished := make([]atomic.Int32, passes)
		var violations atomic.Int32
		err := NewPool(threads, nil).Run(context.Background(), Phase{
			Name:  "passes",
			Units: passes * perPass,
			Work: func(w *Worker, unit int) error {
				pass := unit / perPass
				if !b.Wait(w, pass-1) {
					return nil
				}
				if pass > 0 && finished[pass-1].Load() != perPass {
					violations.Add(1)
				}
				finished[pass].Add(1)
				b.Done(pass)
				return nil
			},
		})
		require.NoError(t, err)
		assert.Zero(t, violations.Load(), "threads=%d", threads)
		for p := 0; p < passes; p++ {
			assert.True(t, b.Complete(p))
		}
	}
}

func TestQueueIsFIFO(t *testing.T) {
	q := NewQueue()
	a, b := &Task{}, &Task{}
	q.Push(a)
	q.Push(b)
	assert.Equal(t, 2, q.Len())
	got, ok := q.Pop()
	require.True(t, ok)
	assert.Same(t, a, got)
	got, _ = q.Pop()
	assert.Same(t, b, got)
	_, ok = q.Pop()
	assert.False(t, ok)
	assert.Zero(t, q.Len())
}
