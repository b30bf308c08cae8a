package scheduler

import "sync"

// Task is a fine-grained piece of a unit's work.
type Task struct {
	group *Group
	fn    func(w *Worker) error
}

// Queue is an unbounded multi-producer multi-consumer FIFO of tasks.
type Queue struct {
	mu    sync.Mutex
	items []*Task
	head  int
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends a task.
func (q *Queue) Push(t *Task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
}

// Pop removes the oldest task.
func (q *Queue) Pop() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.items) {
		return nil, false
	}
	t := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return t, true
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
