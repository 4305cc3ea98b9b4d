package concurrent

import (
	"sync"
	"sync/atomic"
)

// TaskQueue is a FIFO of task indices shared by a fixed set of workers.
type TaskQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []int
	closed bool

	idleWorkers atomic.Int32
}

func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push adds one index. Pushing to a closed queue is a no-op.
func (q *TaskQueue) Push(i int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, i)
	q.cond.Signal()
}

func (q *TaskQueue) PushMultiple(items []int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, items...)
	q.cond.Broadcast()
}

// Pop blocks until an index is available. ok is false once the queue is
// closed and drained.
func (q *TaskQueue) Pop() (i int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.idleWorkers.Add(1)
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	q.idleWorkers.Add(-1)

	if len(q.items) == 0 {
		return 0, false
	}
	i = q.items[0]
	q.items = q.items[1:]
	return i, true
}

// Close wakes all waiting workers. Items already queued are still handed out.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IdleWorkers returns how many workers are blocked in Pop.
func (q *TaskQueue) IdleWorkers() int32 {
	return q.idleWorkers.Load()
}

// DrainRemaining removes and returns everything still queued.
func (q *TaskQueue) DrainRemaining() []int {
	q.mu.Lock()
	defer q.mu.Unlock()
	rest := q.items
	q.items = nil
	return rest
}
