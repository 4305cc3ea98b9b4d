// Package concurrent runs independent download tasks in parallel, either one
// goroutine per task or through a bounded worker pool.
package concurrent

import "sync"

// Scheduler dispatches task indices to goroutines.
type Scheduler struct {
	// Workers bounds parallelism. Zero or negative means one goroutine per task.
	Workers int
}

// Run calls fn(i) exactly once for every i in [0, n) and returns when all
// calls have finished. fn must only touch state owned by index i.
func (s Scheduler) Run(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if s.Workers <= 0 || s.Workers >= n {
		s.runUnbounded(n, fn)
		return
	}
	s.runPool(n, fn)
}

func (s Scheduler) runUnbounded(n int, fn func(i int)) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fn(i)
		}(i)
	}
	wg.Wait()
}

func (s Scheduler) runPool(n int, fn func(i int)) {
	queue := NewTaskQueue()
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	queue.PushMultiple(indices)
	queue.Close()

	var wg sync.WaitGroup
	for w := 0; w < s.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i, ok := queue.Pop()
				if !ok {
					return
				}
				fn(i)
			}
		}()
	}
	wg.Wait()
}
