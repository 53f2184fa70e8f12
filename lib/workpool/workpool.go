// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

// Package workpool provides a bounded task queue drained by a fixed set
// of worker goroutines. The server uses it as its admission valve: one
// task per accepted connection, so total handler concurrency and queue
// memory stay bounded no matter how many clients connect.
package workpool

import (
	"errors"
	"sync"
)

// ErrShutdown is returned by Submit after Shutdown has been called.
var ErrShutdown = errors.New("workpool: pool is shut down")

// Pool is a fixed-size worker pool with a bounded queue. Submit blocks
// while the queue is full — backpressure, never drops. Tasks run to
// completion; there is no mid-flight cancellation.
type Pool struct {
	tasks chan func()
	quit  chan struct{}

	workers  sync.WaitGroup
	shutdown sync.Once
}

// New creates a pool with the given number of workers and queue
// capacity, and starts the workers. Panics if either is not positive.
func New(workers, queueDepth int) *Pool {
	if workers <= 0 {
		panic("workpool: workers must be positive")
	}
	if queueDepth <= 0 {
		panic("workpool: queueDepth must be positive")
	}

	pool := &Pool{
		tasks: make(chan func(), queueDepth),
		quit:  make(chan struct{}),
	}
	pool.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.work()
	}
	return pool
}

// Submit enqueues a task, blocking while the queue is full. Returns
// ErrShutdown once the pool is shut down; the task is not run.
func (p *Pool) Submit(task func()) error {
	// Check quit first so a Submit racing Shutdown with a free queue
	// slot does not enqueue work no worker will ever run.
	select {
	case <-p.quit:
		return ErrShutdown
	default:
	}
	select {
	case p.tasks <- task:
		return nil
	case <-p.quit:
		return ErrShutdown
	}
}

// Shutdown stops the workers after their current task and discards any
// queued tasks. Blocks until all workers have exited. Safe to call
// more than once.
func (p *Pool) Shutdown() {
	p.shutdown.Do(func() {
		close(p.quit)
	})
	p.workers.Wait()
}

// work is one worker's loop: block on the queue, run one task to
// completion, repeat until shutdown.
func (p *Pool) work() {
	defer p.workers.Done()
	for {
		select {
		case <-p.quit:
			return
		case task := <-p.tasks:
			task()
		}
	}
}
