package tasks

import (
	"context"
	"sync"
)

// Task is the observable handle of one dispatched operation. Done is
// closed when the operation finishes; Err is valid after that.
type Task struct {
	done   chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// Done returns a channel closed when the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task's outcome. It is nil while the task is running.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Cancel requests cooperative cancellation. The task observes it at its
// own checkpoints; Cancel never interrupts work mid-cell.
func (t *Task) Cancel() { t.cancel() }

// Wait blocks until the task finishes and returns its outcome.
func (t *Task) Wait() error {
	<-t.done
	return t.Err()
}

// Pool runs blocking work on a bounded set of goroutines so callers
// never block and disk/network fan-out stays limited.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewPool creates a pool allowing at most max concurrent tasks.
func NewPool(max int) *Pool {
	if max < 1 {
		max = 1
	}
	return &Pool{sem: make(chan struct{}, max)}
}

// Go dispatches fn onto the pool and returns its handle immediately.
// The context passed to fn is cancelled by Task.Cancel or when parent
// is cancelled.
func (p *Pool) Go(parent context.Context, fn func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{done: make(chan struct{}), cancel: cancel}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()

		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			t.mu.Lock()
			t.err = ctx.Err()
			t.mu.Unlock()
			close(t.done)
			return
		}
		defer func() { <-p.sem }()

		err := fn(ctx)
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(t.done)
	}()
	return t
}

// Wait blocks until every dispatched task has finished.
func (p *Pool) Wait() { p.wg.Wait() }
