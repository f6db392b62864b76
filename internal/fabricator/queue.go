package fabricator

import "context"

// serialQueue executes submitted tasks strictly one at a time in submission
// order. One instance serves all blocking-trigger registrations, because the
// identity backend forbids concurrent config writes project-wide. Each
// submitter waits only for its own task.
type serialQueue struct {
	tasks chan queuedTask
	stop  chan struct{}
}

type queuedTask struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

func newSerialQueue() *serialQueue {
	q := &serialQueue{
		tasks: make(chan queuedTask),
		stop:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *serialQueue) run() {
	for {
		select {
		case t := <-q.tasks:
			t.done <- t.fn(t.ctx)
		case <-q.stop:
			return
		}
	}
}

// Submit enqueues fn and waits for its completion. A canceled ctx abandons
// the wait; the task itself still observes the same ctx and is expected to
// bail out on its own.
func (q *serialQueue) Submit(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	select {
	case q.tasks <- queuedTask{ctx: ctx, fn: fn, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops the worker once the current task finishes. Only call after all
// submitters are done.
func (q *serialQueue) close() {
	close(q.stop)
}
