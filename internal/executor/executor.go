// Package executor provides a bounded-concurrency task runner with retry on
// transient failures. Each instance owns one named quota domain; the engine
// runs fast control-plane calls and slow function mutations through separate
// instances so long builds never starve IAM, queue, and schedule traffic.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/fnforge/fnforge/internal/constants"
)

// Executor runs a task, applying the domain's concurrency bound and retry
// policy. Implementations must return the task's final error unchanged.
type Executor interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

// QueueExecutor is the production Executor: a channel semaphore bounds
// in-flight tasks and transient failures are retried with jittered
// exponential backoff.
type QueueExecutor struct {
	name           string
	slots          chan struct{}
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// NewQueueExecutor creates an executor for the named quota domain with the
// given concurrency bound and the default retry policy.
func NewQueueExecutor(name string, concurrency int, logger *slog.Logger) *QueueExecutor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &QueueExecutor{
		name:           name,
		slots:          make(chan struct{}, concurrency),
		maxAttempts:    constants.ExecutorMaxAttempts,
		initialBackoff: constants.ExecutorInitialBackoff,
		maxBackoff:     constants.ExecutorMaxBackoff,
		logger:         logger.With("executor", name),
	}
}

// Execute acquires a slot, then runs fn until it succeeds, fails terminally,
// or the retry budget is spent. The slot is held across retries so a
// misbehaving backend cannot be hammered at full width.
func (e *QueueExecutor) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case e.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.slots }()

	backoff := e.initialBackoff
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= e.maxAttempts || !retryable(err) {
			return err
		}

		e.logger.Debug("retrying task after transient failure",
			"attempt", attempt, "backoff", backoff, "error", err.Error())

		if err := sleep(ctx, withJitter(backoff)); err != nil {
			return err
		}
		backoff = min(backoff*2, e.maxBackoff)
	}
}

// retryable reports whether an error is worth another attempt: API quota
// pushback, server-side 5xx, or a network timeout. Context cancellation is
// always terminal.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func withJitter(d time.Duration) time.Duration {
	// Up to 25% extra, so synchronized retries fan out.
	return d + time.Duration(rand.Int64N(int64(d)/4+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
