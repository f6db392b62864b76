// Package poller resolves long-running operations to their terminal
// resource. Each poll loop has a master timeout and a bounded exponential
// backoff between ticks; an optional hook observes every polled operation.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fnforge/fnforge/internal/constants"
)

// Operation is the platform-neutral view of a long-running operation. The
// per-platform clients adapt their wire types onto it.
type Operation struct {
	Name     string
	Done     bool
	Error    *OperationError
	Metadata json.RawMessage
	Response json.RawMessage
}

// OperationError is the terminal error reported by an operation.
type OperationError struct {
	Code    int64
	Message string
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	return fmt.Sprintf("operation failed with code %d: %s", e.Code, e.Message)
}

// Getter fetches the current state of an operation by resource name.
type Getter interface {
	GetOperation(ctx context.Context, name string) (*Operation, error)
}

// Options controls one poll loop.
type Options struct {
	// Name is the operation resource name.
	Name string
	// PollerName labels log lines for this loop.
	PollerName string
	// MasterTimeout bounds the whole loop. Exceeding it fails only this
	// operation.
	MasterTimeout time.Duration
	// InitialBackoff is the first inter-poll delay; it doubles up to
	// MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// OnPoll, when set, observes every operation state fetched, including
	// the terminal one.
	OnPoll func(op *Operation)
}

// Poller drives poll loops against one operation Getter.
type Poller struct {
	getter Getter
	logger *slog.Logger
}

// New creates a Poller.
func New(getter Getter, logger *slog.Logger) *Poller {
	return &Poller{getter: getter, logger: logger}
}

// Poll fetches the operation until it reaches a terminal state, then returns
// its response resource. A terminal operation error, a non-transient fetch
// error, and the master timeout all fail the poll; transient fetch errors
// are absorbed into the next tick.
func (p *Poller) Poll(ctx context.Context, opts Options) (json.RawMessage, error) {
	if opts.MasterTimeout <= 0 {
		opts.MasterTimeout = constants.FunctionOperationTimeout
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = constants.FunctionPollInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = constants.FunctionPollMaxBackoff
	}

	ctx, cancel := context.WithTimeout(ctx, opts.MasterTimeout)
	defer cancel()

	logger := p.logger.With("poller", opts.PollerName, "operation", opts.Name)
	backoff := opts.InitialBackoff

	for {
		op, err := p.getter.GetOperation(ctx, opts.Name)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, fmt.Errorf("operation %s did not complete within %s: %w",
				opts.Name, opts.MasterTimeout, ctx.Err())
		case err != nil:
			// The executor has already retried transient fetch failures;
			// anything surfacing here is terminal for this operation.
			return nil, fmt.Errorf("poll operation %s: %w", opts.Name, err)
		}

		if opts.OnPoll != nil {
			opts.OnPoll(op)
		}

		if op.Done {
			if op.Error != nil {
				logger.Debug("operation finished with error", "code", op.Error.Code)
				return nil, op.Error
			}
			logger.Debug("operation finished")
			return op.Response, nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("operation %s did not complete within %s: %w",
				opts.Name, opts.MasterTimeout, ctx.Err())
		}
		backoff = min(backoff*2, opts.MaxBackoff)
	}
}
