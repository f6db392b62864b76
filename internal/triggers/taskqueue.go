package triggers

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/cloudtasks/v2"

	apperrors "github.com/fnforge/fnforge/internal/errors"
	"github.com/fnforge/fnforge/internal/executor"
	"github.com/fnforge/fnforge/internal/gcp"
	"github.com/fnforge/fnforge/internal/plan"
)

// Queue tuning applied when the endpoint does not specify its own.
const (
	defaultMaxConcurrentDispatches = 1000
	defaultMaxDispatchesPerSecond  = 500
)

// taskQueueStrategy keeps the Cloud Tasks queue for a task-queue endpoint in
// step with its spec. Teardown disables the queue rather than deleting it so
// pending tasks are retained across reconciles.
type taskQueueStrategy struct {
	tasks  gcp.TasksClient
	exec   executor.Executor
	logger *slog.Logger
}

func (s *taskQueueStrategy) WireUp(ctx context.Context, ep *plan.Endpoint, _ bool) error {
	queue := taskQueue(ep)

	err := s.exec.Execute(ctx, func(ctx context.Context) error {
		return s.tasks.UpsertQueue(ctx, queue)
	})
	if err != nil {
		return apperrors.Deployment(ep.Name(), apperrors.OpUpsertQueue, err)
	}

	// No public default for enqueuers: the binding is written only when the
	// endpoint names its invokers.
	if members := gcp.InvokerMembers(ep.Invoker); len(members) > 0 {
		err := s.exec.Execute(ctx, func(ctx context.Context) error {
			return s.tasks.SetEnqueuer(ctx, queue.Name, members)
		})
		if err != nil {
			return apperrors.Deployment(ep.Name(), apperrors.OpSetEnqueuer, err)
		}
	}

	s.logger.Debug("task queue wired", "endpoint", ep.Name(), "queue", queue.Name)
	return nil
}

func (s *taskQueueStrategy) TearDown(ctx context.Context, ep *plan.Endpoint) error {
	err := s.exec.Execute(ctx, func(ctx context.Context) error {
		return s.tasks.DisableQueue(ctx, ep.QueueName())
	})
	return apperrors.Deployment(ep.Name(), apperrors.OpDisableQueue, err)
}

func taskQueue(ep *plan.Endpoint) *cloudtasks.Queue {
	queue := &cloudtasks.Queue{
		Name: ep.QueueName(),
		RateLimits: &cloudtasks.RateLimits{
			MaxConcurrentDispatches: defaultMaxConcurrentDispatches,
			MaxDispatchesPerSecond:  defaultMaxDispatchesPerSecond,
		},
	}

	spec := ep.Trigger.TaskQueue
	if spec == nil {
		return queue
	}
	if spec.MaxConcurrentDispatches > 0 {
		queue.RateLimits.MaxConcurrentDispatches = spec.MaxConcurrentDispatches
	}
	if spec.MaxDispatchesPerSecond > 0 {
		queue.RateLimits.MaxDispatchesPerSecond = spec.MaxDispatchesPerSecond
	}
	if spec.MaxAttempts > 0 || spec.MaxBackoffSeconds > 0 {
		queue.RetryConfig = &cloudtasks.RetryConfig{}
		if spec.MaxAttempts > 0 {
			queue.RetryConfig.MaxAttempts = spec.MaxAttempts
		}
		if spec.MaxBackoffSeconds > 0 {
			queue.RetryConfig.MaxBackoff = fmt.Sprintf("%ds", spec.MaxBackoffSeconds)
		}
	}
	return queue
}
