// Package triggers wires and tears down the trigger resources surrounding a
// function endpoint. Each trigger kind has one strategy; both directions are
// symmetric. HTTPS, callable, and event kinds need no strategy because their
// invoker policy is handled inline during function deployment.
package triggers

import (
	"context"
	"log/slog"

	"github.com/fnforge/fnforge/internal/executor"
	"github.com/fnforge/fnforge/internal/gcp"
	"github.com/fnforge/fnforge/internal/plan"
)

// Strategy wires a trigger after its endpoint exists, and tears it down
// before the endpoint is deleted. Failures are returned as DeploymentErrors
// carrying the failed operation.
type Strategy interface {
	WireUp(ctx context.Context, ep *plan.Endpoint, isUpdate bool) error
	TearDown(ctx context.Context, ep *plan.Endpoint) error
}

// Queue serializes tasks project-wide. The blocking strategy submits every
// backend call through one so registrations execute strictly one at a time
// in submission order.
type Queue interface {
	Submit(ctx context.Context, fn func(ctx context.Context) error) error
}

// Registry selects the strategy for an endpoint's trigger kind and platform.
type Registry struct {
	scheduledV1 Strategy
	scheduledV2 Strategy
	taskQueue   Strategy
	blocking    Strategy
	noop        Strategy
}

// NewRegistry builds the strategies around the given clients. All fast
// control-plane calls go through exec; blocking-backend calls additionally
// pass through queue.
func NewRegistry(
	clients *gcp.Clients,
	exec executor.Executor,
	queue Queue,
	legacyLocation string,
	logger *slog.Logger,
) *Registry {
	return &Registry{
		scheduledV1: &scheduledV1Strategy{
			scheduler: clients.Scheduler,
			pubsub:    clients.PubSub,
			exec:      exec,
			location:  legacyLocation,
			logger:    logger,
		},
		scheduledV2: &scheduledV2Strategy{},
		taskQueue: &taskQueueStrategy{
			tasks:  clients.Tasks,
			exec:   exec,
			logger: logger,
		},
		blocking: &blockingStrategy{
			identity: clients.Identity,
			queue:    queue,
			logger:   logger,
		},
		noop: noopStrategy{},
	}
}

// For returns the strategy for an endpoint. The trigger kind set is closed;
// an unknown kind is a programming error.
func (r *Registry) For(ep *plan.Endpoint) Strategy {
	switch ep.Trigger.Kind {
	case plan.ScheduledTrigger:
		switch ep.Platform {
		case plan.PlatformGCFv1:
			return r.scheduledV1
		case plan.PlatformGCFv2:
			return r.scheduledV2
		default:
			panic("unknown platform " + string(ep.Platform))
		}
	case plan.TaskQueueTrigger:
		return r.taskQueue
	case plan.BlockingTrigger:
		return r.blocking
	case plan.HTTPSTrigger, plan.CallableTrigger, plan.EventTrigger:
		return r.noop
	default:
		panic("unknown trigger kind " + string(ep.Trigger.Kind))
	}
}

// noopStrategy covers the kinds whose wiring happens inline during function
// deployment.
type noopStrategy struct{}

func (noopStrategy) WireUp(context.Context, *plan.Endpoint, bool) error { return nil }
func (noopStrategy) TearDown(context.Context, *plan.Endpoint) error    { return nil }
