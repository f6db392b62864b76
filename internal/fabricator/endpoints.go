package fabricator

import (
	"context"
	"fmt"

	"google.golang.org/api/run/v2"

	"github.com/fnforge/fnforge/internal/constants"
	apperrors "github.com/fnforge/fnforge/internal/errors"
	"github.com/fnforge/fnforge/internal/gcp"
	"github.com/fnforge/fnforge/internal/plan"
	"github.com/fnforge/fnforge/internal/poller"
	"github.com/fnforge/fnforge/internal/scraper"
)

// createEndpoint deploys a new endpoint: labels, topic for scheduled kinds,
// the platform-specific function create, then trigger wiring.
func (f *Fabricator) createEndpoint(ctx context.Context, ep *plan.Endpoint, scr *scraper.SourceTokenScraper) error {
	mergeLabels(ep)

	if ep.Trigger.Kind == plan.ScheduledTrigger {
		if err := f.createScheduleTopic(ctx, ep); err != nil {
			return err
		}
	}

	switch ep.Platform {
	case plan.PlatformGCFv1:
		if err := f.upsertV1(ctx, ep, scr, false); err != nil {
			return err
		}
	case plan.PlatformGCFv2:
		if err := f.upsertV2(ctx, ep, false); err != nil {
			return err
		}
	default:
		panic("unknown platform " + string(ep.Platform))
	}

	return f.registry.For(ep).WireUp(ctx, ep, false)
}

// updateEndpoint modifies an existing endpoint. When an immutable field
// changed the old resource is deleted and the new one created in its place;
// the two steps are not atomic and a crash in between leaves the endpoint
// absent until the next reconcile.
func (f *Fabricator) updateEndpoint(ctx context.Context, up *plan.EndpointUpdate, scr *scraper.SourceTokenScraper) error {
	if up.DeleteAndRecreate != nil {
		if err := f.deleteEndpoint(ctx, up.DeleteAndRecreate); err != nil {
			return err
		}
		return f.createEndpoint(ctx, up.Endpoint, scr)
	}

	ep := up.Endpoint
	mergeLabels(ep)

	if ep.Trigger.Kind == plan.ScheduledTrigger {
		// Upserting the topic keeps updates self-healing when a previous
		// teardown got halfway.
		if err := f.createScheduleTopic(ctx, ep); err != nil {
			return err
		}
	}

	switch ep.Platform {
	case plan.PlatformGCFv1:
		if err := f.upsertV1(ctx, ep, scr, true); err != nil {
			return err
		}
	case plan.PlatformGCFv2:
		if err := f.upsertV2(ctx, ep, true); err != nil {
			return err
		}
	default:
		panic("unknown platform " + string(ep.Platform))
	}

	return f.registry.For(ep).WireUp(ctx, ep, true)
}

// deleteEndpoint tears down triggers first, symmetric to wiring, then
// deletes the function resource itself.
func (f *Fabricator) deleteEndpoint(ctx context.Context, ep *plan.Endpoint) error {
	if err := f.registry.For(ep).TearDown(ctx, ep); err != nil {
		return err
	}

	var opName string
	err := f.fnExec.Execute(ctx, func(ctx context.Context) error {
		var err error
		switch ep.Platform {
		case plan.PlatformGCFv1:
			opName, err = f.clients.FunctionsV1.DeleteFunction(ctx, ep.FunctionName())
		case plan.PlatformGCFv2:
			opName, err = f.clients.FunctionsV2.DeleteFunction(ctx, ep.FunctionName())
		default:
			panic("unknown platform " + string(ep.Platform))
		}
		return err
	})
	if err != nil {
		return apperrors.Deployment(ep.Name(), apperrors.OpDeleteFunction, err)
	}

	p := f.v1Poller
	if ep.Platform == plan.PlatformGCFv2 {
		p = f.v2Poller
	}
	_, err = p.Poll(ctx, poller.Options{
		Name:       opName,
		PollerName: "delete " + ep.Name(),
	})
	return apperrors.Deployment(ep.Name(), apperrors.OpDeleteFunction, err)
}

// upsertV1 submits a gen1 create or update and polls it to completion,
// feeding the changeset's token scraper along the way.
func (f *Fabricator) upsertV1(ctx context.Context, ep *plan.Endpoint, scr *scraper.SourceTokenScraper, isUpdate bool) error {
	op := apperrors.OpCreateFunction
	if isUpdate {
		op = apperrors.OpUpdateFunction
	}

	token, err := scr.Token(ctx)
	if err != nil {
		return apperrors.Deployment(ep.Name(), op, err)
	}

	resolved := false
	defer func() {
		// A build that dies before reporting a token must not strand the
		// changeset's waiting siblings.
		if !resolved {
			scr.Abandon()
		}
	}()

	var opName string
	err = f.fnExec.Execute(ctx, func(ctx context.Context) error {
		var err error
		if isUpdate {
			opName, err = f.clients.FunctionsV1.UpdateFunction(ctx, ep, f.v1SourceURL, token)
		} else {
			opName, err = f.clients.FunctionsV1.CreateFunction(ctx, ep, f.v1SourceURL, token)
		}
		return err
	})
	if err != nil {
		return apperrors.Deployment(ep.Name(), op, err)
	}

	resp, err := f.v1Poller.Poll(ctx, poller.Options{
		Name:       opName,
		PollerName: string(op) + " " + ep.Name(),
		OnPoll:     scr.OnPoll,
	})
	if err != nil {
		return apperrors.Deployment(ep.Name(), op, err)
	}
	// A completed operation always passed through OnPoll with Done set, so
	// the scraper is resolved by now.
	resolved = true

	ep.URI = gcp.V1FunctionURI(resp)
	return f.setInvokerV1(ctx, ep, isUpdate)
}

// upsertV2 submits a gen2 create or update, polls it, then reconciles the
// backing service's concurrency and invoker policy.
func (f *Fabricator) upsertV2(ctx context.Context, ep *plan.Endpoint, isUpdate bool) error {
	op := apperrors.OpCreateFunction
	if isUpdate {
		op = apperrors.OpUpdateFunction
	}

	src, ok := f.v2Sources[ep.Region]
	if !ok {
		// CheckPlan guards this; reaching here means the caller skipped it.
		return apperrors.Deployment(ep.Name(), op,
			apperrors.Precondition(fmt.Sprintf("no gen2 source configured for region %s", ep.Region), nil))
	}

	var opName string
	err := f.fnExec.Execute(ctx, func(ctx context.Context) error {
		var err error
		if isUpdate {
			opName, err = f.clients.FunctionsV2.UpdateFunction(ctx, ep, src)
		} else {
			opName, err = f.clients.FunctionsV2.CreateFunction(ctx, ep, src)
		}
		return err
	})
	if err != nil {
		return apperrors.Deployment(ep.Name(), op, err)
	}

	resp, err := f.v2Poller.Poll(ctx, poller.Options{
		Name:       opName,
		PollerName: string(op) + " " + ep.Name(),
	})
	if err != nil {
		return apperrors.Deployment(ep.Name(), op, err)
	}

	uri, _ := gcp.V2FunctionState(resp)
	ep.URI = uri

	if target, ok := concurrencyTarget(ep); ok {
		if err := f.setConcurrency(ctx, ep, target); err != nil {
			return err
		}
	}
	return f.setInvokerV2(ctx, ep, isUpdate)
}

// createScheduleTopic creates the pubsub topic a scheduled endpoint's
// function subscribes to. Already-existing topics are fine.
func (f *Fabricator) createScheduleTopic(ctx context.Context, ep *plan.Endpoint) error {
	err := f.queueExec.Execute(ctx, func(ctx context.Context) error {
		return f.clients.PubSub.CreateTopic(ctx, ep.TopicName(), map[string]string{
			constants.DeploymentToolLabel: constants.DeploymentToolValue,
		})
	})
	return apperrors.Deployment(ep.Name(), apperrors.OpCreateTopic, err)
}

// invokerMembers decides the IAM members for an endpoint per its trigger
// kind, and whether a policy write should happen at all.
func invokerMembers(ep *plan.Endpoint, isUpdate bool) ([]string, bool) {
	switch ep.Trigger.Kind {
	case plan.HTTPSTrigger:
		if len(ep.Invoker) == 0 {
			if isUpdate {
				// Leave whatever the live policy says; only creates get the
				// public default.
				return nil, false
			}
			return []string{constants.MemberAllUsers}, true
		}
		return gcp.InvokerMembers(ep.Invoker), true
	case plan.CallableTrigger, plan.BlockingTrigger:
		return []string{constants.MemberAllUsers}, true
	case plan.TaskQueueTrigger:
		if members := gcp.InvokerMembers(ep.Invoker); len(members) > 0 {
			return members, true
		}
		return nil, false
	case plan.ScheduledTrigger, plan.EventTrigger:
		return nil, false
	default:
		panic("unknown trigger kind " + string(ep.Trigger.Kind))
	}
}

func (f *Fabricator) setInvokerV1(ctx context.Context, ep *plan.Endpoint, isUpdate bool) error {
	members, set := invokerMembers(ep, isUpdate)
	if !set {
		return nil
	}
	err := f.queueExec.Execute(ctx, func(ctx context.Context) error {
		return f.clients.FunctionsV1.SetInvoker(ctx, ep.FunctionName(), members)
	})
	return apperrors.Deployment(ep.Name(), apperrors.OpSetInvoker, err)
}

func (f *Fabricator) setInvokerV2(ctx context.Context, ep *plan.Endpoint, isUpdate bool) error {
	members, set := invokerMembers(ep, isUpdate)
	if !set {
		return nil
	}
	err := f.queueExec.Execute(ctx, func(ctx context.Context) error {
		return f.clients.Run.SetInvoker(ctx, ep.ServiceName(), members)
	})
	return apperrors.Deployment(ep.Name(), apperrors.OpSetInvoker, err)
}

// concurrencyTarget decides the per-instance request concurrency for a gen2
// endpoint. Instances below the memory floor always serve one request at a
// time; above it the requested value applies, defaulting to 80 unless the
// caller explicitly asked for 1.
func concurrencyTarget(ep *plan.Endpoint) (int64, bool) {
	memory := ep.MemoryMB
	if memory <= 0 {
		memory = constants.DefaultMemoryMB
	}
	if memory < constants.MinMemoryForConcurrencyMB {
		return 0, false
	}
	if ep.Concurrency == 1 {
		return 1, true
	}
	if ep.Concurrency > 1 {
		return ep.Concurrency, true
	}
	return constants.DefaultConcurrency, true
}

// setConcurrency reconciles the backing service revision's concurrency.
// A live value already on target is left untouched; otherwise the service
// spec is replaced after clearing server-generated fields.
func (f *Fabricator) setConcurrency(ctx context.Context, ep *plan.Endpoint, target int64) error {
	err := f.fnExec.Execute(ctx, func(ctx context.Context) error {
		svc, err := f.clients.Run.GetService(ctx, ep.ServiceName())
		if err != nil {
			return err
		}
		if svc.Template == nil {
			svc.Template = &run.GoogleCloudRunV2RevisionTemplate{}
		}
		if svc.Template.MaxInstanceRequestConcurrency == target {
			return nil
		}

		clearServerFields(svc)
		svc.Template.MaxInstanceRequestConcurrency = target
		return f.clients.Run.UpdateService(ctx, svc)
	})
	return apperrors.Deployment(ep.Name(), apperrors.OpSetConcurrency, err)
}

// clearServerFields strips output-only state so the descriptor is accepted
// as a replacement spec.
func clearServerFields(svc *run.GoogleCloudRunV2Service) {
	svc.Etag = ""
	svc.Generation = 0
	svc.ObservedGeneration = 0
	svc.LatestCreatedRevision = ""
	svc.LatestReadyRevision = ""
	svc.CreateTime = ""
	svc.UpdateTime = ""
	svc.Conditions = nil
	svc.TerminalCondition = nil
	if svc.Template != nil {
		svc.Template.Revision = ""
	}
}

// mergeLabels stamps the deployment-tool label onto the endpoint in place,
// so the caller's view of the endpoint matches what was deployed.
func mergeLabels(ep *plan.Endpoint) {
	if ep.Labels == nil {
		ep.Labels = make(map[string]string)
	}
	ep.Labels[constants.DeploymentToolLabel] = constants.DeploymentToolValue
}
