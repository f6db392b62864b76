package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	cloudfunctions "google.golang.org/api/cloudfunctions/v1"

	"github.com/fnforge/fnforge/internal/constants"
	"github.com/fnforge/fnforge/internal/plan"
	"github.com/fnforge/fnforge/internal/poller"
)

// FunctionsV1Client mutates first-generation function resources. Mutations
// return the name of a long-running operation; GetOperation feeds the poller.
type FunctionsV1Client interface {
	CreateFunction(ctx context.Context, ep *plan.Endpoint, sourceURL, sourceToken string) (string, error)
	UpdateFunction(ctx context.Context, ep *plan.Endpoint, sourceURL, sourceToken string) (string, error)
	DeleteFunction(ctx context.Context, name string) (string, error)
	GetOperation(ctx context.Context, name string) (*poller.Operation, error)
	// SetInvoker replaces the function's invoker role bindings with the
	// given members. An empty slice removes public access.
	SetInvoker(ctx context.Context, name string, members []string) error
}

type defaultFunctionsV1Client struct {
	service *cloudfunctions.Service
}

func (c *defaultFunctionsV1Client) CreateFunction(
	ctx context.Context,
	ep *plan.Endpoint,
	sourceURL, sourceToken string,
) (string, error) {
	location := fmt.Sprintf("projects/%s/locations/%s", ep.Project, ep.Region)
	fn := v1Function(ep, sourceURL, sourceToken)

	op, err := c.service.Projects.Locations.Functions.Create(location, fn).Context(ctx).Do()
	if err != nil {
		return "", wrapError("create function", err)
	}
	return op.Name, nil
}

func (c *defaultFunctionsV1Client) UpdateFunction(
	ctx context.Context,
	ep *plan.Endpoint,
	sourceURL, sourceToken string,
) (string, error) {
	fn := v1Function(ep, sourceURL, sourceToken)

	op, err := c.service.Projects.Locations.Functions.Patch(fn.Name, fn).
		UpdateMask(strings.Join(v1UpdateFields(fn), ",")).
		Context(ctx).Do()
	if err != nil {
		return "", wrapError("update function", err)
	}
	return op.Name, nil
}

func (c *defaultFunctionsV1Client) DeleteFunction(ctx context.Context, name string) (string, error) {
	op, err := c.service.Projects.Locations.Functions.Delete(name).Context(ctx).Do()
	if err != nil {
		return "", wrapError("delete function", err)
	}
	return op.Name, nil
}

func (c *defaultFunctionsV1Client) GetOperation(ctx context.Context, name string) (*poller.Operation, error) {
	op, err := c.service.Operations.Get(name).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("get operation", err)
	}
	out := &poller.Operation{
		Name:     op.Name,
		Done:     op.Done,
		Metadata: json.RawMessage(op.Metadata),
		Response: json.RawMessage(op.Response),
	}
	if op.Error != nil {
		out.Error = &poller.OperationError{Code: op.Error.Code, Message: op.Error.Message}
	}
	return out, nil
}

func (c *defaultFunctionsV1Client) SetInvoker(ctx context.Context, name string, members []string) error {
	policy, err := c.service.Projects.Locations.Functions.GetIamPolicy(name).Context(ctx).Do()
	if err != nil {
		return wrapError("get function iam policy", err)
	}

	bindings := policy.Bindings[:0]
	for _, b := range policy.Bindings {
		if b.Role != constants.RoleCloudFunctionsInvoker {
			bindings = append(bindings, b)
		}
	}
	if len(members) > 0 {
		bindings = append(bindings, &cloudfunctions.Binding{
			Role:    constants.RoleCloudFunctionsInvoker,
			Members: members,
		})
	}
	policy.Bindings = bindings

	_, err = c.service.Projects.Locations.Functions.SetIamPolicy(name, &cloudfunctions.SetIamPolicyRequest{
		Policy: policy,
	}).Context(ctx).Do()
	return wrapError("set function iam policy", err)
}

// v1Function builds the wire descriptor for an endpoint.
func v1Function(ep *plan.Endpoint, sourceURL, sourceToken string) *cloudfunctions.CloudFunction {
	fn := &cloudfunctions.CloudFunction{
		Name:                 ep.FunctionName(),
		Runtime:              ep.Runtime,
		EntryPoint:           ep.EntryPoint,
		AvailableMemoryMb:    ep.MemoryMB,
		EnvironmentVariables: maps.Clone(ep.Environment),
		Labels:               maps.Clone(ep.Labels),
		SourceUploadUrl:      sourceURL,
		SourceToken:          sourceToken,
		ServiceAccountEmail:  ep.ServiceAccount,
	}
	if ep.TimeoutSeconds > 0 {
		fn.Timeout = fmt.Sprintf("%ds", ep.TimeoutSeconds)
	}

	switch ep.Trigger.Kind {
	case plan.EventTrigger:
		fn.EventTrigger = &cloudfunctions.EventTrigger{
			EventType: ep.Trigger.Event.EventType,
			Resource:  ep.Trigger.Event.Resource,
		}
		if ep.Trigger.Event.Retry {
			fn.EventTrigger.FailurePolicy = &cloudfunctions.FailurePolicy{
				Retry: &cloudfunctions.Retry{},
			}
		}
	case plan.ScheduledTrigger:
		fn.EventTrigger = &cloudfunctions.EventTrigger{
			EventType: "google.pubsub.topic.publish",
			Resource:  ep.TopicName(),
		}
	case plan.HTTPSTrigger, plan.CallableTrigger, plan.TaskQueueTrigger, plan.BlockingTrigger:
		fn.HttpsTrigger = &cloudfunctions.HttpsTrigger{}
	default:
		panic(fmt.Sprintf("unknown trigger kind %q", ep.Trigger.Kind))
	}
	return fn
}

// v1UpdateFields lists the field mask for a full update of the descriptor.
func v1UpdateFields(fn *cloudfunctions.CloudFunction) []string {
	fields := []string{
		"sourceUploadUrl", "runtime", "entryPoint", "availableMemoryMb",
		"environmentVariables", "labels", "serviceAccountEmail", "timeout",
	}
	if fn.EventTrigger != nil {
		fields = append(fields, "eventTrigger")
	} else {
		fields = append(fields, "httpsTrigger")
	}
	return fields
}

// V1FunctionURI extracts the server-assigned URL from a terminal operation
// response. Event-triggered functions have no URL; empty is fine.
func V1FunctionURI(response json.RawMessage) string {
	if len(response) == 0 {
		return ""
	}
	var fn cloudfunctions.CloudFunction
	if err := json.Unmarshal(response, &fn); err != nil {
		return ""
	}
	if fn.HttpsTrigger != nil {
		return fn.HttpsTrigger.Url
	}
	return ""
}
