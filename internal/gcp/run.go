package gcp

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/run/v2"

	"github.com/fnforge/fnforge/internal/constants"
)

// runOperationPollInterval paces waits on Cloud Run service mutations, which
// settle in seconds rather than minutes.
const runOperationPollInterval = 2 * time.Second

// RunClient reads and replaces the Cloud Run services backing gen2
// functions, and manages their invoker policy.
type RunClient interface {
	GetService(ctx context.Context, name string) (*run.GoogleCloudRunV2Service, error)
	// UpdateService replaces the service template and waits for the
	// resulting revision to roll out.
	UpdateService(ctx context.Context, svc *run.GoogleCloudRunV2Service) error
	// SetInvoker replaces the service's run invoker bindings with the given
	// members. An empty slice removes public access.
	SetInvoker(ctx context.Context, name string, members []string) error
}

type defaultRunClient struct {
	service *run.Service
}

func (c *defaultRunClient) GetService(ctx context.Context, name string) (*run.GoogleCloudRunV2Service, error) {
	svc, err := c.service.Projects.Locations.Services.Get(name).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("get run service", err)
	}
	return svc, nil
}

func (c *defaultRunClient) UpdateService(ctx context.Context, svc *run.GoogleCloudRunV2Service) error {
	op, err := c.service.Projects.Locations.Services.Patch(svc.Name, svc).
		UpdateMask("template").
		Context(ctx).Do()
	if err != nil {
		return wrapError("update run service", err)
	}
	return c.waitForOperation(ctx, op.Name)
}

func (c *defaultRunClient) SetInvoker(ctx context.Context, name string, members []string) error {
	policy, err := c.service.Projects.Locations.Services.GetIamPolicy(name).Context(ctx).Do()
	if err != nil {
		return wrapError("get run service iam policy", err)
	}

	bindings := policy.Bindings[:0]
	for _, b := range policy.Bindings {
		if b.Role != constants.RoleRunInvoker {
			bindings = append(bindings, b)
		}
	}
	if len(members) > 0 {
		bindings = append(bindings, &run.GoogleIamV1Binding{
			Role:    constants.RoleRunInvoker,
			Members: members,
		})
	}
	policy.Bindings = bindings

	_, err = c.service.Projects.Locations.Services.SetIamPolicy(name, &run.GoogleIamV1SetIamPolicyRequest{
		Policy: policy,
	}).Context(ctx).Do()
	return wrapError("set run service iam policy", err)
}

func (c *defaultRunClient) waitForOperation(ctx context.Context, name string) error {
	for {
		op, err := c.service.Projects.Locations.Operations.Get(name).Context(ctx).Do()
		if err != nil {
			return wrapError("poll run operation", err)
		}
		if op.Done {
			if op.Error != nil {
				return fmt.Errorf("run operation failed: %s", op.Error.Message)
			}
			return nil
		}

		select {
		case <-time.After(runOperationPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
