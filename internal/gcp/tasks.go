package gcp

import (
	"context"
	"strings"

	"google.golang.org/api/cloudtasks/v2"

	"github.com/fnforge/fnforge/internal/constants"
)

// queueStateDisabled is the soft-delete state for a task queue. The queue and
// its tasks are retained, but dispatching stops.
const queueStateDisabled = "DISABLED"

// TasksClient manages the queues backing task-queue endpoints.
type TasksClient interface {
	// UpsertQueue creates the queue, or patches its tuning when it already
	// exists.
	UpsertQueue(ctx context.Context, queue *cloudtasks.Queue) error
	// DisableQueue soft-deletes the queue; dispatching stops but the queue
	// is retained.
	DisableQueue(ctx context.Context, name string) error
	// SetEnqueuer replaces the queue's enqueuer role bindings with the
	// given members.
	SetEnqueuer(ctx context.Context, name string, members []string) error
}

type defaultTasksClient struct {
	service *cloudtasks.Service
}

func (c *defaultTasksClient) UpsertQueue(ctx context.Context, queue *cloudtasks.Queue) error {
	parent := queueParent(queue.Name)

	_, err := c.service.Projects.Locations.Queues.Create(parent, queue).Context(ctx).Do()
	if isAlreadyExists(err) {
		_, err = c.service.Projects.Locations.Queues.Patch(queue.Name, queue).
			UpdateMask("rateLimits,retryConfig").
			Context(ctx).Do()
		return wrapError("patch task queue", err)
	}
	return wrapError("create task queue", err)
}

func (c *defaultTasksClient) DisableQueue(ctx context.Context, name string) error {
	queue := &cloudtasks.Queue{Name: name, State: queueStateDisabled}
	_, err := c.service.Projects.Locations.Queues.Patch(name, queue).
		UpdateMask("state").
		Context(ctx).Do()
	if isNotFound(err) {
		return nil
	}
	return wrapError("disable task queue", err)
}

func (c *defaultTasksClient) SetEnqueuer(ctx context.Context, name string, members []string) error {
	policy, err := c.service.Projects.Locations.Queues.GetIamPolicy(name, &cloudtasks.GetIamPolicyRequest{}).
		Context(ctx).Do()
	if err != nil {
		return wrapError("get task queue iam policy", err)
	}

	bindings := policy.Bindings[:0]
	for _, b := range policy.Bindings {
		if b.Role != constants.RoleTasksEnqueuer {
			bindings = append(bindings, b)
		}
	}
	if len(members) > 0 {
		bindings = append(bindings, &cloudtasks.Binding{
			Role:    constants.RoleTasksEnqueuer,
			Members: members,
		})
	}
	policy.Bindings = bindings

	_, err = c.service.Projects.Locations.Queues.SetIamPolicy(name, &cloudtasks.SetIamPolicyRequest{
		Policy: policy,
	}).Context(ctx).Do()
	return wrapError("set task queue iam policy", err)
}

// queueParent strips the trailing /queues/<id> from a queue resource name.
func queueParent(name string) string {
	if i := strings.Index(name, "/queues/"); i >= 0 {
		return name[:i]
	}
	return name
}
