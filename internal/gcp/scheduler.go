package gcp

import (
	"context"
	"strings"

	"google.golang.org/api/cloudscheduler/v1"
)

// SchedulerClient manages the scheduler jobs driving scheduled endpoints.
type SchedulerClient interface {
	// UpsertJob creates the job, or patches it when it already exists.
	UpsertJob(ctx context.Context, job *cloudscheduler.Job) error
	// DeleteJob removes the job; a missing job is treated as success.
	DeleteJob(ctx context.Context, name string) error
}

type defaultSchedulerClient struct {
	service *cloudscheduler.Service
}

func (c *defaultSchedulerClient) UpsertJob(ctx context.Context, job *cloudscheduler.Job) error {
	parent := jobParent(job.Name)

	_, err := c.service.Projects.Locations.Jobs.Create(parent, job).Context(ctx).Do()
	if isAlreadyExists(err) {
		_, err = c.service.Projects.Locations.Jobs.Patch(job.Name, job).Context(ctx).Do()
		return wrapError("patch scheduler job", err)
	}
	return wrapError("create scheduler job", err)
}

func (c *defaultSchedulerClient) DeleteJob(ctx context.Context, name string) error {
	_, err := c.service.Projects.Locations.Jobs.Delete(name).Context(ctx).Do()
	if isNotFound(err) {
		return nil
	}
	return wrapError("delete scheduler job", err)
}

// jobParent strips the trailing /jobs/<id> from a job resource name.
func jobParent(name string) string {
	if i := strings.Index(name, "/jobs/"); i >= 0 {
		return name[:i]
	}
	return "projects/-/locations/-"
}
