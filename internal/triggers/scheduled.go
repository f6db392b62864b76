package triggers

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/cloudscheduler/v1"

	apperrors "github.com/fnforge/fnforge/internal/errors"
	"github.com/fnforge/fnforge/internal/executor"
	"github.com/fnforge/fnforge/internal/gcp"
	"github.com/fnforge/fnforge/internal/plan"
)

// scheduledV1Strategy binds a scheduler job to the pubsub topic created
// alongside a gen1 function. Scheduler jobs live in the project's legacy
// appspot location, not the function's region.
type scheduledV1Strategy struct {
	scheduler gcp.SchedulerClient
	pubsub    gcp.PubSubClient
	exec      executor.Executor
	location  string
	logger    *slog.Logger
}

func (s *scheduledV1Strategy) WireUp(ctx context.Context, ep *plan.Endpoint, _ bool) error {
	job := scheduleJob(ep, s.location)

	err := s.exec.Execute(ctx, func(ctx context.Context) error {
		return s.scheduler.UpsertJob(ctx, job)
	})
	if err != nil {
		return apperrors.Deployment(ep.Name(), apperrors.OpUpsertSchedule, err)
	}

	s.logger.Debug("schedule wired", "endpoint", ep.Name(), "job", job.Name)
	return nil
}

// TearDown deletes the job, then the topic it published to. Both calls
// tolerate already-deleted resources.
func (s *scheduledV1Strategy) TearDown(ctx context.Context, ep *plan.Endpoint) error {
	err := s.exec.Execute(ctx, func(ctx context.Context) error {
		return s.scheduler.DeleteJob(ctx, scheduleJobName(ep, s.location))
	})
	if err != nil {
		return apperrors.Deployment(ep.Name(), apperrors.OpDeleteSchedule, err)
	}

	err = s.exec.Execute(ctx, func(ctx context.Context) error {
		return s.pubsub.DeleteTopic(ctx, ep.TopicName())
	})
	if err != nil {
		return apperrors.Deployment(ep.Name(), apperrors.OpDeleteTopic, err)
	}
	return nil
}

func scheduleJobName(ep *plan.Endpoint, location string) string {
	return fmt.Sprintf("projects/%s/locations/%s/jobs/%s", ep.Project, location, ep.ScheduleID())
}

func scheduleJob(ep *plan.Endpoint, location string) *cloudscheduler.Job {
	spec := ep.Trigger.Schedule
	job := &cloudscheduler.Job{
		Name:     scheduleJobName(ep, location),
		Schedule: spec.Schedule,
		TimeZone: spec.TimeZone,
		PubsubTarget: &cloudscheduler.PubsubTarget{
			TopicName:  ep.TopicName(),
			Attributes: map[string]string{"scheduled": "true"},
		},
	}
	if spec.RetryCount > 0 {
		job.RetryConfig = &cloudscheduler.RetryConfig{RetryCount: spec.RetryCount}
	}
	return job
}

// scheduledV2Strategy is a placeholder until gen2 schedule wiring lands.
// TODO: wire gen2 schedules once the eventarc-based flow is settled.
type scheduledV2Strategy struct{}

func (scheduledV2Strategy) WireUp(_ context.Context, ep *plan.Endpoint, _ bool) error {
	return apperrors.Deployment(ep.Name(), apperrors.OpUpsertSchedule, apperrors.ErrUnimplemented)
}

func (scheduledV2Strategy) TearDown(_ context.Context, ep *plan.Endpoint) error {
	return apperrors.Deployment(ep.Name(), apperrors.OpDeleteSchedule, apperrors.ErrUnimplemented)
}
