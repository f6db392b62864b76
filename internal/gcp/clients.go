// Package gcp provides the narrow cloud API clients the deployment engine
// drives: function resources on both platform generations, Cloud Run service
// revisions, pubsub topics, scheduler jobs, task queues, and the identity
// backend holding blocking-function registrations.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	cloudfunctions "google.golang.org/api/cloudfunctions/v1"
	functionsv2 "google.golang.org/api/cloudfunctions/v2"
	"google.golang.org/api/cloudscheduler/v1"
	"google.golang.org/api/cloudtasks/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/pubsub/v1"
	"google.golang.org/api/run/v2"
)

// StorageSource locates an uploaded source archive for a gen2 build.
type StorageSource struct {
	Bucket     string
	Object     string
	Generation int64
}

// ParseStorageSource parses a gs://bucket/object locator.
func ParseStorageSource(raw string) (StorageSource, error) {
	rest, ok := strings.CutPrefix(raw, "gs://")
	if !ok {
		return StorageSource{}, fmt.Errorf("source %q must start with gs://", raw)
	}
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return StorageSource{}, fmt.Errorf("source %q must name a bucket and an object", raw)
	}
	return StorageSource{Bucket: bucket, Object: object}, nil
}

// Clients bundles every service client the fabricator needs. Fields are
// interfaces so tests can substitute hand-written fakes.
type Clients struct {
	FunctionsV1 FunctionsV1Client
	FunctionsV2 FunctionsV2Client
	Run         RunClient
	PubSub      PubSubClient
	Scheduler   SchedulerClient
	Tasks       TasksClient
	Identity    IdentityClient
}

// NewClients builds production clients backed by the Google Cloud APIs.
func NewClients(ctx context.Context, opts ...option.ClientOption) (*Clients, error) {
	v1Svc, err := cloudfunctions.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create cloudfunctions v1 service: %w", err)
	}

	v2Svc, err := functionsv2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create cloudfunctions v2 service: %w", err)
	}

	runSvc, err := run.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create run service: %w", err)
	}

	pubsubSvc, err := pubsub.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub service: %w", err)
	}

	schedulerSvc, err := cloudscheduler.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler service: %w", err)
	}

	tasksSvc, err := cloudtasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create cloudtasks service: %w", err)
	}

	identitySvc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create identitytoolkit service: %w", err)
	}

	return &Clients{
		FunctionsV1: &defaultFunctionsV1Client{service: v1Svc},
		FunctionsV2: &defaultFunctionsV2Client{service: v2Svc},
		Run:         &defaultRunClient{service: runSvc},
		PubSub:      &defaultPubSubClient{service: pubsubSvc},
		Scheduler:   &defaultSchedulerClient{service: schedulerSvc},
		Tasks:       &defaultTasksClient{service: tasksSvc},
		Identity:    &defaultIdentityClient{service: identitySvc},
	}, nil
}

func wrapError(action string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", action, err)
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound
	}
	return false
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusConflict
	}
	return false
}
