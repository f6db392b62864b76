// Package plan defines the deployment plan consumed by the fabricator: the
// endpoints to create, update, and delete per independent execution domain.
// Plans are produced by an external planner; the fabricator mutates endpoint
// labels and URIs in place so the planner sees server-discovered state
// without a refetch.
package plan

import (
	"fmt"

	"github.com/fnforge/fnforge/internal/constants"
)

// Platform selects which generation of the functions platform an endpoint
// deploys to. The set is closed; dispatch sites switch exhaustively and
// panic on anything else.
type Platform string

const (
	// PlatformGCFv1 is the first-generation Cloud Functions platform.
	PlatformGCFv1 Platform = "gcfv1"
	// PlatformGCFv2 is the second-generation, Cloud Run backed platform.
	PlatformGCFv2 Platform = "gcfv2"
)

// TriggerKind identifies how an endpoint is invoked.
type TriggerKind string

const (
	HTTPSTrigger     TriggerKind = "https"
	CallableTrigger  TriggerKind = "callable"
	ScheduledTrigger TriggerKind = "scheduled"
	EventTrigger     TriggerKind = "event"
	TaskQueueTrigger TriggerKind = "taskQueue"
	BlockingTrigger  TriggerKind = "blocking"
)

// Trigger carries the kind plus the kind-specific configuration. Exactly one
// of the pointer fields matching Kind may be set.
type Trigger struct {
	Kind      TriggerKind    `yaml:"kind" validate:"required,oneof=https callable scheduled event taskQueue blocking"`
	Schedule  *ScheduleSpec  `yaml:"schedule,omitempty"`
	Event     *EventSpec     `yaml:"event,omitempty"`
	TaskQueue *TaskQueueSpec `yaml:"taskQueue,omitempty"`
	Blocking  *BlockingSpec  `yaml:"blocking,omitempty"`
}

// ScheduleSpec configures a scheduled trigger.
type ScheduleSpec struct {
	// Schedule is a cron expression understood by the scheduler backend.
	Schedule string `yaml:"schedule" validate:"required"`
	TimeZone string `yaml:"timeZone,omitempty"`
	// RetryCount bounds redelivery attempts for a failed tick. Zero means
	// backend default.
	RetryCount int64 `yaml:"retryCount,omitempty"`
}

// EventSpec configures an event (pubsub) trigger.
type EventSpec struct {
	EventType string `yaml:"eventType" validate:"required"`
	// Resource is the fully qualified topic the function subscribes to.
	Resource string `yaml:"resource" validate:"required"`
	Retry    bool   `yaml:"retry,omitempty"`
}

// TaskQueueSpec configures a task-queue trigger.
type TaskQueueSpec struct {
	MaxConcurrentDispatches int64   `yaml:"maxConcurrentDispatches,omitempty"`
	MaxDispatchesPerSecond  float64 `yaml:"maxDispatchesPerSecond,omitempty"`
	MaxAttempts             int64   `yaml:"maxAttempts,omitempty"`
	MaxBackoffSeconds       int64   `yaml:"maxBackoffSeconds,omitempty"`
}

// BlockingSpec configures a blocking-auth trigger.
type BlockingSpec struct {
	// EventType is the auth flow hook, e.g. beforeCreate or beforeSignIn.
	EventType string `yaml:"eventType" validate:"required"`
	// AccessToken, IDToken and RefreshToken control which credentials the
	// identity backend forwards to the function.
	AccessToken  bool `yaml:"accessToken,omitempty"`
	IDToken      bool `yaml:"idToken,omitempty"`
	RefreshToken bool `yaml:"refreshToken,omitempty"`
}

// Endpoint is one deployable function unit plus its trigger configuration.
// Labels and URI are written back by the fabricator during deployment.
type Endpoint struct {
	Project string `yaml:"project" validate:"required"`
	Region  string `yaml:"region" validate:"required"`
	ID      string `yaml:"id" validate:"required"`

	Platform Platform `yaml:"platform" validate:"required,oneof=gcfv1 gcfv2"`
	Trigger  Trigger  `yaml:"trigger"`

	Runtime        string            `yaml:"runtime" validate:"required"`
	EntryPoint     string            `yaml:"entryPoint,omitempty"`
	MemoryMB       int64             `yaml:"memoryMB,omitempty"`
	Concurrency    int64             `yaml:"concurrency,omitempty"`
	TimeoutSeconds int64             `yaml:"timeoutSeconds,omitempty"`
	ServiceAccount string            `yaml:"serviceAccount,omitempty"`
	Environment    map[string]string `yaml:"environment,omitempty"`
	Labels         map[string]string `yaml:"labels,omitempty"`

	// Invoker lists the principals allowed to invoke the endpoint: "public",
	// "private", or service account emails. Empty means platform default.
	Invoker []string `yaml:"invoker,omitempty"`

	// URI is server-assigned and filled in after create/update.
	URI string `yaml:"-"`
}

// Name returns the project/region/id triple identifying the endpoint across
// the whole plan.
func (e *Endpoint) Name() string {
	return fmt.Sprintf("%s/%s/%s", e.Project, e.Region, e.ID)
}

// FunctionName returns the fully qualified function resource name.
func (e *Endpoint) FunctionName() string {
	return fmt.Sprintf("projects/%s/locations/%s/functions/%s", e.Project, e.Region, e.ID)
}

// ServiceName returns the Cloud Run service resource backing a gen2
// endpoint. Function and service IDs coincide, modulo case folding done by
// the platform; IDs are validated lowercase upstream.
func (e *Endpoint) ServiceName() string {
	return fmt.Sprintf("projects/%s/locations/%s/services/%s", e.Project, e.Region, e.ID)
}

// ScheduleID returns the deterministic name shared by the scheduler job and
// the pubsub topic backing a scheduled endpoint.
func (e *Endpoint) ScheduleID() string {
	return fmt.Sprintf("%s%s-%s", constants.ScheduleIDPrefix, e.ID, e.Region)
}

// TopicName returns the fully qualified pubsub topic for a scheduled
// endpoint.
func (e *Endpoint) TopicName() string {
	return fmt.Sprintf("projects/%s/topics/%s", e.Project, e.ScheduleID())
}

// QueueName returns the fully qualified task queue for a task-queue
// endpoint. Queue IDs follow the function ID.
func (e *Endpoint) QueueName() string {
	return fmt.Sprintf("projects/%s/locations/%s/queues/%s", e.Project, e.Region, e.ID)
}

// EndpointUpdate describes an update to an existing endpoint. When
// DeleteAndRecreate is set an immutable field changed: the old resource is
// deleted before the new one is created. The two steps are not atomic; a
// crash in between leaves the endpoint absent until the next reconcile.
type EndpointUpdate struct {
	Endpoint *Endpoint `yaml:"endpoint" validate:"required"`
	// DeleteAndRecreate, when set, is the old endpoint to delete first.
	DeleteAndRecreate *Endpoint `yaml:"deleteAndRecreate,omitempty"`
}

// Changeset groups the mutations for one independent execution domain,
// typically a region. Changesets are applied concurrently and never affect
// each other's outcome.
type Changeset struct {
	Creates []*Endpoint       `yaml:"creates,omitempty"`
	Updates []*EndpointUpdate `yaml:"updates,omitempty"`
	Deletes []*Endpoint       `yaml:"deletes,omitempty"`
}

// DeploymentPlan maps changeset keys to the changes for that domain.
// Endpoint names are unique across the whole plan.
type DeploymentPlan map[string]*Changeset
