// Package errors provides the error types used by the deployment engine.
// Every failure of a named operation on a specific endpoint is wrapped in a
// DeploymentError so callers can report one outcome per endpoint.
package errors

import (
	"errors"
	"fmt"
)

// Op identifies the operation that failed. The set is closed; reporting
// layers switch on it.
type Op string

// Operations performed against the backing platforms.
const (
	OpCreateFunction     Op = "create function"
	OpUpdateFunction     Op = "update function"
	OpDeleteFunction     Op = "delete function"
	OpSetInvoker         Op = "set invoker"
	OpSetConcurrency     Op = "set concurrency"
	OpCreateTopic        Op = "create topic"
	OpDeleteTopic        Op = "delete topic"
	OpUpsertSchedule     Op = "upsert schedule"
	OpDeleteSchedule     Op = "delete schedule"
	OpUpsertQueue        Op = "upsert task queue"
	OpDisableQueue       Op = "disable task queue"
	OpSetEnqueuer        Op = "set task queue enqueuer"
	OpRegisterBlocking   Op = "register blocking trigger"
	OpUnregisterBlocking Op = "unregister blocking trigger"
)

// ErrUnimplemented marks operations the engine does not support yet. It is
// always wrapped in a DeploymentError before reaching a result.
var ErrUnimplemented = errors.New("operation not yet implemented")

// DeploymentError reports the failure of one operation on one endpoint.
// It is the only error type that reaches a DeployResult.
type DeploymentError struct {
	// Endpoint is the fully qualified endpoint name (project/region/id).
	Endpoint string
	// Op names the operation that failed.
	Op Op
	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *DeploymentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to %s for %s: %v", e.Op, e.Endpoint, e.Cause)
	}
	return fmt.Sprintf("failed to %s for %s", e.Op, e.Endpoint)
}

// Unwrap returns the underlying error.
func (e *DeploymentError) Unwrap() error {
	return e.Cause
}

// Deployment wraps cause as a DeploymentError for the given endpoint and
// operation. Returns nil when cause is nil so call sites can wrap
// unconditionally.
func Deployment(endpoint string, op Op, cause error) error {
	if cause == nil {
		return nil
	}
	return &DeploymentError{Endpoint: endpoint, Op: op, Cause: cause}
}

// AbortedDeploymentError is attached to deletes that were skipped because a
// sibling create or update in the same changeset failed. No network call was
// issued for the endpoint.
type AbortedDeploymentError struct {
	Endpoint string
}

// Error implements the error interface.
func (e *AbortedDeploymentError) Error() string {
	return fmt.Sprintf("deletion of %s aborted: a sibling operation in the same changeset failed", e.Endpoint)
}

// PreconditionError reports a caller-contract violation, such as a missing
// source locator for an endpoint's platform. It is raised before any mutation
// starts and never wrapped into a DeployResult.
type PreconditionError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *PreconditionError) Unwrap() error {
	return e.Cause
}

// Precondition creates a PreconditionError.
func Precondition(message string, cause error) *PreconditionError {
	return &PreconditionError{Message: message, Cause: cause}
}
