package plan

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/fnforge/fnforge/internal/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a plan against the planner contract: structurally complete
// endpoints, trigger configuration matching the trigger kind, and endpoint
// names unique across every changeset. Violations are PreconditionErrors;
// nothing has been mutated when one is returned.
func (p DeploymentPlan) Validate() error {
	seen := make(map[string]string)

	for key, cs := range p {
		if cs == nil {
			return apperrors.Precondition(fmt.Sprintf("changeset %q is nil", key), nil)
		}
		for _, ep := range cs.Creates {
			if err := validateEndpoint(key, seen, ep); err != nil {
				return err
			}
		}
		for _, up := range cs.Updates {
			if up == nil || up.Endpoint == nil {
				return apperrors.Precondition(fmt.Sprintf("changeset %q contains an empty update", key), nil)
			}
			if err := validateEndpoint(key, seen, up.Endpoint); err != nil {
				return err
			}
			if up.DeleteAndRecreate != nil && up.DeleteAndRecreate.Name() != up.Endpoint.Name() {
				return apperrors.Precondition(fmt.Sprintf(
					"update of %s replaces a differently named endpoint %s",
					up.Endpoint.Name(), up.DeleteAndRecreate.Name()), nil)
			}
		}
		for _, ep := range cs.Deletes {
			if err := validateEndpoint(key, seen, ep); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateEndpoint(changeset string, seen map[string]string, ep *Endpoint) error {
	if ep == nil {
		return apperrors.Precondition(fmt.Sprintf("changeset %q contains a nil endpoint", changeset), nil)
	}
	if err := validate.Struct(ep); err != nil {
		return apperrors.Precondition(fmt.Sprintf("endpoint %s is malformed", ep.Name()), err)
	}
	if err := validateTrigger(ep); err != nil {
		return err
	}
	if prev, ok := seen[ep.Name()]; ok {
		return apperrors.Precondition(fmt.Sprintf(
			"endpoint %s appears in changesets %q and %q; names must be unique across the plan",
			ep.Name(), prev, changeset), nil)
	}
	seen[ep.Name()] = changeset
	return nil
}

func validateTrigger(ep *Endpoint) error {
	t := ep.Trigger
	switch t.Kind {
	case ScheduledTrigger:
		if t.Schedule == nil || t.Schedule.Schedule == "" {
			return apperrors.Precondition(fmt.Sprintf("scheduled endpoint %s has no schedule", ep.Name()), nil)
		}
	case EventTrigger:
		if t.Event == nil {
			return apperrors.Precondition(fmt.Sprintf("event endpoint %s has no event config", ep.Name()), nil)
		}
	case BlockingTrigger:
		if t.Blocking == nil || t.Blocking.EventType == "" {
			return apperrors.Precondition(fmt.Sprintf("blocking endpoint %s has no event type", ep.Name()), nil)
		}
	case TaskQueueTrigger, HTTPSTrigger, CallableTrigger:
		// Task queue config is optional; HTTPS and callable carry none.
	default:
		return apperrors.Precondition(fmt.Sprintf("endpoint %s has unknown trigger kind %q", ep.Name(), t.Kind), nil)
	}
	return nil
}
