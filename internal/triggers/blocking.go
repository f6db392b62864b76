package triggers

import (
	"context"
	"log/slog"

	"google.golang.org/api/identitytoolkit/v2"

	apperrors "github.com/fnforge/fnforge/internal/errors"
	"github.com/fnforge/fnforge/internal/gcp"
	"github.com/fnforge/fnforge/internal/plan"
)

// blockingStrategy registers auth-flow hooks with the identity backend. The
// backend rejects concurrent config writes project-wide, so every call goes
// through the serialized queue; each caller still waits only for its own
// call.
type blockingStrategy struct {
	identity gcp.IdentityClient
	queue    Queue
	logger   *slog.Logger
}

func (s *blockingStrategy) WireUp(ctx context.Context, ep *plan.Endpoint, isUpdate bool) error {
	err := s.queue.Submit(ctx, func(ctx context.Context) error {
		return s.register(ctx, ep, isUpdate)
	})
	return apperrors.Deployment(ep.Name(), apperrors.OpRegisterBlocking, err)
}

func (s *blockingStrategy) TearDown(ctx context.Context, ep *plan.Endpoint) error {
	err := s.queue.Submit(ctx, func(ctx context.Context) error {
		return s.unregister(ctx, ep)
	})
	return apperrors.Deployment(ep.Name(), apperrors.OpUnregisterBlocking, err)
}

func (s *blockingStrategy) register(ctx context.Context, ep *plan.Endpoint, _ bool) error {
	cfg, err := s.identity.GetBlockingConfig(ctx, ep.Project)
	if err != nil {
		return err
	}

	spec := ep.Trigger.Blocking
	if cfg.Triggers == nil {
		cfg.Triggers = make(map[string]identitytoolkit.GoogleCloudIdentitytoolkitAdminV2Trigger)
	}
	cfg.Triggers[spec.EventType] = identitytoolkit.GoogleCloudIdentitytoolkitAdminV2Trigger{
		FunctionUri: ep.URI,
	}
	cfg.ForwardInboundCredentials = &identitytoolkit.GoogleCloudIdentitytoolkitAdminV2ForwardInboundCredentials{
		AccessToken:  spec.AccessToken,
		IdToken:      spec.IDToken,
		RefreshToken: spec.RefreshToken,
	}

	if err := s.identity.UpdateBlockingConfig(ctx, ep.Project, cfg); err != nil {
		return err
	}
	s.logger.Debug("blocking trigger registered", "endpoint", ep.Name(), "event", spec.EventType)
	return nil
}

// unregister removes every trigger pointing at this endpoint's URI. Nothing
// to do when the endpoint was never registered.
func (s *blockingStrategy) unregister(ctx context.Context, ep *plan.Endpoint) error {
	cfg, err := s.identity.GetBlockingConfig(ctx, ep.Project)
	if err != nil {
		return err
	}

	changed := false
	for event, trigger := range cfg.Triggers {
		if trigger.FunctionUri != "" && trigger.FunctionUri == ep.URI {
			delete(cfg.Triggers, event)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.identity.UpdateBlockingConfig(ctx, ep.Project, cfg)
}
