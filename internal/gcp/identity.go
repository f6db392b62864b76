package gcp

import (
	"context"
	"fmt"

	"google.golang.org/api/identitytoolkit/v2"
)

// IdentityClient reads and rewrites the per-project blocking-functions
// configuration. The backend forbids concurrent writes project-wide, so
// callers must serialize register/unregister traffic themselves.
type IdentityClient interface {
	GetBlockingConfig(ctx context.Context, project string) (*identitytoolkit.GoogleCloudIdentitytoolkitAdminV2BlockingFunctionsConfig, error)
	UpdateBlockingConfig(ctx context.Context, project string, cfg *identitytoolkit.GoogleCloudIdentitytoolkitAdminV2BlockingFunctionsConfig) error
}

type defaultIdentityClient struct {
	service *identitytoolkit.Service
}

func (c *defaultIdentityClient) GetBlockingConfig(
	ctx context.Context,
	project string,
) (*identitytoolkit.GoogleCloudIdentitytoolkitAdminV2BlockingFunctionsConfig, error) {
	cfg, err := c.service.Projects.GetConfig(configName(project)).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("get identity config", err)
	}
	if cfg.BlockingFunctions == nil {
		return &identitytoolkit.GoogleCloudIdentitytoolkitAdminV2BlockingFunctionsConfig{}, nil
	}
	return cfg.BlockingFunctions, nil
}

func (c *defaultIdentityClient) UpdateBlockingConfig(
	ctx context.Context,
	project string,
	cfg *identitytoolkit.GoogleCloudIdentitytoolkitAdminV2BlockingFunctionsConfig,
) error {
	update := &identitytoolkit.GoogleCloudIdentitytoolkitAdminV2Config{
		BlockingFunctions: cfg,
	}
	_, err := c.service.Projects.UpdateConfig(configName(project), update).
		UpdateMask("blockingFunctions").
		Context(ctx).Do()
	return wrapError("update identity config", err)
}

func configName(project string) string {
	return fmt.Sprintf("projects/%s/config", project)
}
