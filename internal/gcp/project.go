package gcp

import (
	"context"
	"fmt"
	"strings"

	resourcemanager "cloud.google.com/go/resourcemanager/apiv3"
	"cloud.google.com/go/resourcemanager/apiv3/resourcemanagerpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ResolveProjectNumber looks up the numeric identifier of a project. The
// default compute service account is derived from it when an endpoint does
// not name its own.
func ResolveProjectNumber(ctx context.Context, projectID string, opts ...option.ClientOption) (string, error) {
	client, err := resourcemanager.NewProjectsClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("create resource manager client: %w", err)
	}
	defer client.Close()

	project, err := client.GetProject(ctx, &resourcemanagerpb.GetProjectRequest{
		Name: "projects/" + projectID,
	})
	if status.Code(err) == codes.NotFound {
		return "", fmt.Errorf("project %s does not exist or is not accessible", projectID)
	}
	if err != nil {
		return "", fmt.Errorf("get project %s: %w", projectID, err)
	}

	// Name comes back as projects/<number>.
	return strings.TrimPrefix(project.Name, "projects/"), nil
}

// DefaultComputeServiceAccount returns the service account gen2 functions
// run as when none is configured.
func DefaultComputeServiceAccount(projectNumber string) string {
	return fmt.Sprintf("%s-compute@developer.gserviceaccount.com", projectNumber)
}
