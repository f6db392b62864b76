package gcp

import (
	"context"

	"google.golang.org/api/pubsub/v1"
)

// PubSubClient manages the topics backing scheduled endpoints. Both
// directions are idempotent: creating an existing topic and deleting a
// missing one succeed.
type PubSubClient interface {
	CreateTopic(ctx context.Context, name string, labels map[string]string) error
	DeleteTopic(ctx context.Context, name string) error
}

type defaultPubSubClient struct {
	service *pubsub.Service
}

func (c *defaultPubSubClient) CreateTopic(ctx context.Context, name string, labels map[string]string) error {
	_, err := c.service.Projects.Topics.Create(name, &pubsub.Topic{Labels: labels}).Context(ctx).Do()
	if isAlreadyExists(err) {
		return nil
	}
	return wrapError("create topic", err)
}

func (c *defaultPubSubClient) DeleteTopic(ctx context.Context, name string) error {
	_, err := c.service.Projects.Topics.Delete(name).Context(ctx).Do()
	if isNotFound(err) {
		return nil
	}
	return wrapError("delete topic", err)
}
