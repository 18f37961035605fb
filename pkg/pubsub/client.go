// Package pubsub publishes outbox events to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/classickits/jerseystore-backend/pkg/config"
	"github.com/classickits/jerseystore-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errClosed            = errors.New("pubsub client not initialized")
)

// Client keeps one publisher per topic for the life of the process so
// message batching works across calls.
type Client struct {
	api     *pubsub.Client
	project string
	topic   string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects and fails fast when the domain topic does not exist.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	topic := strings.TrimSpace(cfg.DomainTopic)
	if topic == "" {
		return nil, errors.New("pubsub domain topic is required")
	}

	api, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		api:        api,
		project:    project,
		topic:      topic,
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.Ping(ctx); err != nil {
		_ = api.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", topic), "pubsub client initialized")
	}
	return c, nil
}

// Publish sends one message and waits for the server to acknowledge it.
func (c *Client) Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	pub, err := c.publisher(topic)
	if err != nil {
		return "", err
	}
	return pub.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
}

func (c *Client) publisher(topic string) (*pubsub.Publisher, error) {
	if c == nil || c.api == nil {
		return nil, errClosed
	}
	name := topicResourceName(c.project, topic)
	if name == "" {
		return nil, fmt.Errorf("topic %q cannot be resolved", topic)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	pub, ok := c.publishers[name]
	if !ok {
		pub = c.api.Publisher(name)
		c.publishers[name] = pub
	}
	return pub, nil
}

// Ping checks that the domain topic exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.api == nil {
		return errClosed
	}
	name := topicResourceName(c.project, c.topic)
	_, err := c.api.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %q does not exist", c.topic)
	case err != nil:
		return fmt.Errorf("checking topic %q: %w", c.topic, err)
	}
	return nil
}

// Close flushes pending messages on every publisher, then closes the client.
func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	c.mu.Lock()
	for name, pub := range c.publishers {
		pub.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.api.Close()
}

// topicResourceName accepts either a short topic id or a full
// projects/<p>/topics/<t> name.
func topicResourceName(project, topic string) string {
	topic = strings.TrimSpace(topic)
	if strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/") {
		return topic
	}
	project = strings.TrimSpace(project)
	if topic == "" || project == "" {
		return ""
	}
	return "projects/" + project + "/topics/" + topic
}
