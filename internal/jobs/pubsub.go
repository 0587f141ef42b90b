package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/JonMunkholm/royalties/internal/core"
	"google.golang.org/api/option"
)

// PubSubOptions configures PubSubQueue.
type PubSubOptions struct {
	ProjectID       string
	Topic           string
	Subscription    string
	CredentialsJSON string // empty uses Application Default Credentials
	MaxOutstanding  int
	AckDeadline     time.Duration
}

// PubSubQueue publishes jobs to a topic and receives them from a
// subscription. A message is acked when its handler returns nil and nacked
// otherwise, so Pub/Sub redelivers failed jobs.
type PubSubQueue struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
}

var _ Dispatcher = (*PubSubQueue)(nil)

// NewPubSubQueue connects to Pub/Sub, creating the topic and subscription if
// they do not exist.
func NewPubSubQueue(ctx context.Context, opts PubSubOptions) (*PubSubQueue, error) {
	if opts.ProjectID == "" {
		return nil, errors.New("pubsub project id is required")
	}
	if opts.Topic == "" || opts.Subscription == "" {
		return nil, errors.New("pubsub topic and subscription are required")
	}

	var clientOpts []option.ClientOption
	if opts.CredentialsJSON != "" {
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	}
	client, err := pubsub.NewClient(ctx, opts.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}

	topic, err := ensureTopic(ctx, client, opts.Topic)
	if err != nil {
		client.Close()
		return nil, err
	}
	sub, err := ensureSubscription(ctx, client, opts.Subscription, topic, opts.AckDeadline)
	if err != nil {
		topic.Stop()
		client.Close()
		return nil, err
	}
	if opts.MaxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = opts.MaxOutstanding
	}

	slog.Info("pubsub job queue ready",
		"project_id", opts.ProjectID,
		"topic", opts.Topic,
		"subscription", opts.Subscription,
	)
	return &PubSubQueue{client: client, topic: topic, sub: sub}, nil
}

func ensureTopic(ctx context.Context, client *pubsub.Client, name string) (*pubsub.Topic, error) {
	t := client.Topic(name)
	ok, err := t.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %q: %w", name, err)
	}
	if ok {
		return t, nil
	}
	t, err = client.CreateTopic(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create topic %q: %w", name, err)
	}
	return t, nil
}

func ensureSubscription(ctx context.Context, client *pubsub.Client, name string, topic *pubsub.Topic, ackDeadline time.Duration) (*pubsub.Subscription, error) {
	sub := client.Subscription(name)
	ok, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check subscription %q: %w", name, err)
	}
	if ok {
		return sub, nil
	}
	if ackDeadline <= 0 {
		ackDeadline = time.Minute
	}
	sub, err = client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: ackDeadline,
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription %q: %w", name, err)
	}
	return sub, nil
}

// Enqueue publishes job and waits for the server to accept it.
func (q *PubSubQueue) Enqueue(ctx context.Context, job core.Job) error {
	data, err := EncodeJob(job)
	if err != nil {
		return err
	}
	res := q.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"kind": string(job.Kind)},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", job, err)
	}
	return nil
}

// Start receives jobs until ctx is cancelled.
func (q *PubSubQueue) Start(ctx context.Context, h Handler) error {
	err := q.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		job, err := DecodeJob(msg.Data)
		if err != nil {
			// Redelivery cannot fix a malformed payload.
			slog.Error("dropping malformed job", "message_id", msg.ID, "error", err)
			msg.Ack()
			return
		}
		if err := h(ctx, job); err != nil {
			slog.Error("job failed",
				"job", job.String(),
				"message_id", msg.ID,
				"delivery_attempt", deliveryAttempt(msg),
				"error", err,
			)
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pubsub receive: %w", err)
	}
	return nil
}

func deliveryAttempt(msg *pubsub.Message) int {
	if msg.DeliveryAttempt == nil {
		return 0
	}
	return *msg.DeliveryAttempt
}

// Close flushes pending publishes and closes the client. Receive returns once
// its context is cancelled, so ctx is unused.
func (q *PubSubQueue) Close(ctx context.Context) error {
	q.topic.Stop()
	return q.client.Close()
}
