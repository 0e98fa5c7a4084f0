// Package pubsub publishes run summaries to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
)

// Notifier publishes one message per finished run.
type Notifier struct {
	topic *pubsub.Topic
}

type runMessage struct {
	crawler.RunSummary
	DurationMS int64 `json:"duration_ms"`
}

// New creates a Notifier for the provided topic.
func New(topic *pubsub.Topic) *Notifier {
	return &Notifier{topic: topic}
}

// Connect creates a client and topic handle using Application Default
// Credentials. The returned close function stops the topic and the client.
func Connect(ctx context.Context, projectID, topicID string) (*Notifier, func() error, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	closeFn := func() error {
		topic.Stop()
		if err := client.Close(); err != nil {
			return fmt.Errorf("close pubsub client: %w", err)
		}
		return nil
	}
	return New(topic), closeFn, nil
}

// Name identifies the sink in logs.
func (n *Notifier) Name() string {
	return "pubsub"
}

// Record marshals the summary to JSON and waits for the publish result.
func (n *Notifier) Record(ctx context.Context, summary crawler.RunSummary) error {
	if n.topic == nil {
		return fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(runMessage{RunSummary: summary, DurationMS: summary.Duration().Milliseconds()})
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id":          summary.RunID,
			"records_written": strconv.FormatInt(summary.RecordsWritten, 10),
		},
	}
	if _, err := n.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}
