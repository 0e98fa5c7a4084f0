package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
)

func TestRecordPublishesSummary(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer client.Close()

	topic, err := client.CreateTopic(ctx, "crawl-runs")
	require.NoError(t, err)
	defer topic.Stop()

	notifier := New(topic)
	require.Equal(t, "pubsub", notifier.Name())

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	summary := crawler.RunSummary{
		RunID:          "run-7",
		StartTime:      start,
		EndTime:        start.Add(3 * time.Second),
		PagesRequested: 4,
		RecordsWritten: 12,
	}
	require.NoError(t, notifier.Record(ctx, summary))

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "run-7", msgs[0].Attributes["run_id"])
	assert.Equal(t, "12", msgs[0].Attributes["records_written"])

	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "run-7", got["run_id"])
	assert.EqualValues(t, 4, got["pages_requested"])
	assert.EqualValues(t, 3000, got["duration_ms"])
}

func TestRecordWithoutTopic(t *testing.T) {
	t.Parallel()

	err := New(nil).Record(context.Background(), crawler.RunSummary{})
	require.EqualError(t, err, "pubsub topic is not configured")
}
