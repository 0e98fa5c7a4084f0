package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := fetchAttemptsTotal
	Init()
	require.Same(t, first, fetchAttemptsTotal)
}

func TestObservers(t *testing.T) {
	Init()

	okBefore := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues(OutcomeOK))
	ObserveFetchAttempt(OutcomeOK)
	require.Equal(t, okBefore+1, testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues(OutcomeOK)))

	pagesBefore := testutil.ToFloat64(pagesCachedTotal)
	bytesBefore := testutil.ToFloat64(cachedBytesTotal)
	ObservePageCached(128)
	require.Equal(t, pagesBefore+1, testutil.ToFloat64(pagesCachedTotal))
	require.Equal(t, bytesBefore+128, testutil.ToFloat64(cachedBytesTotal))

	recordsBefore := testutil.ToFloat64(recordsWrittenTotal)
	AddRecordsWritten(3)
	AddRecordsWritten(0)
	require.Equal(t, recordsBefore+3, testutil.ToFloat64(recordsWrittenTotal))

	failuresBefore := testutil.ToFloat64(extractionFailuresTotal)
	ObserveExtractionFailure()
	require.Equal(t, failuresBefore+1, testutil.ToFloat64(extractionFailuresTotal))

	IncActiveWorkers("test-pool")
	IncActiveWorkers("test-pool")
	DecActiveWorkers("test-pool")
	require.Equal(t, float64(1), testutil.ToFloat64(activeWorkers.WithLabelValues("test-pool")))

	SetQueueDepth("test-queue", 7)
	require.Equal(t, float64(7), testutil.ToFloat64(queueDepth.WithLabelValues("test-queue")))

	ObserveThrottleDelay("test-stage", 20*time.Millisecond)
	require.Positive(t, testutil.CollectAndCount(throttleDelaySeconds))
}
