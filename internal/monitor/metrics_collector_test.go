package monitor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/worksched/internal/model"
	"github.com/t77yq/worksched/internal/testutil"
)

func summary(verdict model.Verdict, hours float64, unscheduled ...model.TaskID) model.ResultSummary {
	return model.ResultSummary{
		RequestID:   "req",
		Fingerprint: "fp-" + string(verdict),
		Verdict:     verdict,
		FinishTime:  time.Date(2026, 1, 9, 16, 0, 0, 0, time.UTC),
		Unscheduled: unscheduled,
		Stats:       model.RunStats{PlacedHours: hours},
		Duration:    2,
		ComputedAt:  time.Now(),
	}
}

func TestMetricsCollector_Record(t *testing.T) {
	collector := NewMetricsCollector(nil, time.Second, zaptest.NewLogger(t))

	collector.Record(summary(model.VerdictOnTrack, 12))
	collector.Record(summary(model.VerdictInfeasible, 4, "c", "d"))

	metrics := collector.Snapshot()
	assert.Equal(t, 2, metrics.Runs)
	assert.Equal(t, 1, metrics.Verdicts[model.VerdictOnTrack])
	assert.Equal(t, 1, metrics.Verdicts[model.VerdictInfeasible])
	assert.Equal(t, 16.0, metrics.PlacedHours)
	assert.Equal(t, 2, metrics.UnscheduledSum)
	assert.Equal(t, 2.0, metrics.AvgDurationMs)
	require.NotNil(t, metrics.LastRun)
	assert.Equal(t, model.VerdictInfeasible, metrics.LastRun.Verdict)
}

func TestMetricsCollector_SnapshotIsCopy(t *testing.T) {
	collector := NewMetricsCollector(nil, time.Second, zaptest.NewLogger(t))
	collector.Record(summary(model.VerdictOnTrack, 1))

	metrics := collector.Snapshot()
	metrics.Verdicts[model.VerdictOnTrack] = 99

	assert.Equal(t, 1, collector.Snapshot().Verdicts[model.VerdictOnTrack])
}

func TestMetricsCollector(t *testing.T) {
	// Start NATS server with JetStream
	_, _, js := testutil.StartJetStream(t)
	testutil.AddStream(t, js, "SCHEDULES", SubjectResult)
	testutil.AddStream(t, js, "METRICS", "metrics.>")

	logger := zaptest.NewLogger(t)
	collector := NewMetricsCollector(js, 500*time.Millisecond, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, collector.Start(ctx))
	defer collector.Stop()

	t.Run("HandleResult", func(t *testing.T) {
		data, err := json.Marshal(summary(model.VerdictOffTrack, 8, "x"))
		require.NoError(t, err)
		_, err = js.Publish(SubjectResult, data)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return collector.Snapshot().Runs == 1
		}, 3*time.Second, 50*time.Millisecond)

		metrics := collector.Snapshot()
		assert.Equal(t, 1, metrics.Verdicts[model.VerdictOffTrack])
		assert.Equal(t, 1, metrics.UnscheduledSum)
	})

	t.Run("PublishMetrics", func(t *testing.T) {
		time.Sleep(1500 * time.Millisecond)

		msgs, err := testutil.ConsumeMessages(js, SubjectMetrics, time.Second)
		require.NoError(t, err)
		require.NotEmpty(t, msgs)

		var metrics model.SchedulerMetrics
		require.NoError(t, json.Unmarshal(msgs[len(msgs)-1], &metrics))
		assert.NotZero(t, metrics.Timestamp)
		assert.GreaterOrEqual(t, metrics.Host.MemoryUsage, 0.0)
		assert.Equal(t, 1, metrics.Runs)
	})
}

func TestMetricsCollector_StopTwice(t *testing.T) {
	collector := NewMetricsCollector(nil, time.Second, zaptest.NewLogger(t))
	collector.Stop()
	assert.NotPanics(t, collector.Stop)
}
