package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, registry *prometheus.Registry, name string) (float64, bool) {
	t.Helper()
	metricFamilies, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range metricFamilies {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetGauge().GetValue(), true
		}
	}
	return 0, false
}

func TestJobStatusManager_RegisterJob(t *testing.T) {
	jsm := NewJobStatusManager(setupTestLogger(), NewBackgroundJobMetrics())

	jsm.RegisterJob("ledger_sweep")

	status, exists := jsm.GetJobStatus("ledger_sweep")
	require.True(t, exists)
	assert.Equal(t, "ledger_sweep", status.JobName)
	assert.Equal(t, JobStatusPending, status.Status)
	assert.Equal(t, int64(0), status.SuccessCount)
	assert.NotNil(t, status.Metadata)
	assert.False(t, status.CreatedAt.IsZero())
}

func TestJobStatusManager_RegisterJobTwice(t *testing.T) {
	jsm := NewJobStatusManager(setupTestLogger(), NewBackgroundJobMetrics())

	jsm.RegisterJob("duplicate_job")
	first, _ := jsm.GetJobStatus("duplicate_job")
	jsm.RegisterJob("duplicate_job")
	second, _ := jsm.GetJobStatus("duplicate_job")

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestJobStatusManager_StartJob(t *testing.T) {
	metrics := NewBackgroundJobMetrics()
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)
	jsm := NewJobStatusManager(setupTestLogger(), metrics)

	jsm.StartJob("ledger_sweep")

	status, exists := jsm.GetJobStatus("ledger_sweep")
	require.True(t, exists)
	assert.Equal(t, JobStatusRunning, status.Status)
	assert.WithinDuration(t, time.Now(), status.LastRunTime, time.Second)

	active, found := gaugeValue(t, registry, "mint_relayer_background_jobs_active")
	assert.True(t, found)
	assert.Equal(t, float64(1), active)
}

func TestJobStatusManager_CompleteJob(t *testing.T) {
	metrics := NewBackgroundJobMetrics()
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)
	jsm := NewJobStatusManager(setupTestLogger(), metrics)

	jsm.StartJob("ledger_sweep")
	jsm.CompleteJob("ledger_sweep", errors.New("database is down"), nil)

	status, _ := jsm.GetJobStatus("ledger_sweep")
	assert.Equal(t, JobStatusFailed, status.Status)
	assert.Equal(t, int64(1), status.FailureCount)
	assert.Equal(t, int64(1), status.ConsecutiveFailures)
	assert.Equal(t, "database", status.Metadata["error_type"])

	jsm.StartJob("ledger_sweep")
	jsm.CompleteJob("ledger_sweep", nil, map[string]interface{}{"swept": int64(3)})

	status, _ = jsm.GetJobStatus("ledger_sweep")
	assert.Equal(t, JobStatusSuccess, status.Status)
	assert.Equal(t, int64(1), status.SuccessCount)
	assert.Equal(t, int64(0), status.ConsecutiveFailures)
	assert.Empty(t, status.LastError)
	assert.Equal(t, int64(3), status.Metadata["swept"])
	assert.NotContains(t, status.Metadata, "error_type")
	assert.True(t, status.MinExecutionTime <= status.MaxExecutionTime)

	active, _ := gaugeValue(t, registry, "mint_relayer_background_jobs_active")
	assert.Equal(t, float64(0), active)
}

func TestJobStatusManager_CompleteUnregisteredJob(t *testing.T) {
	jsm := NewJobStatusManager(setupTestLogger(), NewBackgroundJobMetrics())

	jsm.CompleteJob("unknown", nil, nil)

	_, exists := jsm.GetJobStatus("unknown")
	assert.False(t, exists)
}

func TestJobStatusManager_StalledJobDetection(t *testing.T) {
	metrics := NewBackgroundJobMetrics()
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)
	jsm := NewJobStatusManager(setupTestLogger(), metrics)
	jsm.stalledThreshold = 50 * time.Millisecond

	jsm.StartJob("stalled_job")
	time.Sleep(80 * time.Millisecond)
	jsm.detectStalledJobs()

	status, _ := jsm.GetJobStatus("stalled_job")
	assert.Equal(t, JobStatusStalled, status.Status)

	stalled, _ := gaugeValue(t, registry, "mint_relayer_background_jobs_stalled")
	assert.Equal(t, float64(1), stalled)
	assert.Equal(t, 1, jsm.GetJobsSummary().StalledJobs)
}

func TestJobStatusManager_GetJobsSummary(t *testing.T) {
	jsm := NewJobStatusManager(setupTestLogger(), NewBackgroundJobMetrics())

	jsm.StartJob("healthy")
	jsm.CompleteJob("healthy", nil, nil)
	jsm.StartJob("broken")
	jsm.CompleteJob("broken", errors.New("boom"), nil)
	jsm.StartJob("running")
	jsm.RegisterJob("pending")

	summary := jsm.GetJobsSummary()

	assert.Equal(t, 4, summary.TotalJobs)
	assert.Equal(t, 1, summary.HealthyJobs)
	assert.Equal(t, 1, summary.UnhealthyJobs)
	assert.Equal(t, 1, summary.RunningJobs)
}

func TestJobStatusManager_ConcurrentAccess(t *testing.T) {
	jsm := NewJobStatusManager(setupTestLogger(), NewBackgroundJobMetrics())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("job_%d", i%3)
			for j := 0; j < 20; j++ {
				jsm.StartJob(name)
				jsm.CompleteJob(name, nil, nil)
				jsm.GetAllJobStatuses()
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, jsm.GetAllJobStatuses(), 3)
}

func TestJobStatusManager_RunStopsWithContext(t *testing.T) {
	jsm := NewJobStatusManager(setupTestLogger(), NewBackgroundJobMetrics())
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		jsm.Run(ctx, 10*time.Millisecond)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestInstrumentedJob_SuccessfulExecution(t *testing.T) {
	jsm := NewJobStatusManager(setupTestLogger(), NewBackgroundJobMetrics())
	job := NewInstrumentedJob("ledger_sweep", func(ctx context.Context) (map[string]interface{}, error) {
		return map[string]interface{}{"swept": int64(2)}, nil
	}, jsm, setupTestLogger(), time.Second)

	job.Run()

	status, _ := jsm.GetJobStatus("ledger_sweep")
	assert.Equal(t, JobStatusSuccess, status.Status)
	assert.Equal(t, int64(2), status.Metadata["swept"])
}

func TestInstrumentedJob_TimeoutExecution(t *testing.T) {
	metrics := NewBackgroundJobMetrics()
	jsm := NewJobStatusManager(setupTestLogger(), metrics)
	job := NewInstrumentedJob("slow_job", func(ctx context.Context) (map[string]interface{}, error) {
		time.Sleep(300 * time.Millisecond)
		return nil, nil
	}, jsm, setupTestLogger(), 50*time.Millisecond)

	start := time.Now()
	job.Run()

	assert.Less(t, time.Since(start), 250*time.Millisecond)
	status, _ := jsm.GetJobStatus("slow_job")
	assert.Equal(t, JobStatusFailed, status.Status)
	assert.Contains(t, status.LastError, "timeout")
	assert.Equal(t, "timeout", status.Metadata["error_type"])
	assert.Equal(t, "50ms", status.Metadata["timeout"])
}

func TestInstrumentedJob_PanicRecovery(t *testing.T) {
	jsm := NewJobStatusManager(setupTestLogger(), NewBackgroundJobMetrics())
	job := NewInstrumentedJob("panic_job", func(ctx context.Context) (map[string]interface{}, error) {
		panic("unexpected panic in job")
	}, jsm, setupTestLogger(), time.Second)

	assert.NotPanics(t, job.Run)

	status, _ := jsm.GetJobStatus("panic_job")
	assert.Equal(t, JobStatusFailed, status.Status)
	assert.Contains(t, status.LastError, "panicked")
	assert.Equal(t, "panic", status.Metadata["error_type"])
	assert.Contains(t, status.Metadata, "stack_trace")
}

func TestClassifyJobError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: ""},
		{err: errors.New("context deadline exceeded"), want: "timeout"},
		{err: errors.New("sql: connection is already closed"), want: "database"},
		{err: errors.New("connection refused"), want: "network"},
		{err: errors.New("upstash returned ERR"), want: "ledger"},
		{err: errors.New("job panicked: x"), want: "panic"},
		{err: errors.New("strange"), want: "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyJobError(tt.err))
	}
}

func TestBackgroundJobMetrics_RecordSweptEntries(t *testing.T) {
	metrics := NewBackgroundJobMetrics()
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	metrics.RecordSweptEntries("postgres", 4)
	metrics.RecordSweptEntries("postgres", 0)

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "mint_relayer_ledger_swept_entries_total" {
			found = true
			assert.Equal(t, float64(4), mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}
