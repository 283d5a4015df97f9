package sync

import (
	"context"
	"testing"
	"time"

	"github.com/fakturo/fakturo/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// armedHarness returns a harness whose persisted state allows scheduled
// syncing
func armedHarness(t *testing.T) *testHarness {
	t.Helper()
	h := newTestHarness(t)
	h.state.Update(context.Background(), func(s *models.SyncState) {
		s.SyncEnabled = true
		s.DataSourceSelected = true
		s.DataSource = models.DataSourceDrive
	})
	return h
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestSchedulerTriggerNowRunsCycle(t *testing.T) {
	h := armedHarness(t)

	scheduler, err := NewFakturoSyncScheduler(h.engine, h.state, &SchedulerConfig{
		Interval: time.Hour, // never ticks during the test
	})
	require.NoError(t, err)

	scheduler.Start(context.Background())
	defer scheduler.Stop()

	scheduler.TriggerNow("watcher")

	waitFor(t, 2*time.Second, func() bool { return h.remote.Downloads() >= 1 })
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	h := armedHarness(t)

	scheduler, err := NewFakturoSyncScheduler(h.engine, h.state, &SchedulerConfig{
		Interval: 30 * time.Millisecond,
	})
	require.NoError(t, err)

	scheduler.Start(context.Background())
	defer scheduler.Stop()

	waitFor(t, 2*time.Second, func() bool { return h.remote.Downloads() >= 2 })
}

func TestSchedulerGatedOnState(t *testing.T) {
	h := newTestHarness(t) // sync not enabled

	scheduler, err := NewFakturoSyncScheduler(h.engine, h.state, &SchedulerConfig{
		Interval: time.Hour,
	})
	require.NoError(t, err)

	scheduler.Start(context.Background())
	defer scheduler.Stop()

	scheduler.TriggerNow("manual")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, h.remote.Downloads(), "disabled sync must not run")

	// Enabling without a data source still gates
	h.state.Update(context.Background(), func(s *models.SyncState) { s.SyncEnabled = true })
	scheduler.TriggerNow("manual")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, h.remote.Downloads(), "no data source selected must not run")

	// Fully armed, the trigger goes through
	h.state.Update(context.Background(), func(s *models.SyncState) {
		s.DataSourceSelected = true
		s.DataSource = models.DataSourceWebDAV
	})
	scheduler.TriggerNow("manual")
	waitFor(t, 2*time.Second, func() bool { return h.remote.Downloads() == 1 })
}

func TestSchedulerRetriesSystemicFailures(t *testing.T) {
	h := armedHarness(t)
	h.remote.FailDownloads("backend down")

	scheduler, err := NewFakturoSyncScheduler(h.engine, h.state, &SchedulerConfig{
		Interval:      time.Hour,
		RetryAttempts: 2,
		RetryDelay:    10 * time.Millisecond,
	})
	require.NoError(t, err)

	scheduler.Start(context.Background())
	defer scheduler.Stop()

	scheduler.TriggerNow("manual")

	// Initial attempt plus two retries, then give up until the next tick
	waitFor(t, 2*time.Second, func() bool { return h.remote.Downloads() == 3 })
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 3, h.remote.Downloads())
}

func TestSchedulerDoesNotRetryPreconditionFailures(t *testing.T) {
	h := armedHarness(t)
	h.engine.config.OnlineProbe = func() bool { return false }

	scheduler, err := NewFakturoSyncScheduler(h.engine, h.state, &SchedulerConfig{
		Interval:      time.Hour,
		RetryAttempts: 3,
		RetryDelay:    10 * time.Millisecond,
	})
	require.NoError(t, err)

	scheduler.Start(context.Background())
	defer scheduler.Stop()

	scheduler.TriggerNow("manual")
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, h.remote.Downloads(), "offline is not retried")
}

func TestSchedulerStartStopIdempotent(t *testing.T) {
	h := armedHarness(t)

	scheduler, err := NewFakturoSyncScheduler(h.engine, h.state, &SchedulerConfig{
		Interval: time.Hour,
	})
	require.NoError(t, err)

	ctx := context.Background()
	scheduler.Start(ctx)
	scheduler.Start(ctx)
	assert.True(t, scheduler.IsRunning())

	scheduler.Stop()
	scheduler.Stop()
	assert.False(t, scheduler.IsRunning())

	// A restart works
	scheduler.Start(ctx)
	assert.True(t, scheduler.IsRunning())
	scheduler.Stop()
}

func TestSchedulerTriggerAfterStopIsNoOp(t *testing.T) {
	h := armedHarness(t)

	scheduler, err := NewFakturoSyncScheduler(h.engine, h.state, &SchedulerConfig{
		Interval: time.Hour,
	})
	require.NoError(t, err)

	scheduler.Start(context.Background())
	scheduler.Stop()

	scheduler.TriggerNow("manual")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, h.remote.Downloads())
}

func TestSchedulerValidation(t *testing.T) {
	_, err := NewFakturoSyncScheduler(nil, nil, nil)
	require.Error(t, err)
}
