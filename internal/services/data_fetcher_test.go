package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstittsworth/player-valuation/internal/metrics"
)

func TestRunNowRecordsOutcome(t *testing.T) {
	dfs := NewDataFetcherService(metrics.NewRecorder(), quietLogger(), time.Second)
	defer dfs.Stop()

	runs := 0
	require.NoError(t, dfs.AddJob(JobIdentityRefresh, "0 0 6 * * *", "Identity map refresh", func(ctx context.Context) error {
		runs++
		return nil
	}))
	require.NoError(t, dfs.AddJob(JobRosterSync, "", "Roster sync", func(ctx context.Context) error {
		return errors.New("league unreachable")
	}))

	job, err := dfs.RunNow(JobIdentityRefresh)
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, job.Status)
	assert.Equal(t, 1, job.RunCount)
	assert.Equal(t, 1, runs)
	assert.True(t, job.IsEnabled)

	job, err = dfs.RunNow(JobRosterSync)
	require.Error(t, err)
	assert.Equal(t, JobFailed, job.Status)
	assert.Equal(t, 1, job.ErrorCount)
	assert.Equal(t, "league unreachable", job.LastError)
	assert.False(t, job.IsEnabled, "manual-only job")

	_, err = dfs.RunNow("nope")
	assert.Error(t, err)
}

func TestRunNowReportsOverlappingRun(t *testing.T) {
	dfs := NewDataFetcherService(nil, quietLogger(), time.Second)
	defer dfs.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	runs := 0
	require.NoError(t, dfs.AddJob(JobRosterSync, "", "Roster sync", func(ctx context.Context) error {
		runs++
		close(started)
		<-release
		return nil
	}))

	done := make(chan error, 1)
	go func() {
		_, err := dfs.RunNow(JobRosterSync)
		done <- err
	}()
	<-started

	job, err := dfs.RunNow(JobRosterSync)
	assert.True(t, errors.Is(err, ErrJobRunning))
	assert.Equal(t, JobRunning, job.Status)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, runs)
}

func TestRunJobRecoversPanics(t *testing.T) {
	dfs := NewDataFetcherService(nil, quietLogger(), time.Second)
	defer dfs.Stop()

	require.NoError(t, dfs.AddJob("boom", "", "Boom", func(ctx context.Context) error {
		panic("bad row")
	}))

	job, err := dfs.RunNow("boom")
	require.Error(t, err)
	assert.Contains(t, job.LastError, "panic: bad row")
}

func TestJobContextHasTimeout(t *testing.T) {
	dfs := NewDataFetcherService(nil, quietLogger(), 20*time.Millisecond)
	defer dfs.Stop()

	require.NoError(t, dfs.AddJob("slow", "", "Slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	job, err := dfs.RunNow("slow")
	require.Error(t, err)
	assert.Contains(t, job.LastError, context.DeadlineExceeded.Error())
}

func TestAddJobValidation(t *testing.T) {
	dfs := NewDataFetcherService(nil, quietLogger(), time.Second)
	defer dfs.Stop()

	assert.Error(t, dfs.AddJob("bad", "not a schedule", "Bad", func(context.Context) error { return nil }))
	require.NoError(t, dfs.AddJob("a", "", "A", func(context.Context) error { return nil }))
	assert.Error(t, dfs.AddJob("a", "", "A again", func(context.Context) error { return nil }))

	require.NoError(t, dfs.AddJob("b", "*/30 * * * * *", "B", func(context.Context) error { return nil }))
	jobs := dfs.GetJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)
}

func TestStartStop(t *testing.T) {
	dfs := NewDataFetcherService(nil, quietLogger(), time.Second)
	require.NoError(t, dfs.Start())
	assert.Error(t, dfs.Start())
	dfs.Stop()
	dfs.Stop()
}
