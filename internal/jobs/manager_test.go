package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalErrors "github.com/gcbaptista/package-search/internal/errors"
	"github.com/gcbaptista/package-search/model"
)

func waitForStatus(t *testing.T, manager *Manager, jobID string, status model.JobStatus) *model.Job {
	t.Helper()
	var job *model.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = manager.GetJob(jobID)
		return err == nil && job.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestJobManager_CreateJob(t *testing.T) {
	manager := NewManager(2, nil)
	defer manager.Stop()

	jobID := manager.CreateJob(model.JobTypeRebuild, "api", map[string]string{
		"operation": "test",
	})
	require.NotEmpty(t, jobID)

	job, err := manager.GetJob(jobID)
	require.NoError(t, err)

	assert.Equal(t, model.JobTypeRebuild, job.Type)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.Equal(t, "api", job.Trigger)
	assert.Equal(t, "test", job.Metadata["operation"])
}

func TestJobManager_GetJobReturnsCopy(t *testing.T) {
	manager := NewManager(1, nil)
	defer manager.Stop()

	jobID := manager.CreateJob(model.JobTypeRebuild, "api", map[string]string{"k": "v"})
	job, err := manager.GetJob(jobID)
	require.NoError(t, err)
	job.Metadata["k"] = "changed"
	job.Status = model.JobStatusFailed

	again, err := manager.GetJob(jobID)
	require.NoError(t, err)
	assert.Equal(t, "v", again.Metadata["k"])
	assert.Equal(t, model.JobStatusPending, again.Status)
}

func TestJobManager_GetJobNotFound(t *testing.T) {
	manager := NewManager(1, nil)
	defer manager.Stop()

	_, err := manager.GetJob("missing")
	assert.True(t, errors.Is(err, internalErrors.ErrJobNotFound))
}

func TestJobManager_ExecuteJob(t *testing.T) {
	manager := NewManager(2, nil)
	manager.Start()
	defer manager.Stop()

	jobID := manager.CreateJob(model.JobTypeRebuild, "api", nil)

	err := manager.ExecuteJob(jobID, func(ctx context.Context, job *model.Job) error {
		manager.UpdateJobProgress(jobID, 50, 100, "halfway")
		manager.UpdateJobProgress(jobID, 100, 100, "done")
		return nil
	})
	require.NoError(t, err)

	job := waitForStatus(t, manager, jobID, model.JobStatusCompleted)
	require.NotNil(t, job.Progress)
	assert.Equal(t, 100, job.Progress.Current)
	assert.Equal(t, float64(100), job.Progress.GetProgressPercentage())
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)

	metrics := manager.GetMetrics()
	assert.Equal(t, int64(1), metrics.JobsCompleted)
	assert.Contains(t, metrics.LastCompleted, model.JobTypeRebuild)
}

func TestJobManager_ExecuteJobFailure(t *testing.T) {
	manager := NewManager(1, nil)
	defer manager.Stop()

	jobID := manager.CreateJob(model.JobTypeRefresh, "scheduler", nil)
	require.NoError(t, manager.ExecuteJob(jobID, func(ctx context.Context, job *model.Job) error {
		return errors.New("source unavailable")
	}))

	job := waitForStatus(t, manager, jobID, model.JobStatusFailed)
	assert.Equal(t, "source unavailable", job.Error)
	assert.Equal(t, 0.0, manager.GetJobSuccessRate())
}

func TestJobManager_ExecuteJobTwice(t *testing.T) {
	manager := NewManager(1, nil)
	defer manager.Stop()

	jobID := manager.CreateJob(model.JobTypeRebuild, "api", nil)
	require.NoError(t, manager.ExecuteJob(jobID, func(ctx context.Context, job *model.Job) error { return nil }))

	err := manager.ExecuteJob(jobID, func(ctx context.Context, job *model.Job) error { return nil })
	assert.Error(t, err)

	err = manager.ExecuteJob("missing", func(ctx context.Context, job *model.Job) error { return nil })
	assert.True(t, errors.Is(err, internalErrors.ErrJobNotFound))
}

func TestJobManager_StopCancelsRunningJobs(t *testing.T) {
	manager := NewManager(1, nil)

	started := make(chan struct{})
	jobID := manager.CreateJob(model.JobTypeRebuild, "api", nil)
	require.NoError(t, manager.ExecuteJob(jobID, func(ctx context.Context, job *model.Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))

	<-started
	manager.Stop()
	manager.Stop() // idempotent

	job, err := manager.GetJob(jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, job.Status)
}

func TestJobManager_ListJobs(t *testing.T) {
	manager := NewManager(1, nil)
	defer manager.Stop()

	first := manager.CreateJob(model.JobTypeRebuild, "api", nil)
	time.Sleep(2 * time.Millisecond)
	second := manager.CreateJob(model.JobTypeRefresh, "scheduler", nil)

	all := manager.ListJobs(nil)
	require.Len(t, all, 2)
	assert.Equal(t, second, all[0].ID)
	assert.Equal(t, first, all[1].ID)

	running := model.JobStatusRunning
	assert.Empty(t, manager.ListJobs(&running))
	assert.Equal(t, int64(2), manager.GetCurrentWorkload())
}

func TestJobManager_CleanupOldJobs(t *testing.T) {
	manager := NewManager(1, nil)
	defer manager.Stop()

	jobID := manager.CreateJob(model.JobTypeRebuild, "api", nil)
	require.NoError(t, manager.ExecuteJob(jobID, func(ctx context.Context, job *model.Job) error { return nil }))
	waitForStatus(t, manager, jobID, model.JobStatusCompleted)

	assert.Equal(t, 0, manager.CleanupOldJobs(time.Hour))
	assert.Equal(t, 1, manager.CleanupOldJobs(-time.Second))

	_, err := manager.GetJob(jobID)
	assert.Error(t, err)
}
