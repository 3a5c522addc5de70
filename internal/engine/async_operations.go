package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gcbaptista/package-search/internal/source"
	"github.com/gcbaptista/package-search/model"
)

// RebuildAsync runs Rebuild as a tracked background job and returns its ID.
func (e *Engine) RebuildAsync(trigger string) (string, error) {
	jobID := e.jobManager.CreateJob(model.JobTypeRebuild, trigger, map[string]string{
		"operation": "rebuild",
	})

	err := e.jobManager.ExecuteJob(jobID, func(ctx context.Context, job *model.Job) error {
		e.jobManager.UpdateJobProgress(jobID, 0, 1, "building snapshot")
		snapshot, err := e.Rebuild(ctx)
		if err != nil {
			e.recordRebuildFailure()
			return err
		}
		e.jobManager.UpdateJobProgress(jobID, 1, 1, "published "+strconv.Itoa(snapshot.Len())+" packages")
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to start rebuild job: %w", err)
	}
	return jobID, nil
}

// RefreshAsync runs Refresh as a tracked background job and returns its ID.
func (e *Engine) RefreshAsync(src source.Source, trigger string) (string, error) {
	jobID := e.jobManager.CreateJob(model.JobTypeRefresh, trigger, map[string]string{
		"operation": "refresh",
		"source":    src.Name(),
	})

	err := e.jobManager.ExecuteJob(jobID, func(ctx context.Context, job *model.Job) error {
		e.jobManager.UpdateJobProgress(jobID, 0, 2, "loading "+src.Name())
		result, err := e.Refresh(ctx, src)
		if err != nil {
			return err
		}
		e.jobManager.UpdateJobProgress(jobID, 2, 2,
			fmt.Sprintf("%d upserted, %d removed, %d skipped", result.Upserted, result.Removed, result.Skipped))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to start refresh job: %w", err)
	}
	return jobID, nil
}

// GetJob retrieves a background job by ID.
func (e *Engine) GetJob(jobID string) (*model.Job, error) {
	return e.jobManager.GetJob(jobID)
}

// ListJobs returns background jobs, newest first, optionally filtered by status.
func (e *Engine) ListJobs(status *model.JobStatus) []*model.Job {
	return e.jobManager.ListJobs(status)
}

func (e *Engine) recordRebuildFailure() {
	if e.metrics != nil {
		e.metrics.RebuildsTotal.WithLabelValues("failed").Inc()
	}
}
