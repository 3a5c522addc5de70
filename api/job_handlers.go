package api

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/package-search/internal/errors"
	"github.com/gcbaptista/package-search/model"
)

// GetJobHandler handles requests to get job status by ID
func (api *API) GetJobHandler(c *gin.Context) {
	jobID := c.Param("jobId")

	job, err := api.engine.GetJob(jobID)
	if err != nil {
		if stderrors.Is(err, errors.ErrJobNotFound) {
			SendJobNotFoundError(c, jobID)
			return
		}
		SendInternalError(c, "get job", err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobsHandler lists background jobs, newest first, optionally filtered by ?status=
func (api *API) ListJobsHandler(c *gin.Context) {
	var statusFilter *model.JobStatus
	if statusParam := c.Query("status"); statusParam != "" {
		status := model.JobStatus(statusParam)
		switch status {
		case model.JobStatusPending, model.JobStatusRunning, model.JobStatusCompleted,
			model.JobStatusFailed, model.JobStatusCancelled:
		default:
			result := &ValidationResult{Valid: true}
			result.AddError("status", "Unknown job status '"+statusParam+"'")
			SendValidationError(c, result)
			return
		}
		statusFilter = &status
	}

	jobs := api.engine.ListJobs(statusFilter)
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// GetJobMetricsHandler handles requests to get job performance metrics
func (api *API) GetJobMetricsHandler(c *gin.Context) {
	if api.jobs == nil {
		SendError(c, http.StatusNotImplemented, ErrorCodeNotConfigured, "Job metrics are not available")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"metrics":          api.jobs.GetMetrics(),
		"success_rate":     api.jobs.GetJobSuccessRate(),
		"current_workload": api.jobs.GetCurrentWorkload(),
	})
}
