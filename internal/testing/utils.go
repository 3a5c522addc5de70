// Package testing provides utilities and helpers for testing the package search engine.
package testing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/package-search/config"
	"github.com/gcbaptista/package-search/internal/engine"
	"github.com/gcbaptista/package-search/model"
	"github.com/gcbaptista/package-search/services"
)

// TestSdkLibraries is a small SDK registry used by test engines.
var TestSdkLibraries = []string{"dart:async", "dart:io", "flutter"}

// CreateTestEngine creates a NotReady engine whose job manager is stopped on cleanup.
func CreateTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.NewEngine(engine.Options{
		Settings: config.SearchSettings{SdkLibraries: append([]string(nil), TestSdkLibraries...)},
	})
	require.NoError(t, err, "Failed to create test engine")
	t.Cleanup(eng.Close)
	return eng
}

// CreateReadyEngine creates an engine holding docs with a published snapshot.
func CreateReadyEngine(t *testing.T, docs ...model.PackageDocument) *engine.Engine {
	t.Helper()
	eng := CreateTestEngine(t)
	if len(docs) > 0 {
		require.NoError(t, eng.AddPackages(docs), "Failed to add test packages")
	}
	require.NoError(t, eng.MarkReady(context.Background()), "Failed to publish first snapshot")
	return eng
}

// SamplePackages returns a small corpus with distinct ranking fields.
func SamplePackages() []model.PackageDocument {
	day := func(n int) time.Time { return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC) }
	return []model.PackageDocument{
		{
			Name:        "http",
			Description: "A composable, multi-platform, Future-based API for HTTP requests",
			Tags:        []string{"platform:web", "platform:android", "sdk:dart"},
			Popularity:  0.99, Health: 0.95, Maintenance: 0.9,
			Created: day(1), Updated: day(20),
		},
		{
			Name:        "dio",
			Description: "A powerful HTTP networking package",
			Tags:        []string{"platform:web", "sdk:flutter"},
			Popularity:  0.97, Health: 0.9, Maintenance: 0.95,
			Created: day(5), Updated: day(25),
		},
		{
			Name:        "provider",
			Description: "A wrapper around InheritedWidget for state management",
			Tags:        []string{"sdk:flutter"},
			Popularity:  0.98, Health: 0.85, Maintenance: 0.8,
			Created: day(3), Updated: day(10),
		},
		{
			Name:           "http_legacy",
			Description:    "Old HTTP client",
			Popularity:     0.5,
			Created:        day(2),
			Updated:        day(2),
			IsDiscontinued: true,
		},
	}
}

// JobPollingOptions configures job polling behavior
type JobPollingOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
	LogProgress  bool
}

// DefaultJobPollingOptions returns sensible defaults for job polling
func DefaultJobPollingOptions() JobPollingOptions {
	return JobPollingOptions{
		Timeout:      10 * time.Second,
		PollInterval: 10 * time.Millisecond,
		LogProgress:  false,
	}
}

// WaitForJobCompletion polls a job until it completes or times out. A failed
// or cancelled job fails the test.
func WaitForJobCompletion(t *testing.T, jobManager services.JobManager, jobID string, opts JobPollingOptions) *model.Job {
	t.Helper()
	timeout := time.After(opts.Timeout)
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			t.Fatalf("Job %s did not complete within %v timeout", jobID, opts.Timeout)
		case <-ticker.C:
			job, err := jobManager.GetJob(jobID)
			require.NoError(t, err, "Failed to get job status")

			switch job.Status {
			case model.JobStatusCompleted:
				if opts.LogProgress {
					t.Logf("Job %s completed in %v", jobID, job.CompletedAt.Sub(job.CreatedAt))
				}
				return job
			case model.JobStatusFailed, model.JobStatusCancelled:
				t.Fatalf("Job %s ended as %s: %s", jobID, job.Status, job.Error)
			case model.JobStatusRunning:
				if opts.LogProgress && job.Progress != nil {
					t.Logf("Job %s progress: %d/%d - %s",
						jobID,
						job.Progress.Current,
						job.Progress.Total,
						job.Progress.Message)
				}
			}
		}
	}
}

// AssertJobCompleted verifies that a job completed successfully
func AssertJobCompleted(t *testing.T, job *model.Job, expectedType model.JobType, expectedTrigger string) {
	t.Helper()
	assert.Equal(t, model.JobStatusCompleted, job.Status, "Job should be completed")
	assert.Equal(t, expectedType, job.Type, "Job type should match")
	assert.Equal(t, expectedTrigger, job.Trigger, "Job trigger should match")
	assert.NotNil(t, job.CompletedAt, "Job should have completion timestamp")
	assert.Empty(t, job.Error, "Job should not have error")
}

// SearchTestCase represents a test case for search operations
type SearchTestCase struct {
	Name          string
	Query         services.ServiceSearchQuery
	ExpectedCount int
	ExpectedHits  []string // Expected package names of the page, in order; nil skips the check
	ValidateFunc  func(t *testing.T, result services.PackageSearchResult)
}

// RunSearchTests runs a suite of search tests against a searcher
func RunSearchTests(t *testing.T, searcher services.Searcher, tests []SearchTestCase) {
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			result, err := searcher.Search(context.Background(), tt.Query)
			require.NoError(t, err, "Search should not fail")

			assert.Equal(t, tt.ExpectedCount, result.TotalCount, "Total count should match")
			assert.NotNil(t, result.PackageHits, "Package hits are never nil")
			assert.NotNil(t, result.SdkLibraryHits, "SDK library hits are never nil")

			if tt.ExpectedHits != nil {
				names := make([]string, len(result.PackageHits))
				for i, hit := range result.PackageHits {
					names[i] = hit.Package
				}
				assert.Equal(t, tt.ExpectedHits, names, "Page should match")
			}

			if tt.ValidateFunc != nil {
				tt.ValidateFunc(t, result)
			}
		})
	}
}
