package jobs

import (
	"sync"
	"time"

	"github.com/gcbaptista/package-search/model"
)

// maxSamplesPerType bounds the execution-time history kept per job type.
const maxSamplesPerType = 100

// JobMetricsData is a point-in-time copy of job metrics, safe to serialize
type JobMetricsData struct {
	JobsCreated          int64                       `json:"jobs_created"`
	JobsCompleted        int64                       `json:"jobs_completed"`
	JobsFailed           int64                       `json:"jobs_failed"`
	SuccessRate          float64                     `json:"success_rate"`
	AverageExecutionTime time.Duration               `json:"average_execution_time_ns"`
	JobsByType           map[model.JobType]int64     `json:"jobs_by_type"`
	JobsByStatus         map[model.JobStatus]int64   `json:"jobs_by_status"`
	LastCompleted        map[model.JobType]time.Time `json:"last_completed,omitempty"`
	LastUpdated          time.Time                   `json:"last_updated"`
}

// JobMetrics tracks counters and execution times for jobs
type JobMetrics struct {
	mu                 sync.RWMutex
	jobsCreated        int64
	jobsCompleted      int64
	jobsFailed         int64
	totalExecutionTime time.Duration
	jobsByType         map[model.JobType]int64
	jobsByStatus       map[model.JobStatus]int64
	samplesByType      map[model.JobType][]time.Duration
	lastCompleted      map[model.JobType]time.Time
	lastUpdated        time.Time
}

// NewJobMetrics creates a new metrics collector
func NewJobMetrics() *JobMetrics {
	return &JobMetrics{
		jobsByType:    make(map[model.JobType]int64),
		jobsByStatus:  make(map[model.JobStatus]int64),
		samplesByType: make(map[model.JobType][]time.Duration),
		lastCompleted: make(map[model.JobType]time.Time),
		lastUpdated:   time.Now(),
	}
}

// RecordJobCreated increments job creation counter
func (m *JobMetrics) RecordJobCreated(jobType model.JobType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobsCreated++
	m.jobsByType[jobType]++
	m.jobsByStatus[model.JobStatusPending]++
	m.lastUpdated = time.Now()
}

// RecordJobStatusChange moves one job between status buckets
func (m *JobMetrics) RecordJobStatusChange(oldStatus, newStatus model.JobStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if oldStatus != "" && m.jobsByStatus[oldStatus] > 0 {
		m.jobsByStatus[oldStatus]--
	}
	m.jobsByStatus[newStatus]++
	m.lastUpdated = time.Now()
}

// RecordJobCompleted records successful job completion
func (m *JobMetrics) RecordJobCompleted(jobType model.JobType, executionTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobsCompleted++
	m.totalExecutionTime += executionTime

	samples := append(m.samplesByType[jobType], executionTime)
	if len(samples) > maxSamplesPerType {
		samples = samples[1:]
	}
	m.samplesByType[jobType] = samples

	now := time.Now()
	m.lastCompleted[jobType] = now
	m.lastUpdated = now
}

// RecordJobFailed records job failure
func (m *JobMetrics) RecordJobFailed(jobType model.JobType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobsFailed++
	m.lastUpdated = time.Now()
}

// GetMetrics returns a copy of the current metrics
func (m *JobMetrics) GetMetrics() JobMetricsData {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data := JobMetricsData{
		JobsCreated:   m.jobsCreated,
		JobsCompleted: m.jobsCompleted,
		JobsFailed:    m.jobsFailed,
		SuccessRate:   m.successRateUnsafe(),
		JobsByType:    make(map[model.JobType]int64, len(m.jobsByType)),
		JobsByStatus:  make(map[model.JobStatus]int64, len(m.jobsByStatus)),
		LastCompleted: make(map[model.JobType]time.Time, len(m.lastCompleted)),
		LastUpdated:   m.lastUpdated,
	}
	if m.jobsCompleted > 0 {
		data.AverageExecutionTime = m.totalExecutionTime / time.Duration(m.jobsCompleted)
	}
	for k, v := range m.jobsByType {
		data.JobsByType[k] = v
	}
	for k, v := range m.jobsByStatus {
		data.JobsByStatus[k] = v
	}
	for k, v := range m.lastCompleted {
		data.LastCompleted[k] = v
	}
	return data
}

// GetAverageExecutionTimeByType averages the recent execution times of a job type
func (m *JobMetrics) GetAverageExecutionTimeByType(jobType model.JobType) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	samples := m.samplesByType[jobType]
	if len(samples) == 0 {
		return 0
	}

	var total time.Duration
	for _, d := range samples {
		total += d
	}
	return total / time.Duration(len(samples))
}

// GetSuccessRate returns the success rate (0.0 to 1.0)
func (m *JobMetrics) GetSuccessRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.successRateUnsafe()
}

func (m *JobMetrics) successRateUnsafe() float64 {
	finished := m.jobsCompleted + m.jobsFailed
	if finished == 0 {
		return 1.0 // No jobs yet
	}
	return float64(m.jobsCompleted) / float64(finished)
}

// GetCurrentWorkload returns the number of pending and running jobs
func (m *JobMetrics) GetCurrentWorkload() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.jobsByStatus[model.JobStatusPending] + m.jobsByStatus[model.JobStatusRunning]
}
