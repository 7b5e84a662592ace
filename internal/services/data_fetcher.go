package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/player-valuation/internal/metrics"
)

// Job statuses
const (
	JobScheduled = "scheduled"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// ErrJobRunning is returned by RunNow when the previous run has not finished
var ErrJobRunning = errors.New("job already running")

// DataFetcherService runs the background refresh jobs on cron schedules
type DataFetcherService struct {
	logger  *logrus.Logger
	metrics *metrics.Recorder
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	mu        sync.RWMutex
	jobs      map[string]JobInfo
	funcs     map[string]func(context.Context) error
	isRunning bool
}

// JobInfo represents information about a scheduled job
type JobInfo struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Schedule   string        `json:"schedule"`
	LastRun    time.Time     `json:"last_run"`
	NextRun    time.Time     `json:"next_run"`
	Status     string        `json:"status"`
	RunCount   int           `json:"run_count"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Duration   time.Duration `json:"duration"`
	IsEnabled  bool          `json:"is_enabled"`

	entryID cron.EntryID
}

// NewDataFetcherService creates the scheduler. Schedules use six fields, seconds first.
// timeout bounds each job run.
func NewDataFetcherService(recorder *metrics.Recorder, logger *logrus.Logger, timeout time.Duration) *DataFetcherService {
	ctx, cancel := context.WithCancel(context.Background())
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &DataFetcherService{
		logger:  logger,
		metrics: recorder,
		cron:    cron.New(cron.WithSeconds(), cron.WithLogger(cron.VerbosePrintfLogger(logger))),
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
		jobs:    make(map[string]JobInfo),
		funcs:   make(map[string]func(context.Context) error),
	}
}

// AddJob registers a job. An empty schedule registers it for manual runs only.
func (dfs *DataFetcherService) AddJob(id, schedule, name string, jobFunc func(context.Context) error) error {
	dfs.mu.Lock()
	defer dfs.mu.Unlock()

	if _, exists := dfs.jobs[id]; exists {
		return fmt.Errorf("job %s already registered", id)
	}

	job := JobInfo{
		ID:        id,
		Name:      name,
		Schedule:  schedule,
		Status:    JobScheduled,
		IsEnabled: schedule != "",
	}

	if schedule != "" {
		entryID, err := dfs.cron.AddFunc(schedule, func() {
			dfs.runJob(id)
		})
		if err != nil {
			return fmt.Errorf("failed to add job %s: %w", id, err)
		}
		job.entryID = entryID
		job.NextRun = dfs.cron.Entry(entryID).Next
	}

	dfs.jobs[id] = job
	dfs.funcs[id] = jobFunc

	dfs.logger.WithFields(logrus.Fields{
		"component": "data_fetcher",
		"job_id":    id,
		"job_name":  name,
		"schedule":  schedule,
	}).Info("Scheduled job added")
	return nil
}

// Start starts the cron scheduler
func (dfs *DataFetcherService) Start() error {
	dfs.mu.Lock()
	defer dfs.mu.Unlock()

	if dfs.isRunning {
		return fmt.Errorf("data fetcher service is already running")
	}

	dfs.cron.Start()
	dfs.isRunning = true

	dfs.logger.WithField("component", "data_fetcher").Info("DataFetcherService started successfully")
	return nil
}

// Stop halts scheduling, cancels running jobs and waits for them to return
func (dfs *DataFetcherService) Stop() {
	dfs.mu.Lock()
	if !dfs.isRunning {
		dfs.mu.Unlock()
		dfs.cancel()
		return
	}
	dfs.isRunning = false
	dfs.mu.Unlock()

	dfs.cancel()
	<-dfs.cron.Stop().Done()

	dfs.logger.WithField("component", "data_fetcher").Info("DataFetcherService stopped")
}

// RunNow executes a job synchronously, outside its schedule
func (dfs *DataFetcherService) RunNow(id string) (JobInfo, error) {
	dfs.mu.RLock()
	_, exists := dfs.funcs[id]
	dfs.mu.RUnlock()
	if !exists {
		return JobInfo{}, fmt.Errorf("unknown job %q", id)
	}

	if !dfs.runJob(id) {
		job, _ := dfs.GetJob(id)
		return job, fmt.Errorf("%w: %s", ErrJobRunning, id)
	}

	job, _ := dfs.GetJob(id)
	if job.Status == JobFailed {
		return job, fmt.Errorf("job %s failed: %s", id, job.LastError)
	}
	return job, nil
}

// GetJob returns one job's info
func (dfs *DataFetcherService) GetJob(id string) (JobInfo, bool) {
	dfs.mu.RLock()
	defer dfs.mu.RUnlock()
	job, ok := dfs.jobs[id]
	return job, ok
}

// GetJobs returns every job sorted by ID
func (dfs *DataFetcherService) GetJobs() []JobInfo {
	dfs.mu.RLock()
	defer dfs.mu.RUnlock()

	jobs := make([]JobInfo, 0, len(dfs.jobs))
	for _, job := range dfs.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

// runJob executes a job with error handling and metrics. It reports false when the run was skipped.
func (dfs *DataFetcherService) runJob(id string) bool {
	dfs.mu.Lock()
	job, exists := dfs.jobs[id]
	jobFunc := dfs.funcs[id]
	if !exists || jobFunc == nil {
		dfs.mu.Unlock()
		return false
	}
	if job.Status == JobRunning {
		dfs.mu.Unlock()
		dfs.logger.WithFields(logrus.Fields{
			"component": "data_fetcher",
			"job_id":    id,
		}).Warn("Job still running, skipping this run")
		return false
	}

	job.Status = JobRunning
	job.LastRun = time.Now()
	job.RunCount++
	dfs.jobs[id] = job
	dfs.mu.Unlock()

	logger := dfs.logger.WithFields(logrus.Fields{
		"component": "data_fetcher",
		"job_id":    id,
		"job_name":  job.Name,
		"run_count": job.RunCount,
	})
	logger.Info("Starting scheduled job")
	startTime := time.Now()

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("panic: %v", r)
			}
		}()
		ctx, cancel := context.WithTimeout(dfs.ctx, dfs.timeout)
		defer cancel()
		runErr = jobFunc(ctx)
	}()

	duration := time.Since(startTime)
	if runErr != nil {
		logger.WithError(runErr).WithField("duration", duration).Error("Job failed")
		dfs.updateJobStatus(id, JobFailed, runErr.Error(), duration)
		dfs.metrics.RecordJobRun(id, JobFailed)
		return true
	}

	logger.WithField("duration", duration).Info("Job completed successfully")
	dfs.updateJobStatus(id, JobCompleted, "", duration)
	dfs.metrics.RecordJobRun(id, JobCompleted)
	return true
}

// updateJobStatus updates the status of a job
func (dfs *DataFetcherService) updateJobStatus(id, status, errorMsg string, duration time.Duration) {
	dfs.mu.Lock()
	defer dfs.mu.Unlock()

	job, exists := dfs.jobs[id]
	if !exists {
		return
	}

	job.Status = status
	job.Duration = duration
	if errorMsg != "" {
		job.ErrorCount++
		job.LastError = errorMsg
	}
	if job.entryID != 0 {
		job.NextRun = dfs.cron.Entry(job.entryID).Next
	}
	dfs.jobs[id] = job
}
