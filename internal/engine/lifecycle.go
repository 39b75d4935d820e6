// Package engine implements the Crawler and Playground job engines of
// §4.1: job lifecycle control, pipeline orchestration, and event
// emission shared across both job kinds — grounded on the teacher's
// JobService (internal/service/job_service.go)'s
// createJobRecord/markJobRunning/handleJobSuccess/handleJobFailure
// lifecycle, generalized from a single synchronous RunJob entry point
// to the spec's queued CreateJob/StartJob/FailJob split.
package engine

import (
	"errors"
	"time"

	"github.com/jmylchreest/crawlhook/internal/eventbus"
	"github.com/jmylchreest/crawlhook/internal/models"
	"github.com/jmylchreest/crawlhook/internal/store"
)

// ErrJobNotQueued reports that a job is not currently queued (already
// running, or terminal). StartJob does not return it: starting a job that
// has left "queued" is a no-op that returns nil, which is what makes §6's
// `POST .../jobs/:id/start` route idempotent.
var ErrJobNotQueued = errors.New("engine: job is not queued")

// lifecycle holds the store/bus pair shared by both engine kinds and
// implements the three state transitions every job goes through,
// regardless of whether it is a crawl or a playground run.
type lifecycle struct {
	store *store.JobStore
	bus   *eventbus.Bus
}

// beginRun transitions a queued job to running and initializes its
// Result. It is a no-op (ran=false) if the job was not queued — either
// because it is already running or because it reached a terminal state
// (store.Update itself no-ops terminal jobs).
func (l *lifecycle) beginRun(jobID string) (job *models.Job, ran bool, err error) {
	job, err = l.store.Update(jobID, func(j *models.Job) {
		if j.Progress.Status != models.JobStatusQueued {
			return
		}
		ran = true
		j.Progress.Status = models.JobStatusRunning
		j.Result = models.NewResult()
	})
	if err != nil {
		return nil, false, err
	}
	if ran {
		l.bus.Publish(eventbus.Event{Kind: eventbus.KindJobStart, JobID: jobID, Job: job})
	}
	return job, ran, nil
}

// complete transitions a running job to completed. A no-op on a job
// that is already terminal.
func (l *lifecycle) complete(jobID string) (*models.Job, error) {
	now := time.Now()
	var ran bool
	job, err := l.store.Update(jobID, func(j *models.Job) {
		ran = true
		j.Progress.Status = models.JobStatusCompleted
		j.Progress.EndTime = &now
	})
	if err != nil {
		return nil, err
	}
	if ran {
		l.bus.Publish(eventbus.Event{Kind: eventbus.KindJobComplete, JobID: jobID, Job: job})
	}
	return job, nil
}

// fail transitions a job to failed, recording runErr on both Progress
// and Result. Idempotent: a second call on an already-terminal job is a
// no-op and emits no duplicate event, per §4.1's FailJob contract.
func (l *lifecycle) fail(jobID string, runErr error) (*models.Job, error) {
	now := time.Now()
	var ran bool
	job, err := l.store.Update(jobID, func(j *models.Job) {
		ran = true
		j.Progress.Status = models.JobStatusFailed
		j.Progress.EndTime = &now
		j.Progress.Error = runErr.Error()
		if j.Result == nil {
			j.Result = models.NewResult()
		}
		j.Result.Error = &models.ResultError{Message: runErr.Error(), Timestamp: now}
	})
	if err != nil {
		return nil, err
	}
	if ran {
		l.bus.Publish(eventbus.Event{Kind: eventbus.KindJobError, JobID: jobID, Job: job, Err: runErr})
	}
	return job, nil
}

// recordPluginError records a plugin failure on the job's result.Error
// field (last writer wins, per §4.2/§7) without touching job status.
func (l *lifecycle) recordPluginError(jobID, pluginName string, pluginErr error) {
	_, _ = l.store.Update(jobID, func(j *models.Job) {
		if j.Result == nil {
			j.Result = models.NewResult()
		}
		j.Result.Error = &models.ResultError{
			Message:    pluginErr.Error(),
			PluginName: pluginName,
			Timestamp:  time.Now(),
		}
	})
}

func (l *lifecycle) GetJob(id string) (*models.Job, error) {
	return l.store.Get(id)
}

func (l *lifecycle) GetProgress(id string) (*models.Progress, error) {
	job, err := l.store.Get(id)
	if err != nil {
		return nil, err
	}
	return job.Progress, nil
}

func (l *lifecycle) FailJob(id string, runErr error) (*models.Job, error) {
	return l.fail(id, runErr)
}
