package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/crawlhook/internal/eventbus"
	"github.com/jmylchreest/crawlhook/internal/models"
	"github.com/jmylchreest/crawlhook/internal/pipeline"
	"github.com/jmylchreest/crawlhook/internal/plugins"
	"github.com/jmylchreest/crawlhook/internal/queue"
	"github.com/jmylchreest/crawlhook/internal/store"
)

// PlaygroundDeps wires a Playground's collaborators.
type PlaygroundDeps struct {
	Store   *store.JobStore
	Bus     *eventbus.Bus
	Queue   Enqueuer
	Plugins *plugins.Registry
	Logger  *slog.Logger
}

// Playground is the plugin-pipeline engine of §4.1's Playground variant:
// it runs the pipeline's before/execute/after hooks exactly once per job
// against a single opaque input, reusing the same job/progress/webhook
// machinery as Crawler.
type Playground struct {
	lifecycle
	queue   Enqueuer
	plugins *plugins.Registry
	logger  *slog.Logger
}

// NewPlayground returns a Playground ready to accept CreateJob calls.
func NewPlayground(deps PlaygroundDeps) *Playground {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Playground{
		lifecycle: lifecycle{store: deps.Store, bus: deps.Bus},
		queue:     deps.Queue,
		plugins:   deps.Plugins,
		logger:    logger.With("component", "playground"),
	}
}

// SetQueue wires the queue after construction, breaking the
// Playground/Dispatcher/Queue construction cycle.
func (p *Playground) SetQueue(q Enqueuer) { p.queue = q }

// CreateJob allocates a queued Job for cfg and hands it to the queue.
// Per §9's resolved open question, CreateJob only creates and enqueues —
// it never runs inline. This is the asynchronous Playground contract of
// §6: CreateJob followed by the normal background queue dispatch.
func (p *Playground) CreateJob(cfg *models.PlaygroundConfig) (*models.Job, error) {
	if !p.queue.HasCapacity() {
		return nil, queue.ErrQueueFull
	}

	job := newPlaygroundJob(cfg)
	p.store.Insert(job)
	if err := p.queue.Enqueue(job.ID); err != nil {
		return job, fmt.Errorf("engine: enqueue playground job %s: %w", job.ID, err)
	}
	return job, nil
}

// CreateSyncJob allocates a Job for cfg without enqueuing it. It exists
// for RunSync: the background dispatcher never sees this job, so there
// is no race between it and the caller's own StartJob for who runs the
// job first. It still honors the queue's capacity bound as a backpressure
// signal, matching CreateJob's admission check, even though the job
// itself never occupies a queue slot.
func (p *Playground) CreateSyncJob(cfg *models.PlaygroundConfig) (*models.Job, error) {
	if !p.queue.HasCapacity() {
		return nil, queue.ErrQueueFull
	}

	job := newPlaygroundJob(cfg)
	p.store.Insert(job)
	return job, nil
}

func newPlaygroundJob(cfg *models.PlaygroundConfig) *models.Job {
	now := time.Now()
	return &models.Job{
		ID:   uuid.NewString(),
		Kind: models.JobKindPlayground,
		Config: &models.PlaygroundConfig{
			Input:   cfg.Input,
			Retries: cfg.Retries,
			Plugins: cfg.Plugins,
			Webhook: cfg.Webhook,
			Async:   cfg.Async,
		},
		Progress: &models.Progress{
			Status:    models.JobStatusQueued,
			StartTime: now,
		},
		MaxRetries: cfg.Retries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// RunSync runs a job created by CreateSyncJob inline and blocks until it
// reaches a terminal state, returning the final Job — the synchronous
// Playground contract of §6.
func (p *Playground) RunSync(ctx context.Context, jobID string) (*models.Job, error) {
	if err := p.StartJob(ctx, jobID); err != nil {
		return nil, err
	}
	return p.store.Get(jobID)
}

// StartJob runs the pipeline once against the job's input. It implements
// queue.Starter (via Dispatcher).
func (p *Playground) StartJob(ctx context.Context, jobID string) error {
	job, ran, err := p.beginRun(jobID)
	if err != nil {
		return fmt.Errorf("engine: start playground job %s: %w", jobID, err)
	}
	if !ran {
		return nil
	}

	cfg, ok := job.Config.(*models.PlaygroundConfig)
	if !ok {
		_, _ = p.fail(jobID, fmt.Errorf("engine: job %s has no playground config", jobID))
		return fmt.Errorf("engine: job %s has no playground config", jobID)
	}

	built := p.plugins.Build(cfg.Plugins)
	pl := pipeline.New(p.logger, built...)
	defer func() {
		for _, he := range pl.Destroy() {
			p.logger.Warn("playground: plugin destroy failed", "plugin", he.PluginName, "error", he.Err)
		}
	}()

	for _, he := range pl.Initialize() {
		p.emitPluginError(jobID, he)
	}

	pctx := &pipeline.Context{
		Context:   ctx,
		JobID:     jobID,
		Input:     cfg.Input,
		StartTime: job.Progress.StartTime,
	}

	metricsByPlugin := make(map[string][]any)
	var metrics []any
	completedPlugins := make([]string, 0, len(pl.Names()))

	for _, name := range pl.Names() {
		_, _ = p.store.Update(jobID, func(j *models.Job) {
			j.Progress.CurrentPlugin = name
		})
		p.bus.Publish(eventbus.Event{Kind: eventbus.KindPluginStart, JobID: jobID, PluginName: name})
	}

	results := pl.RunOnce(pctx)
	for _, r := range results {
		if r.Err != nil {
			p.emitPluginError(jobID, pipeline.HookError{PluginName: r.PluginName, Err: r.Err})
			continue
		}
		metricsByPlugin[r.PluginName] = append(metricsByPlugin[r.PluginName], r.Metrics)
		metrics = append(metrics, map[string]any{r.PluginName: r.Metrics})
		completedPlugins = append(completedPlugins, r.PluginName)

		p.bus.Publish(eventbus.Event{Kind: eventbus.KindPluginComplete, JobID: jobID, PluginName: r.PluginName, Metrics: r.Metrics})
		_, _ = p.store.Update(jobID, func(j *models.Job) {
			j.Progress.CompletedPlugins = append(j.Progress.CompletedPlugins, r.PluginName)
		})
		if updated, err := p.store.Get(jobID); err == nil {
			p.bus.Publish(eventbus.Event{Kind: eventbus.KindProgress, JobID: jobID, Job: updated})
		}
	}

	summary := pl.Summarize(metricsByPlugin)
	summary["duration"] = time.Since(job.Progress.StartTime).Seconds()
	summary["completedPlugins"] = completedPlugins

	_, err = p.store.Update(jobID, func(j *models.Job) {
		j.Result.Metrics = metrics
		j.Result.Summary = summary
		j.Progress.CurrentPlugin = ""
	})
	if err != nil {
		return err
	}

	if _, err := p.complete(jobID); err != nil {
		return fmt.Errorf("engine: complete playground job %s: %w", jobID, err)
	}
	return nil
}

func (p *Playground) emitPluginError(jobID string, he pipeline.HookError) {
	p.logger.Warn("playground: plugin hook failed", "job_id", jobID, "plugin", he.PluginName, "error", he.Err)
	p.bus.Publish(eventbus.Event{Kind: eventbus.KindPluginError, JobID: jobID, PluginName: he.PluginName, Err: he.Err})
	p.recordPluginError(jobID, he.PluginName, he.Err)
}
