package engine

import (
	"context"
	"fmt"

	"github.com/jmylchreest/crawlhook/internal/models"
	"github.com/jmylchreest/crawlhook/internal/store"
)

// Dispatcher is the queue.Starter the shared JobQueue drives: one queue
// dispatches jobs of both kinds, routing each to the Crawler or the
// Playground engine by the job's recorded Kind. This keeps JobStore and
// JobQueue singular across the whole process, matching §2's component
// table (C4/C6 are described in the singular, not one per engine).
type Dispatcher struct {
	store      *store.JobStore
	crawler    *Crawler
	playground *Playground
}

// NewDispatcher returns a Dispatcher routing to the given engines.
func NewDispatcher(store *store.JobStore, crawler *Crawler, playground *Playground) *Dispatcher {
	return &Dispatcher{store: store, crawler: crawler, playground: playground}
}

// StartJob implements queue.Starter.
func (d *Dispatcher) StartJob(ctx context.Context, jobID string) error {
	job, err := d.store.Get(jobID)
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}
	switch job.Kind {
	case models.JobKindCrawl:
		return d.crawler.StartJob(ctx, jobID)
	case models.JobKindPlayground:
		return d.playground.StartJob(ctx, jobID)
	default:
		return fmt.Errorf("dispatcher: unknown job kind %q for job %s", job.Kind, jobID)
	}
}
