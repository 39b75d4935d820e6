// Package models defines the domain types shared by the job engine, queue,
// plugin pipeline and webhook emitter: Job, Progress, Result and their
// supporting enums.
package models

import "time"

// JobKind distinguishes a crawl job from a Playground job. Both share the
// same lifecycle machinery; only the pipeline driver and the Progress
// fields that get populated differ.
type JobKind string

const (
	JobKindCrawl      JobKind = "crawl"
	JobKindPlayground JobKind = "playground"
)

// JobStatus is the lifecycle state of a Job. Transitions are strictly
// queued -> running -> (completed|failed); completed and failed are
// terminal.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ResultError records the single error surfaced on a job's Result, if any.
// Last writer wins: a later plugin error overwrites an earlier one.
type ResultError struct {
	Message    string    `json:"message"`
	PluginName string    `json:"pluginName,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Result accumulates per-page/per-plugin metrics and their aggregated
// summaries for a single job run. It is absent while status=queued and
// exists (possibly empty) from the moment a run begins.
type Result struct {
	// Metrics is an ordered list of per-(page,plugin) (crawl) or per-run
	// (playground) entries, each an opaque JSON-serializable value keyed
	// by the plugin name that produced it — e.g.
	// []any{map[string]any{"reverse": map[string]any{...}}}, matching
	// §8 scenario 1's literal `result.metrics=[{reverse:{...}}]` shape.
	Metrics []any `json:"metrics"`

	// Summary is keyed by plugin name, populated once per job from that
	// plugin's Summarize hook (if implemented). The engines also add
	// run-level keys alongside the plugin entries ("duration", plus
	// "completedPlugins" for playground jobs or the URL counters for
	// crawl jobs).
	Summary map[string]any `json:"summary,omitempty"`

	// Pages holds one PageAnalysis per visited crawl page (crawl jobs
	// only; always empty for Playground jobs).
	Pages []*PageAnalysis `json:"pages,omitempty"`

	// Error is the most recently recorded plugin/run error, if any.
	Error *ResultError `json:"error,omitempty"`
}

// NewResult returns an initialized, empty Result ready to accumulate
// metrics.
func NewResult() *Result {
	return &Result{
		Summary: make(map[string]any),
	}
}

// PageAnalysis is the per-page record produced by a crawl job: the page's
// fetch outcome. The plugins' metrics for the page are not stored here;
// they go to Result.Metrics.
type PageAnalysis struct {
	URL         string         `json:"url"`
	Title       string         `json:"title,omitempty"`
	Depth       int            `json:"depth"`
	StatusCode  int            `json:"statusCode,omitempty"`
	LoadTimeMs  int64          `json:"loadTimeMs"`
	WordCount   int            `json:"wordCount,omitempty"`
	Error       string         `json:"error,omitempty"`
	DiscoveredAt time.Time     `json:"discoveredAt"`
	CompletedAt  time.Time     `json:"completedAt"`
}

// Progress is the observable status snapshot attached to a Job.
type Progress struct {
	Status    JobStatus  `json:"status"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Error     string     `json:"error,omitempty"`

	// Crawl-specific fields.
	PagesAnalyzed int      `json:"pagesAnalyzed,omitempty"`
	TotalPages    int      `json:"totalPages,omitempty"`
	CurrentURL    string   `json:"currentUrl,omitempty"`
	CurrentDepth  int      `json:"currentDepth,omitempty"`
	UniqueURLs    int      `json:"uniqueUrls,omitempty"`
	SkippedURLs   int      `json:"skippedUrls,omitempty"`
	FailedURLs    int      `json:"failedUrls,omitempty"`

	// Playground-specific fields.
	CurrentPlugin    string   `json:"currentPlugin,omitempty"`
	CompletedPlugins []string `json:"completedPlugins,omitempty"`
}

// ElapsedTime returns the duration since StartTime, or since StartTime
// until EndTime if the job has reached a terminal state. It is computed on
// read, never stored, per the job's "no field changes after terminal"
// invariant.
func (p *Progress) ElapsedTime(now time.Time) time.Duration {
	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return now.Sub(p.StartTime)
}

// Clone returns a deep-enough copy of Progress for copy-on-write handoff to
// readers (see store.JobStore).
func (p *Progress) Clone() *Progress {
	if p == nil {
		return nil
	}
	c := *p
	if p.EndTime != nil {
		t := *p.EndTime
		c.EndTime = &t
	}
	if p.CompletedPlugins != nil {
		c.CompletedPlugins = append([]string(nil), p.CompletedPlugins...)
	}
	return &c
}

// Job is the primary entity: one per client request, created by
// engine.CreateJob and mutated only by the engine and its pipeline through
// a serialized update path (see store.JobStore).
type Job struct {
	ID         string    `json:"id"`
	Kind       JobKind   `json:"kind"`
	Config     any       `json:"config"`
	Progress   *Progress `json:"progress"`
	Result     *Result   `json:"result,omitempty"`
	Priority   int       `json:"priority"`
	Retries    int       `json:"retries"`
	MaxRetries int       `json:"maxRetries"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Clone returns a shallow-ish deep copy of the Job suitable for handing to
// a reader without risking a torn read while the engine mutates the
// original. Config is copied by reference (treated as immutable once
// frozen at CreateJob time).
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Progress = j.Progress.Clone()
	if j.Result != nil {
		r := *j.Result
		if j.Result.Metrics != nil {
			r.Metrics = append([]any(nil), j.Result.Metrics...)
		}
		if j.Result.Summary != nil {
			r.Summary = make(map[string]any, len(j.Result.Summary))
			for k, v := range j.Result.Summary {
				r.Summary[k] = v
			}
		}
		if j.Result.Pages != nil {
			r.Pages = append([]*PageAnalysis(nil), j.Result.Pages...)
		}
		if j.Result.Error != nil {
			e := *j.Result.Error
			r.Error = &e
		}
		c.Result = &r
	}
	return &c
}
