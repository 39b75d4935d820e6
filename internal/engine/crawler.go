package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/crawlhook/internal/eventbus"
	"github.com/jmylchreest/crawlhook/internal/models"
	"github.com/jmylchreest/crawlhook/internal/pagedriver"
	"github.com/jmylchreest/crawlhook/internal/pipeline"
	"github.com/jmylchreest/crawlhook/internal/plugins"
	"github.com/jmylchreest/crawlhook/internal/queue"
	"github.com/jmylchreest/crawlhook/internal/ratelimit"
	"github.com/jmylchreest/crawlhook/internal/robots"
	"github.com/jmylchreest/crawlhook/internal/sitemap"
	"github.com/jmylchreest/crawlhook/internal/store"
)

// Enqueuer is the subset of *queue.Queue the engines need, kept as an
// interface so this package doesn't need to know about queue internals.
type Enqueuer interface {
	Enqueue(jobID string) error
	HasCapacity() bool
}

// CrawlDefaults are the process-wide fallback values applied to any
// CrawlConfig field the caller left at its zero value.
type CrawlDefaults struct {
	MaxDepth             int
	MaxPages             int
	MaxRequestsPerMinute int
	MaxConcurrency       int
	PageTimeout          time.Duration
	RequestTimeout       time.Duration
}

// CrawlerDeps wires a Crawler's collaborators.
type CrawlerDeps struct {
	Store    *store.JobStore
	Bus      *eventbus.Bus
	Queue    Enqueuer
	Plugins  *plugins.Registry
	Driver   pagedriver.PageDriver
	Robots   *robots.Checker
	Logger   *slog.Logger
	Defaults CrawlDefaults
}

// Crawler is the crawl job engine of §4.1: given a starting URL, it
// discovers further URLs via the injected PageDriver and runs the
// plugin pipeline's beforeEach/evaluate/afterEach hooks over every page.
type Crawler struct {
	lifecycle
	queue    Enqueuer
	plugins  *plugins.Registry
	driver   pagedriver.PageDriver
	robots   *robots.Checker
	logger   *slog.Logger
	defaults CrawlDefaults
}

// NewCrawler returns a Crawler ready to accept CreateJob calls. The
// Queue field must be set (via SetQueue) before the first CreateJob if
// it wasn't supplied in deps — constructing the queue itself requires a
// Dispatcher, which requires this Crawler, so callers typically build
// the Crawler first with Queue left nil and call SetQueue once the
// queue exists.
func NewCrawler(deps CrawlerDeps) *Crawler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		lifecycle: lifecycle{store: deps.Store, bus: deps.Bus},
		queue:     deps.Queue,
		plugins:   deps.Plugins,
		driver:    deps.Driver,
		robots:    deps.Robots,
		logger:    logger.With("component", "crawler"),
		defaults:  deps.Defaults,
	}
}

// SetQueue wires the queue after construction, breaking the
// Crawler/Dispatcher/Queue construction cycle.
func (c *Crawler) SetQueue(q Enqueuer) { c.queue = q }

// CreateJob allocates a queued Job for cfg and hands it to the queue.
func (c *Crawler) CreateJob(cfg *models.CrawlConfig) (*models.Job, error) {
	if !c.queue.HasCapacity() {
		return nil, queue.ErrQueueFull
	}

	resolved := c.applyDefaults(cfg)
	now := time.Now()
	job := &models.Job{
		ID:     uuid.NewString(),
		Kind:   models.JobKindCrawl,
		Config: resolved,
		Progress: &models.Progress{
			Status:    models.JobStatusQueued,
			StartTime: now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	c.store.Insert(job)
	if err := c.queue.Enqueue(job.ID); err != nil {
		return job, fmt.Errorf("engine: enqueue crawl job %s: %w", job.ID, err)
	}
	return job, nil
}

func (c *Crawler) applyDefaults(in *models.CrawlConfig) *models.CrawlConfig {
	cfg := *in
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = c.defaults.MaxDepth
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = c.defaults.MaxPages
	}
	if cfg.MaxRequestsPerMinute == 0 {
		cfg.MaxRequestsPerMinute = c.defaults.MaxRequestsPerMinute
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = c.defaults.MaxConcurrency
	}
	if in.Timeout != nil {
		t := *in.Timeout
		cfg.Timeout = &t
	} else {
		cfg.Timeout = &models.TimeoutConfig{}
	}
	if cfg.Timeout.Page == 0 {
		cfg.Timeout.Page = int(c.defaults.PageTimeout.Milliseconds())
	}
	if cfg.Timeout.Request == 0 {
		cfg.Timeout.Request = int(c.defaults.RequestTimeout.Milliseconds())
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "crawlhookbot/1.0"
	}
	return &cfg
}

// StartJob runs the crawl to completion. It implements queue.Starter
// (via Dispatcher) and is also safe to call directly for tests.
func (c *Crawler) StartJob(ctx context.Context, jobID string) error {
	job, ran, err := c.beginRun(jobID)
	if err != nil {
		return fmt.Errorf("engine: start crawl job %s: %w", jobID, err)
	}
	if !ran {
		return nil // already running or terminal; idempotent no-op
	}

	cfg, ok := job.Config.(*models.CrawlConfig)
	if !ok {
		_, _ = c.fail(jobID, fmt.Errorf("engine: job %s has no crawl config", jobID))
		return fmt.Errorf("engine: job %s has no crawl config", jobID)
	}

	built := c.plugins.Build(cfg.Plugins)
	pl := pipeline.New(c.logger, built...)
	defer func() {
		for _, he := range pl.Destroy() {
			c.logger.Warn("crawler: plugin destroy failed", "plugin", he.PluginName, "error", he.Err)
		}
	}()

	for _, he := range pl.Initialize() {
		c.emitPluginError(jobID, he)
	}
	for _, he := range pl.BeforeCrawl(job) {
		c.emitPluginError(jobID, he)
	}

	if err := c.runCrawl(ctx, job, cfg, pl); err != nil {
		_, failErr := c.fail(jobID, err)
		if failErr != nil {
			c.logger.Error("crawler: failed to record job failure", "job_id", jobID, "error", failErr)
		}
		return err
	}

	for _, he := range pl.AfterCrawl(job) {
		c.emitPluginError(jobID, he)
	}

	if _, err := c.complete(jobID); err != nil {
		return fmt.Errorf("engine: complete crawl job %s: %w", jobID, err)
	}
	return nil
}

func (c *Crawler) emitPluginError(jobID string, he pipeline.HookError) {
	c.logger.Warn("crawler: plugin hook failed", "job_id", jobID, "plugin", he.PluginName, "error", he.Err)
	c.bus.Publish(eventbus.Event{Kind: eventbus.KindPluginError, JobID: jobID, PluginName: he.PluginName, Err: he.Err})
	c.recordPluginError(jobID, he.PluginName, he.Err)
}

// visitedSet is a concurrency-safe "seen normalized URL" set.
type visitedSet struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newVisitedSet() *visitedSet { return &visitedSet{seen: make(map[string]bool)} }

func (v *visitedSet) markIfNew(u string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.seen[u] {
		return false
	}
	v.seen[u] = true
	return true
}

// crawlState accumulates the mutable counters and per-plugin metric
// slices a running crawl needs, guarded by a single mutex since
// concurrent workers update it after every page.
type crawlState struct {
	mu              sync.Mutex
	pagesAnalyzed   int
	totalPages      int
	uniqueURLs      int
	skippedURLs     int
	failedURLs      int
	metricsByPlugin map[string][]any
	metricsFlat     []any
	sinceLastTick   int
}

// frontierItem is one URL awaiting a fetch, at the depth it was
// discovered.
type frontierItem struct {
	url   string
	depth int
}

func (c *Crawler) runCrawl(ctx context.Context, job *models.Job, cfg *models.CrawlConfig, pl *pipeline.Pipeline) error {
	limiter := ratelimit.New(cfg.MaxRequestsPerMinute)
	visited := newVisitedSet()
	state := &crawlState{metricsByPlugin: make(map[string][]any)}
	startHost := hostOf(cfg.StartURL)

	seeds := []string{cfg.StartURL}
	if cfg.SitemapURL != "" {
		urls, err := sitemap.Discover(ctx, nil, c.logger, cfg.SitemapURL)
		if err != nil {
			c.logger.Warn("crawler: sitemap discovery failed", "job_id", job.ID, "error", err)
		} else {
			seeds = append(seeds, urls...)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	// frontier decouples URL discovery from the fixed pool of fetch
	// workers below it: a worker drains the frontier and, once it
	// discovers further links, admits them back onto the same channel
	// instead of recursively spawning another bounded worker. The
	// earlier design called g.Go (itself under g.SetLimit(maxConcurrency))
	// from inside a running g.Go worker, so once every concurrency slot
	// was held by a worker blocked trying to spawn its own child fetch,
	// no slot was ever going to free up and g.Wait() hung forever.
	// admit() only ever enqueues a URL after claiming one of the
	// cfg.MaxPages slots counted by state.totalPages (it returns once that
	// count reaches the cap), so the channel never receives more than
	// cfg.MaxPages items and a send never blocks.
	frontier := make(chan frontierItem, cfg.MaxPages+len(seeds)+1)
	var pending sync.WaitGroup

	admit := func(rawURL string, depth int) {
		norm := normalizeURL(rawURL)
		if !visited.markIfNew(norm) {
			return
		}

		state.mu.Lock()
		if state.totalPages >= cfg.MaxPages {
			state.mu.Unlock()
			return
		}
		state.totalPages++
		state.mu.Unlock()

		if depth > cfg.MaxDepth {
			return
		}
		// §4.1's reference crawler restricts discovery to the start
		// host; cfg.URLFilter layers further restriction on top of
		// this, not instead of it.
		if startHost != "" && hostOf(norm) != startHost {
			state.mu.Lock()
			state.skippedURLs++
			state.mu.Unlock()
			return
		}
		if cfg.URLFilter != nil && !cfg.URLFilter(norm) {
			state.mu.Lock()
			state.skippedURLs++
			state.mu.Unlock()
			return
		}
		if cfg.RespectRobotsTxt && c.robots != nil && !c.robots.Allowed(gctx, norm, cfg.UserAgent) {
			state.mu.Lock()
			state.skippedURLs++
			state.mu.Unlock()
			return
		}

		pending.Add(1)
		frontier <- frontierItem{url: norm, depth: depth}
	}

	tickerDone := make(chan struct{})
	go c.progressTicker(gctx, job.ID, tickerDone)
	defer close(tickerDone)

	concurrency := cfg.MaxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			for item := range frontier {
				c.fetchPage(gctx, job, cfg, pl, state, limiter, item, admit)
				pending.Done()
			}
			return nil
		})
	}

	for _, s := range seeds {
		admit(s, 0)
	}
	go func() {
		pending.Wait()
		close(frontier)
	}()

	if err := g.Wait(); err != nil {
		return fmt.Errorf("engine: crawl run: %w", err)
	}

	state.mu.Lock()
	summary := pl.Summarize(state.metricsByPlugin)
	summary["duration"] = time.Since(job.Progress.StartTime).Seconds()
	summary["pagesAnalyzed"] = state.pagesAnalyzed
	summary["uniqueUrls"] = state.uniqueURLs
	summary["skippedUrls"] = state.skippedURLs
	summary["failedUrls"] = state.failedURLs
	metricsSnapshot := append([]any(nil), state.metricsFlat...)
	state.mu.Unlock()

	_, err := c.store.Update(job.ID, func(j *models.Job) {
		j.Result.Summary = summary
		j.Result.Metrics = metricsSnapshot
	})
	return err
}

// fetchPage fetches and analyzes a single frontier item, publishing the
// usual page lifecycle events, then admits the links it discovers as
// frontier items at depth+1. Runs inside one of runCrawl's fixed-size
// pool of workers; never spawns another worker itself.
func (c *Crawler) fetchPage(ctx context.Context, job *models.Job, cfg *models.CrawlConfig, pl *pipeline.Pipeline, state *crawlState, limiter *ratelimit.Bucket, item frontierItem, admit func(string, int)) {
	norm, depth := item.url, item.depth
	if err := limiter.Wait(ctx); err != nil {
		return
	}

	c.bus.Publish(eventbus.Event{Kind: eventbus.KindPageStart, JobID: job.ID, URL: norm})
	_, _ = c.store.Update(job.ID, func(j *models.Job) {
		j.Progress.CurrentURL = norm
		j.Progress.CurrentDepth = depth
	})

	pageTimeout := time.Duration(cfg.Timeout.Page) * time.Millisecond
	fetchCtx, cancel := context.WithTimeout(ctx, pageTimeout)
	res, err := c.driver.Fetch(fetchCtx, norm, pagedriver.FetchOptions{
		Timeout:   pageTimeout,
		UserAgent: cfg.UserAgent,
		Headers:   cfg.Headers,
	})
	cancel()

	if err != nil {
		state.mu.Lock()
		state.failedURLs++
		state.mu.Unlock()
		c.bus.Publish(eventbus.Event{Kind: eventbus.KindPageError, JobID: job.ID, URL: norm, Err: err})
		return
	}

	page := &pipeline.Page{URL: norm, StatusCode: res.StatusCode, Depth: depth, Doc: res.Doc, LoadTime: res.LoadTime}
	results := pl.RunPage(page)

	analysis := &models.PageAnalysis{
		URL:         norm,
		Title:       res.Title,
		Depth:       depth,
		StatusCode:  res.StatusCode,
		LoadTimeMs:  res.LoadTime.Milliseconds(),
		CompletedAt: time.Now(),
	}

	var tick bool
	state.mu.Lock()
	state.pagesAnalyzed++
	state.uniqueURLs++
	for _, r := range results {
		if r.Err == nil {
			state.metricsByPlugin[r.PluginName] = append(state.metricsByPlugin[r.PluginName], r.Metrics)
			state.metricsFlat = append(state.metricsFlat, map[string]any{r.PluginName: r.Metrics})
		}
	}
	state.sinceLastTick++
	if state.sinceLastTick >= 10 {
		state.sinceLastTick = 0
		tick = true
	}
	mirror := c.snapshotProgress(state)
	state.mu.Unlock()

	for _, r := range results {
		if r.Err != nil {
			c.emitPluginError(job.ID, pipeline.HookError{PluginName: r.PluginName, Err: r.Err})
			continue
		}
		c.bus.Publish(eventbus.Event{Kind: eventbus.KindPluginComplete, JobID: job.ID, PluginName: r.PluginName, Metrics: r.Metrics})
	}

	_, _ = c.store.Update(job.ID, func(j *models.Job) {
		j.Result.Pages = append(j.Result.Pages, analysis)
		j.Progress.PagesAnalyzed = mirror.PagesAnalyzed
		j.Progress.TotalPages = mirror.TotalPages
		j.Progress.UniqueURLs = mirror.UniqueURLs
		j.Progress.SkippedURLs = mirror.SkippedURLs
		j.Progress.FailedURLs = mirror.FailedURLs
	})
	c.bus.Publish(eventbus.Event{Kind: eventbus.KindPageComplete, JobID: job.ID, PageAnalysis: analysis})

	if tick {
		if updated, err := c.store.Get(job.ID); err == nil {
			c.bus.Publish(eventbus.Event{Kind: eventbus.KindProgress, JobID: job.ID, Job: updated})
		}
	}

	if res.Doc != nil {
		for _, link := range res.Links {
			admit(link, depth+1)
		}
	}
}

// hostOf returns the lowercased hostname of raw, or "" if raw doesn't
// parse to a URL with a host.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

type progressSnapshot struct {
	PagesAnalyzed, TotalPages, UniqueURLs, SkippedURLs, FailedURLs int
}

func (c *Crawler) snapshotProgress(s *crawlState) progressSnapshot {
	return progressSnapshot{
		PagesAnalyzed: s.pagesAnalyzed,
		TotalPages:    s.totalPages,
		UniqueURLs:    s.uniqueURLs,
		SkippedURLs:   s.skippedURLs,
		FailedURLs:    s.failedURLs,
	}
}

// progressTicker publishes a periodic progress event every 10 seconds
// while the crawl runs, per §4.1's "10-second periodic tick" clause.
func (c *Crawler) progressTicker(ctx context.Context, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if job, err := c.store.Get(jobID); err == nil {
				c.bus.Publish(eventbus.Event{Kind: eventbus.KindProgress, JobID: jobID, Job: job})
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// normalizeURL implements §4.1's visited-set normalization: lowercase
// host, strip default ports, drop fragments, preserve query and
// trailing slash exactly as given.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Host = strings.ToLower(u.Host)
	u.Scheme = strings.ToLower(u.Scheme)
	if host, port, ok := splitDefaultPort(u.Scheme, u.Host); ok {
		u.Host = host
		_ = port
	}
	u.Fragment = ""
	return u.String()
}

func splitDefaultPort(scheme, host string) (string, string, bool) {
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80"), "80", true
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443"), "443", true
	default:
		return host, "", false
	}
}
