// Package pipeline implements the plugin pipeline shared by the Crawler
// and Playground engines: an ordered, filterable set of plugins run
// through lifecycle hooks with per-plugin error isolation and metric
// aggregation, per §4.2.
//
// A plugin's capability set is modeled as a set of small optional
// interfaces a concrete plugin type may implement alongside the required
// Plugin interface — the same "ask, don't assume" idiom as io.Closer:
// the pipeline type-asserts for each optional hook before calling it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/crawlhook/internal/models"
)

// Page is the per-page handoff from the crawl engine to the pipeline: a
// driver-agnostic view of one fetched page.
type Page struct {
	URL        string
	StatusCode int
	Depth      int
	Doc        any // *goquery.Document for the default driver; opaque otherwise
	LoadTime   time.Duration
}

// Context is the single-input handoff used by the Playground engine.
type Context struct {
	context.Context
	JobID     string
	Input     any
	Output    any
	StartTime time.Time
	Storage   Storage
}

// Plugin is the capability every pipeline entry must implement.
type Plugin interface {
	Name() string
	Enabled() bool
}

// Optional hook interfaces. A plugin implements whichever subset applies;
// the pipeline checks with a type assertion before calling each one.
type (
	Initializer   interface{ Initialize() error }
	BeforeCrawler interface{ BeforeCrawl(job *models.Job) error }
	BeforeEacher  interface{ BeforeEach(page *Page) error }
	Evaluator     interface {
		Evaluate(page *Page, loadTime time.Duration) (any, error)
	}
	Beforer  interface{ Before(ctx *Context) error }
	Executor interface {
		Execute(ctx *Context) (any, error)
	}
	Afterer      interface{ After(ctx *Context) error }
	AfterEacher  interface{ AfterEach(page *Page) error }
	AfterCrawler interface{ AfterCrawl(job *models.Job) error }
	Summarizer   interface {
		Summarize(metrics []any) (any, error)
	}
	Destroyer interface{ Destroy() error }
)

// Storage is the per-plugin keyed store handed to a plugin at
// construction, isolated from every other plugin's storage.
type Storage interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
	Clear()
}

// mapStorage is the default in-process Storage: a plain map with no
// persistence guarantee across process restarts, matching §4.2.
type mapStorage struct {
	data map[string]any
}

// NewMapStorage returns the default in-memory Storage implementation.
func NewMapStorage() Storage {
	return &mapStorage{data: make(map[string]any)}
}

func (m *mapStorage) Get(key string) (any, bool) { v, ok := m.data[key]; return v, ok }
func (m *mapStorage) Set(key string, value any)  { m.data[key] = value }
func (m *mapStorage) Delete(key string)          { delete(m.data, key) }
func (m *mapStorage) Clear()                     { m.data = make(map[string]any) }

// entry pairs a plugin with its isolated storage.
type entry struct {
	plugin  Plugin
	storage Storage
}

// HookError records the single error produced by one plugin's hook call,
// for the engine to emit as a pluginError event.
type HookError struct {
	PluginName string
	Err        error
}

// Pipeline runs an ordered set of plugins with error isolation, in
// configuration order, over either repeated Pages (crawl) or a single
// Context (playground).
type Pipeline struct {
	entries []*entry
	logger  *slog.Logger
}

// New constructs a Pipeline over plugins in the given order, each given
// its own Storage. Plugins whose Enabled() is false are kept in the list
// (so Destroy still reaches them) but are skipped by every run method.
func New(logger *slog.Logger, plugins ...Plugin) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	entries := make([]*entry, 0, len(plugins))
	for _, p := range plugins {
		entries = append(entries, &entry{plugin: p, storage: NewMapStorage()})
	}
	return &Pipeline{entries: entries, logger: logger.With("component", "pipeline")}
}

// Filter returns a new Pipeline containing only the entries whose plugin
// name is in names. An empty/nil names means "no filter" (all plugins).
// The engines do not call it: they select plugins by name when building
// the pipeline, through plugins.Registry.Build.
func (p *Pipeline) Filter(names []string) *Pipeline {
	if len(names) == 0 {
		return p
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	filtered := &Pipeline{logger: p.logger}
	for _, e := range p.entries {
		if want[e.plugin.Name()] {
			filtered.entries = append(filtered.entries, e)
		}
	}
	return filtered
}

// Names returns the plugin names in pipeline order.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.entries))
	for _, e := range p.entries {
		names = append(names, e.plugin.Name())
	}
	return names
}

// Initialize calls Initialize on every enabled plugin that implements it.
// The engines build a fresh Pipeline per job and call this once on it, at
// the start of that job's run.
func (p *Pipeline) Initialize() []HookError {
	var errs []HookError
	for _, e := range p.entries {
		if !e.plugin.Enabled() {
			continue
		}
		if init, ok := e.plugin.(Initializer); ok {
			if err := safeCall(func() error { return init.Initialize() }); err != nil {
				errs = append(errs, HookError{e.plugin.Name(), err})
			}
		}
	}
	return errs
}

// Destroy calls Destroy on every plugin that implements it. The engines
// call it when a job's run ends.
func (p *Pipeline) Destroy() []HookError {
	var errs []HookError
	for _, e := range p.entries {
		if d, ok := e.plugin.(Destroyer); ok {
			if err := safeCall(func() error { return d.Destroy() }); err != nil {
				errs = append(errs, HookError{e.plugin.Name(), err})
			}
		}
	}
	return errs
}

// BeforeCrawl runs each enabled plugin's BeforeCrawl hook, if implemented.
func (p *Pipeline) BeforeCrawl(job *models.Job) []HookError {
	var errs []HookError
	for _, e := range p.entries {
		if !e.plugin.Enabled() {
			continue
		}
		if h, ok := e.plugin.(BeforeCrawler); ok {
			if err := safeCall(func() error { return h.BeforeCrawl(job) }); err != nil {
				errs = append(errs, HookError{e.plugin.Name(), err})
			}
		}
	}
	return errs
}

// AfterCrawl runs each enabled plugin's AfterCrawl hook, if implemented.
func (p *Pipeline) AfterCrawl(job *models.Job) []HookError {
	var errs []HookError
	for _, e := range p.entries {
		if !e.plugin.Enabled() {
			continue
		}
		if h, ok := e.plugin.(AfterCrawler); ok {
			if err := safeCall(func() error { return h.AfterCrawl(job) }); err != nil {
				errs = append(errs, HookError{e.plugin.Name(), err})
			}
		}
	}
	return errs
}

// PageResult is the per-plugin outcome of running one page through the
// pipeline's evaluate stage.
type PageResult struct {
	PluginName string
	Metrics    any
	Err        error
}

// RunPage runs beforeEach -> evaluate -> afterEach for every enabled
// plugin that implements Evaluator, in pipeline order, over one page. A
// throw in any hook is isolated to that plugin: it yields a nil metric
// and a recorded error, and the pipeline continues with the next plugin.
func (p *Pipeline) RunPage(page *Page) []PageResult {
	results := make([]PageResult, 0, len(p.entries))
	for _, e := range p.entries {
		if !e.plugin.Enabled() {
			continue
		}
		eval, ok := e.plugin.(Evaluator)
		if !ok {
			continue
		}

		if h, ok := e.plugin.(BeforeEacher); ok {
			if err := safeCall(func() error { return h.BeforeEach(page) }); err != nil {
				results = append(results, PageResult{PluginName: e.plugin.Name(), Err: err})
				continue
			}
		}

		metrics, err := safeEvaluate(eval, page)
		if err == nil {
			if h, ok := e.plugin.(AfterEacher); ok {
				if afterErr := safeCall(func() error { return h.AfterEach(page) }); afterErr != nil {
					err = afterErr
				}
			}
		}

		results = append(results, PageResult{PluginName: e.plugin.Name(), Metrics: metrics, Err: err})
	}
	return results
}

// RunOnce runs before -> execute -> after for every enabled plugin that
// implements Executor, strictly in configuration order, once per job —
// the Playground equivalent of RunPage.
func (p *Pipeline) RunOnce(ctx *Context) []PageResult {
	results := make([]PageResult, 0, len(p.entries))
	for _, e := range p.entries {
		if !e.plugin.Enabled() {
			continue
		}
		exec, ok := e.plugin.(Executor)
		if !ok {
			continue
		}

		if h, ok := e.plugin.(Beforer); ok {
			if err := safeCall(func() error { return h.Before(ctx) }); err != nil {
				results = append(results, PageResult{PluginName: e.plugin.Name(), Err: err})
				continue
			}
		}

		metrics, err := safeExecute(exec, ctx)
		if err == nil {
			if h, ok := e.plugin.(Afterer); ok {
				if afterErr := safeCall(func() error { return h.After(ctx) }); afterErr != nil {
					err = afterErr
				}
			}
		}

		results = append(results, PageResult{PluginName: e.plugin.Name(), Metrics: metrics, Err: err})
	}
	return results
}

// Summarize calls Summarize on every enabled plugin implementing it,
// passing the ordered list of that plugin's accumulated metrics. A
// throwing summarize is logged and omitted — other plugins' summaries
// are unaffected.
func (p *Pipeline) Summarize(metricsByPlugin map[string][]any) map[string]any {
	summary := make(map[string]any)
	for _, e := range p.entries {
		if !e.plugin.Enabled() {
			continue
		}
		s, ok := e.plugin.(Summarizer)
		if !ok {
			continue
		}
		result, err := safeSummarize(s, metricsByPlugin[e.plugin.Name()])
		if err != nil {
			p.logger.Warn("plugin summarize failed", "plugin", e.plugin.Name(), "error", err)
			continue
		}
		summary[e.plugin.Name()] = result
	}
	return summary
}

// StorageFor returns the isolated Storage for the named plugin, or nil if
// no such plugin is in this pipeline.
func (p *Pipeline) StorageFor(name string) Storage {
	for _, e := range p.entries {
		if e.plugin.Name() == name {
			return e.storage
		}
	}
	return nil
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func safeEvaluate(eval Evaluator, page *Page) (metrics any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return eval.Evaluate(page, page.LoadTime)
}

func safeExecute(exec Executor, ctx *Context) (metrics any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return exec.Execute(ctx)
}

func safeSummarize(s Summarizer, metrics []any) (summary any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Summarize(metrics)
}
