package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/crawlhook/internal/eventbus"
	"github.com/jmylchreest/crawlhook/internal/models"
	"github.com/jmylchreest/crawlhook/internal/pagedriver"
	"github.com/jmylchreest/crawlhook/internal/plugins"
	"github.com/jmylchreest/crawlhook/internal/store"
)

// graphDriver is a fake pagedriver.PageDriver serving a fixed adjacency
// list, so crawler tests can exercise link discovery without a real
// fetch.
type graphDriver struct {
	mu    sync.Mutex
	links map[string][]string
	hits  map[string]int
}

func newGraphDriver(links map[string][]string) *graphDriver {
	return &graphDriver{links: links, hits: make(map[string]int)}
}

func (g *graphDriver) Fetch(ctx context.Context, rawURL string, opts pagedriver.FetchOptions) (*pagedriver.FetchResult, error) {
	g.mu.Lock()
	g.hits[rawURL]++
	g.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html></html>"))
	if err != nil {
		return nil, err
	}
	return &pagedriver.FetchResult{
		StatusCode: 200,
		LoadTime:   time.Millisecond,
		Doc:        doc,
		Links:      g.links[rawURL],
	}, nil
}

func (g *graphDriver) hitCount(u string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hits[u]
}

func newTestCrawler(driver pagedriver.PageDriver) (*Crawler, *store.JobStore) {
	s := store.New()
	bus := eventbus.New(nil)
	registry := plugins.NewRegistry()
	return NewCrawler(CrawlerDeps{
		Store:   s,
		Bus:     bus,
		Plugins: registry,
		Driver:  driver,
		Queue:   stubEnqueuer{},
	}), s
}

func newTestCrawlJob(id, startURL string) *models.Job {
	return &models.Job{
		ID:   id,
		Kind: models.JobKindCrawl,
		Config: &models.CrawlConfig{
			MaxDepth:             5,
			MaxPages:             50,
			MaxRequestsPerMinute: 6000,
			MaxConcurrency:       2,
			Timeout:              &models.TimeoutConfig{Page: 5000, Request: 5000},
			UserAgent:            "testbot",
			StartURL:             startURL,
		},
		Progress: &models.Progress{Status: models.JobStatusQueued, StartTime: time.Now()},
	}
}

// TestCrawlerRunCrawl_BoundedConcurrencyDoesNotDeadlock exercises the
// frontier-channel worker pool against a link graph wider than
// MaxConcurrency: every worker discovers more links than there are
// workers to fetch them, the exact shape that deadlocked the old design
// (a recursive errgroup.Go call from inside a goroutine already running
// under g.SetLimit). A hang here means the pool regressed.
func TestCrawlerRunCrawl_BoundedConcurrencyDoesNotDeadlock(t *testing.T) {
	const host = "http://example.com"
	links := map[string][]string{
		host + "/":  {host + "/a", host + "/b", host + "/c", host + "/d"},
		host + "/a": {host + "/a1", host + "/a2"},
		host + "/b": {host + "/b1", host + "/b2"},
		host + "/c": {host + "/c1"},
		host + "/d": {host + "/d1"},
	}
	driver := newGraphDriver(links)
	crawler, s := newTestCrawler(driver)

	job := newTestCrawlJob("crawl-1", host+"/")
	s.Insert(job)

	done := make(chan error, 1)
	go func() { done <- crawler.StartJob(context.Background(), job.ID) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("StartJob: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("StartJob did not return within 5s: the worker pool likely deadlocked")
	}

	final, err := s.Get(job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.Progress.Status != models.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", final.Progress.Status)
	}
	for u := range links {
		if got := driver.hitCount(u); got != 1 {
			t.Errorf("hitCount(%s) = %d, want exactly 1", u, got)
		}
	}
}

// TestCrawlerRunCrawl_StaysOnStartHost asserts a link pointing at a
// different host than StartURL is never fetched.
func TestCrawlerRunCrawl_StaysOnStartHost(t *testing.T) {
	const host = "http://example.com"
	links := map[string][]string{
		host + "/": {host + "/a", "http://other.example/external"},
	}
	driver := newGraphDriver(links)
	crawler, s := newTestCrawler(driver)

	job := newTestCrawlJob("crawl-2", host+"/")
	s.Insert(job)

	if err := crawler.StartJob(context.Background(), job.ID); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if driver.hitCount("http://other.example/external") != 0 {
		t.Fatal("a link on a different host than StartURL should never be fetched")
	}
	if driver.hitCount(host+"/a") != 1 {
		t.Fatal("a same-host link should be fetched")
	}
}

// TestCrawlerRunCrawl_RespectsMaxPages asserts the crawl stops admitting
// new URLs once MaxPages is reached, even though the graph has more
// pages reachable than the cap.
func TestCrawlerRunCrawl_RespectsMaxPages(t *testing.T) {
	const host = "http://example.com"
	links := map[string][]string{
		host + "/":  {host + "/a", host + "/b"},
		host + "/a": {host + "/a1"},
		host + "/b": {host + "/b1"},
	}
	driver := newGraphDriver(links)
	crawler, s := newTestCrawler(driver)

	job := newTestCrawlJob("crawl-3", host+"/")
	job.Config.(*models.CrawlConfig).MaxPages = 2

	s.Insert(job)

	if err := crawler.StartJob(context.Background(), job.ID); err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	final, err := s.Get(job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.Progress.Status != models.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", final.Progress.Status)
	}
	if len(final.Result.Pages) > 2 {
		t.Fatalf("len(Pages) = %d, want at most 2 (MaxPages cap)", len(final.Result.Pages))
	}
}
