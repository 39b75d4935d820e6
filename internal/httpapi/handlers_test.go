package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/crawlhook/internal/engine"
	"github.com/jmylchreest/crawlhook/internal/eventbus"
	"github.com/jmylchreest/crawlhook/internal/pagedriver"
	"github.com/jmylchreest/crawlhook/internal/plugins"
	"github.com/jmylchreest/crawlhook/internal/queue"
	"github.com/jmylchreest/crawlhook/internal/robots"
	"github.com/jmylchreest/crawlhook/internal/store"
)

// noopPageDriver fetches nothing and returns an empty single-page result,
// keeping httpapi's handler tests hermetic — they exercise request
// validation and job bookkeeping, not the crawl itself.
type noopPageDriver struct{}

func (noopPageDriver) Fetch(ctx context.Context, rawURL string, opts pagedriver.FetchOptions) (*pagedriver.FetchResult, error) {
	return &pagedriver.FetchResult{StatusCode: http.StatusOK}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *store.JobStore) {
	t.Helper()

	s := store.New()
	bus := eventbus.New(nil)
	registry := plugins.NewRegistry()

	crawler := engine.NewCrawler(engine.CrawlerDeps{
		Store:   s,
		Bus:     bus,
		Plugins: registry,
		Driver:  noopPageDriver{},
		Robots:  robots.New("crawlhookbot-test/1.0"),
		Defaults: engine.CrawlDefaults{
			MaxDepth: 3, MaxPages: 10, MaxRequestsPerMinute: 60, MaxConcurrency: 2,
		},
	})
	playground := engine.NewPlayground(engine.PlaygroundDeps{
		Store: s, Bus: bus, Plugins: registry,
	})

	dispatcher := engine.NewDispatcher(s, crawler, playground)
	q := queue.New(dispatcher, 0, nil)
	t.Cleanup(q.Stop)
	crawler.SetQueue(q)
	playground.SetQueue(q)

	router := NewRouter(Deps{
		Store:      s,
		Queue:      q,
		Crawler:    crawler,
		Playground: playground,
	})
	return router, s
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestCreateCrawl_InvalidDomain(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/crawl/%20", bytes.NewBufferString(`{"webhook":{"url":"https://example.com/hook"}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCrawl_MissingWebhookRejected(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/crawl/example.com", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid configuration", body["error"])
}

func TestCreateCrawl_Accepted(t *testing.T) {
	router, s := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/crawl/example.com", bytes.NewBufferString(`{"maxDepth":1,"webhook":{"url":"https://example.com/hook"}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "accepted", body["status"])
	jobID, _ := body["jobId"].(string)
	require.NotEmpty(t, jobID)

	_, err := s.Get(jobID)
	assert.NoError(t, err)
}

func TestPlaygroundJob_SyncRunReturnsFinalJob(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/playground/jobs", bytes.NewBufferString(`{"input":"hello","plugins":["reverse"]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var job map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	progress, ok := job["progress"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "completed", progress["status"])
}

func TestPlaygroundJob_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/playground/jobs/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
