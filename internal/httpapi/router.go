// Package httpapi is the thin HTTP surface of §6: a go-chi router and
// handlers that decode and validate request bodies into DTOs, hand them
// to the engine, and translate Job/Progress reads back into the response
// shapes §6 specifies. No business logic lives here — it exists only to
// make the core (engine, pipeline, queue, webhook) reachable over HTTP,
// mirroring cmd/refyne-api/main.go's middleware stack (CORS, inbound
// rate limiting) without its auth/billing/OpenAPI layers, which this
// local-first server has no use for.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/jmylchreest/crawlhook/internal/engine"
	"github.com/jmylchreest/crawlhook/internal/queue"
	"github.com/jmylchreest/crawlhook/internal/store"
)

var validate = validator.New()

// Deps wires the collaborators a Router's handlers call into.
type Deps struct {
	Store       *store.JobStore
	Queue       *queue.Queue
	Crawler     *engine.Crawler
	Playground  *engine.Playground
	Logger      *slog.Logger
	CORSOrigins []string
}

// NewRouter builds the chi.Router realizing every route in §6.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{
		store:      deps.Store,
		queue:      deps.Queue,
		crawler:    deps.Crawler,
		playground: deps.Playground,
		logger:     logger.With("component", "httpapi"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(1 * 1024 * 1024))

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.healthz)

	r.Group(func(r chi.Router) {
		// Job creation is the only expensive/stateful surface, so the
		// inbound rate limit applies only here rather than globally.
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Post("/crawl/{siteDomain}", h.createCrawl)
		r.Post("/playground/jobs", h.createPlayground)
	})

	r.Post("/playground/jobs/{id}/start", h.startPlayground)
	r.Get("/playground/jobs/{id}", h.getPlaygroundJob)
	r.Get("/playground/jobs/{id}/progress", h.getPlaygroundProgress)

	return r
}
