package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/crawlhook/internal/engine"
	"github.com/jmylchreest/crawlhook/internal/models"
	"github.com/jmylchreest/crawlhook/internal/queue"
	"github.com/jmylchreest/crawlhook/internal/store"
)

type handlers struct {
	store      *store.JobStore
	queue      *queue.Queue
	crawler    *engine.Crawler
	playground *engine.Playground
	logger     *slog.Logger
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// createCrawl implements POST /crawl/{siteDomain}.
func (h *handlers) createCrawl(w http.ResponseWriter, r *http.Request) {
	startURL, ok := normalizeSiteDomain(chi.URLParam(r, "siteDomain"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Invalid domain",
			"message": "could not resolve siteDomain to a valid http(s) URL",
		})
		return
	}

	var cfg models.CrawlConfig
	if !decodeJSON(w, r, &cfg) {
		return
	}
	if issues := validateStruct(&cfg); issues != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "Invalid configuration",
			"issues": issues,
		})
		return
	}
	cfg.StartURL = startURL

	job, err := h.crawler.CreateJob(&cfg)
	if err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "queue full"})
			return
		}
		h.logger.Error("createCrawl: enqueue failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, h.acceptedResponse(job, &cfg.Webhook))
}

// createPlayground implements POST /playground/jobs.
func (h *handlers) createPlayground(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Input   any                    `json:"input"`
		Retries int                    `json:"retries,omitempty" validate:"omitempty,min=0"`
		Plugins []string               `json:"plugins,omitempty"`
		Webhook *models.WebhookConfig  `json:"webhook,omitempty"`
		Async   bool                   `json:"async,omitempty"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if issues := validateStruct(&body); issues != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "Invalid configuration",
			"issues": issues,
		})
		return
	}

	cfg := &models.PlaygroundConfig{
		Input:   body.Input,
		Retries: body.Retries,
		Plugins: body.Plugins,
		Webhook: body.Webhook,
		Async:   body.Async,
	}

	// Sync mode never enqueues: CreateSyncJob keeps the job off the
	// shared queue entirely so the background dispatcher can't also pick
	// it up and race this handler's own RunSync call for who runs it —
	// whichever lost that race used to leave RunSync reading back a
	// still-running, resultless job.
	if !cfg.Async {
		job, err := h.playground.CreateSyncJob(cfg)
		if err != nil {
			if errors.Is(err, queue.ErrQueueFull) {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "queue full"})
				return
			}
			h.logger.Error("createPlayground: create failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
			return
		}

		final, err := h.playground.RunSync(r.Context(), job.ID)
		if err != nil {
			h.logger.Error("createPlayground: sync run failed", "job_id", job.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, final)
		return
	}

	job, err := h.playground.CreateJob(cfg)
	if err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "queue full"})
			return
		}
		h.logger.Error("createPlayground: enqueue failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"jobId":   job.ID,
		"status":  "accepted",
		"message": "playground job accepted",
	})
}

// startPlayground implements POST /playground/jobs/:id/start — an
// idempotent re-start gate: StartJob is a no-op once the job has left
// "queued", so calling this on an already-running or terminal job just
// returns its current state.
func (h *handlers) startPlayground(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.playground.StartJob(r.Context(), id); err != nil {
		h.logger.Warn("startPlayground: StartJob returned an error", "job_id", id, "error", err)
	}

	job, err := h.store.Get(id)
	if err != nil {
		writeNotFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *handlers) getPlaygroundJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.store.Get(id)
	if err != nil {
		writeNotFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *handlers) getPlaygroundProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.store.Get(id)
	if err != nil {
		writeNotFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job.Progress)
}

// acceptedResponse builds the 200 body §6 specifies for a freshly created
// crawl job.
func (h *handlers) acceptedResponse(job *models.Job, webhook *models.WebhookConfig) map[string]any {
	position := h.queue.Length()
	isProcessing := h.queue.IsProcessing()

	estimatedStart := time.Now().UTC()
	if position > 0 {
		// No per-job duration history to estimate from; a flat per-slot
		// budget keeps the field monotonic with queue depth without
		// overclaiming precision it can't have.
		estimatedStart = estimatedStart.Add(time.Duration(position) * 30 * time.Second)
	}

	expectedUpdates := webhook.On
	if len(expectedUpdates) == 0 {
		expectedUpdates = []string{"started", "progress", "completed", "failed"}
	}

	return map[string]any{
		"message": "crawl job accepted",
		"jobId":   job.ID,
		"status":  "accepted",
		"queueInfo": map[string]any{
			"position":       position,
			"isProcessing":   isProcessing,
			"estimatedStart": estimatedStart.Format(time.RFC3339),
		},
		"webhook": map[string]any{
			"url":             webhook.URL,
			"expectedUpdates": expectedUpdates,
		},
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Invalid configuration",
			"message": err.Error(),
		})
		return false
	}
	return true
}

func writeNotFound(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrJobNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "job not found"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
