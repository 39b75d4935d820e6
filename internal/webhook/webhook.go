// Package webhook implements the outbound webhook emitter of §4.5: one
// in-process HTTP(S) POST per subscribed event, with per-job event
// filtering, exponential-backoff retries, and custom headers — adapted
// from the teacher's WebhookService (internal/service/webhook_service.go),
// trimmed to the ephemeral, single-config case this spec's job model
// needs (no persisted webhook registry, no delivery-tracking database).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmylchreest/crawlhook/internal/eventbus"
	"github.com/jmylchreest/crawlhook/internal/models"
)

const maxResponseBody = 64 * 1024

// outboundName maps an internal event kind to the external "status"
// field it is delivered under, per §4.5's one-to-one mapping. pageComplete
// and pluginComplete both map to "progress"; jobStart/jobComplete/jobError
// map to started/completed/failed.
func outboundName(kind eventbus.Kind) (string, bool) {
	switch kind {
	case eventbus.KindJobStart:
		return "started", true
	case eventbus.KindJobComplete:
		return "completed", true
	case eventbus.KindJobError:
		return "failed", true
	case eventbus.KindPageComplete, eventbus.KindPluginComplete, eventbus.KindProgress:
		return "progress", true
	default:
		return "", false
	}
}

// Emitter delivers filtered, retried webhook POSTs for every job whose
// Config carries a WebhookConfig. It subscribes to an eventbus.Bus and
// never blocks the publishing goroutine: each delivery (including its
// retries) runs in its own goroutine.
type Emitter struct {
	client *http.Client
	logger *slog.Logger
}

// New returns an Emitter whose HTTP client uses the given timeout for
// each individual delivery attempt (governs both connect and
// round-trip). The timeout is the same for every job; a job's own
// timeout.request does not apply to its webhook calls.
func New(logger *slog.Logger, timeout time.Duration) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Emitter{
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "webhook"),
	}
}

// Attach subscribes the Emitter to every event on bus, resolving each
// event's webhook config from its Job's Config (CrawlConfig or
// PlaygroundConfig) and the extra payload fields from the event itself.
func (e *Emitter) Attach(bus *eventbus.Bus, payloadFor func(eventbus.Event) (cfg *models.WebhookConfig, extra map[string]any)) {
	bus.SubscribeAll(func(ev eventbus.Event) {
		status, ok := outboundName(ev.Kind)
		if !ok {
			return
		}
		cfg, extra := payloadFor(ev)
		if cfg == nil || cfg.URL == "" {
			return
		}
		if !subscribed(cfg.On, status) {
			return
		}
		e.deliverAsync(cfg, status, ev.JobID, extra)
	})
}

func subscribed(on []string, status string) bool {
	if len(on) == 0 {
		return true
	}
	for _, name := range on {
		if name == status {
			return true
		}
	}
	return false
}

// deliverAsync builds the JSON payload once (so retries preserve payload
// identity byte-for-byte, per §4.5) and fires the delivery-with-retries
// loop in its own goroutine — fire-and-forget, never blocking the caller.
func (e *Emitter) deliverAsync(cfg *models.WebhookConfig, status, jobID string, extra map[string]any) {
	body := map[string]any{
		"status":    status,
		"jobId":     jobID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		body[k] = v
	}

	payload, err := json.Marshal(body)
	if err != nil {
		e.logger.Error("webhook: failed to marshal payload", "job_id", jobID, "error", err)
		return
	}

	retries := cfg.Retries
	if retries < 1 || retries > 5 {
		retries = 3
	}

	go e.deliverWithRetries(context.Background(), cfg, payload, retries)
}

// deliverWithRetries attempts delivery up to `retries` times. The first
// attempt fires immediately; the delay before the nth retry after that
// is 2^(n-1) seconds, per §4.5/§9's resolved retry schedule (1s, 2s, 4s,
// ... between successive attempts). A non-2xx response or transport
// error counts as a failure; after exhaustion the emitter logs and drops
// the event without ever mutating job state.
func (e *Emitter) deliverWithRetries(ctx context.Context, cfg *models.WebhookConfig, payload []byte, retries int) {
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * time.Second
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}

		statusCode, err := e.deliverOnce(ctx, cfg, payload)
		if err == nil && statusCode >= 200 && statusCode < 300 {
			e.logger.Debug("webhook delivered", "url", cfg.URL, "status", statusCode, "attempt", attempt+1)
			return
		}

		if err != nil {
			e.logger.Warn("webhook delivery attempt failed", "url", cfg.URL, "attempt", attempt+1, "error", err)
		} else {
			e.logger.Warn("webhook delivery attempt failed", "url", cfg.URL, "attempt", attempt+1, "status", statusCode)
		}
	}

	e.logger.Error("webhook delivery exhausted retries, dropping event", "url", cfg.URL, "attempts", retries)
}

func (e *Emitter) deliverOnce(ctx context.Context, cfg *models.WebhookConfig, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("webhook: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "crawlhook-webhook/1.0")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
	return resp.StatusCode, nil
}
