// Package eventbus is an in-process publish/subscribe bus carrying the
// engine's typed domain events to subscribers — principally the webhook
// emitter — without coupling the engine to delivery concerns.
package eventbus

import (
	"log/slog"
	"sync"

	"github.com/jmylchreest/crawlhook/internal/models"
)

// Kind identifies one of the closed set of event kinds the bus carries.
type Kind string

const (
	KindJobStart      Kind = "jobStart"
	KindJobComplete   Kind = "jobComplete"
	KindJobError      Kind = "jobError"
	KindPageStart     Kind = "pageStart"
	KindPageComplete  Kind = "pageComplete"
	KindPageError     Kind = "pageError"
	KindPluginStart   Kind = "pluginStart"
	KindPluginComplete Kind = "pluginComplete"
	KindPluginError   Kind = "pluginError"
	KindProgress      Kind = "progress"
)

// Event is the envelope delivered to subscribers. Fields beyond JobID/Job
// vary by Kind; unused fields are left zero.
type Event struct {
	Kind Kind
	JobID string
	Job   *models.Job

	URL          string
	PageAnalysis *models.PageAnalysis
	PluginName   string
	Metrics      any
	Err          error
}

// Handler receives one Event. Handlers must not block the bus for long;
// the bus itself makes no delivery-ordering guarantee across events.
type Handler func(Event)

// Bus is a closed-set typed pub/sub. Publish fans out synchronously, in
// the engine's own goroutine, matching §4.4's "synchronous-fanout within
// the engine's execution thread" requirement; it recovers from a panicking
// subscriber so one bad handler cannot break another or the engine.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Kind][]Handler
	all         []Handler
	logger      *slog.Logger
}

// New returns an empty Bus. A nil logger is replaced with slog.Default().
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[Kind][]Handler),
		logger:      logger.With("component", "eventbus"),
	}
}

// Subscribe registers h to receive every event of the given kind.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[kind] = append(b.subscribers[kind], h)
}

// SubscribeAll registers h to receive every event of every kind — the
// webhook emitter uses this to apply its own per-job filter downstream of
// the bus rather than subscribing per kind.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish delivers ev to every subscriber of ev.Kind and every
// SubscribeAll subscriber, catching panics at the boundary so a broken
// subscriber cannot take down the publishing engine goroutine.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[ev.Kind]...)
	all := append([]Handler(nil), b.all...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.safeCall(h, ev)
	}
	for _, h := range all {
		b.safeCall(h, ev)
	}
}

func (b *Bus) safeCall(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("eventbus subscriber panicked", "kind", ev.Kind, "job_id", ev.JobID, "recover", r)
		}
	}()
	h(ev)
}
