package models

// WebhookConfig configures outbound delivery for a single job, per §4.5/§6.
type WebhookConfig struct {
	URL     string            `json:"url" validate:"required,url"`
	Headers map[string]string `json:"headers,omitempty"`
	// On is the per-job event filter; empty means "deliver every event".
	On []string `json:"on,omitempty"`
	// Retries is the max delivery attempts; default 3, range 1..5.
	Retries int `json:"retries,omitempty" validate:"omitempty,min=1,max=5"`
}

// TimeoutConfig bounds page loads and subresource/webhook requests.
type TimeoutConfig struct {
	Page    int `json:"page,omitempty" validate:"omitempty,min=1000,max=60000"`
	Request int `json:"request,omitempty" validate:"omitempty,min=1000,max=60000"`
}

// URLFilter is an in-process predicate extension point. It is never
// deserialized from JSON (functions aren't JSON values) — per §9's
// resolution of the urlFilter open question, it can only be set by a
// caller constructing a CrawlConfig in-process.
type URLFilter func(string) bool

// CrawlConfig is the body of POST /crawl/{siteDomain}.
type CrawlConfig struct {
	MaxDepth             int            `json:"maxDepth,omitempty" validate:"omitempty,min=1,max=10"`
	MaxPages             int            `json:"maxPages,omitempty" validate:"omitempty,min=1,max=1000"`
	MaxRequestsPerMinute int            `json:"maxRequestsPerMinute,omitempty" validate:"omitempty,min=1,max=300"`
	MaxConcurrency       int            `json:"maxConcurrency,omitempty" validate:"omitempty,min=1,max=100"`
	Timeout              *TimeoutConfig `json:"timeout,omitempty"`
	Headers              map[string]string `json:"headers,omitempty"`
	UserAgent            string         `json:"userAgent,omitempty"`
	RespectRobotsTxt     bool           `json:"respectRobotsTxt,omitempty"`
	SitemapURL           string         `json:"sitemapUrl,omitempty"`
	URLFilter            URLFilter      `json:"-"`
	Plugins              []string       `json:"plugins,omitempty"`
	Webhook              WebhookConfig  `json:"webhook" validate:"required"`

	// StartURL is not part of the JSON body; it is derived from
	// {siteDomain} by the HTTP layer per §6 and set before CreateJob.
	StartURL string `json:"-"`
}

// PlaygroundConfig is the body of POST /playground/jobs.
type PlaygroundConfig struct {
	Input   any            `json:"input"`
	Retries int            `json:"retries,omitempty" validate:"omitempty,min=0"`
	Plugins []string       `json:"plugins,omitempty"`
	Webhook *WebhookConfig `json:"webhook,omitempty"`
	Async   bool           `json:"async,omitempty"`
}
