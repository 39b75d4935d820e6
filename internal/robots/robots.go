// Package robots fetches and evaluates robots.txt per §4.1's
// respectRobotsTxt option: one fetch per host, 5s timeout, full-allow on a
// missing or malformed file, cached for the lifetime of the Checker.
package robots

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const fetchTimeout = 5 * time.Second

// Checker evaluates URLs against the robots.txt of their host, caching one
// parsed robots.txt per host for the lifetime of the Checker. crawlhookd
// builds one Checker at startup and shares it across all crawl jobs, so a
// cached entry is reused by later jobs and is never refreshed.
type Checker struct {
	userAgent string
	client    *http.Client

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// New returns a Checker that fetches with the given user agent.
func New(userAgent string) *Checker {
	if userAgent == "" {
		userAgent = "crawlhookbot"
	}
	return &Checker{
		userAgent: userAgent,
		client:    &http.Client{Timeout: fetchTimeout},
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether rawURL may be fetched under its host's
// robots.txt. userAgent is matched against the robots.txt rule groups if
// given (the per-job CrawlConfig.UserAgent, per §4.1's "for the
// configured user agent"); an empty userAgent falls back to the
// Checker's own default. A missing, unreachable, or malformed
// robots.txt is treated as full allow, per §4.1.
func (c *Checker) Allowed(ctx context.Context, rawURL, userAgent string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	if userAgent == "" {
		userAgent = c.userAgent
	}

	data := c.dataFor(ctx, u)
	if data == nil {
		return true
	}
	return data.TestAgent(u.Path, userAgent)
}

func (c *Checker) dataFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	host := u.Scheme + "://" + u.Host

	c.mu.Lock()
	if data, ok := c.cache[host]; ok {
		c.mu.Unlock()
		return data
	}
	c.mu.Unlock()

	data := c.fetch(ctx, host)

	c.mu.Lock()
	c.cache[host] = data
	c.mu.Unlock()

	return data
}

func (c *Checker) fetch(ctx context.Context, host string) *robotstxt.RobotsData {
	reqCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data
}
