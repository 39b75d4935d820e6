// Package pagedriver defines the PageDriver contract §1 treats as an
// external collaborator (the headless-browser automation) and ships a
// concrete, swappable default built on gocolly/colly and goquery so the
// module runs end to end without a real browser — grounded on the
// teacher's URLDiscoverer (internal/service/url_discovery.go), which uses
// colly the same way for fetch + CSS-selector link extraction.
package pagedriver

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// FetchOptions configures a single page fetch.
type FetchOptions struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
}

// FetchResult is what the crawl engine needs back from a fetched page:
// its outcome plus the links discovered on it.
type FetchResult struct {
	StatusCode int
	LoadTime   time.Duration
	Title      string
	Doc        *goquery.Document
	Links      []string
}

// PageDriver opens a URL and returns its timing, DOM snapshot, and
// outbound links (link extraction is the driver's job, per §4.1). The
// crawl engine owns the frontier/visited-set bookkeeping; the driver is
// stateless across calls.
type PageDriver interface {
	Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*FetchResult, error)
}

// CollyPageDriver is the default PageDriver: one colly collector per
// Fetch call, single page, no following — the engine drives discovery.
type CollyPageDriver struct{}

// NewCollyPageDriver returns the default PageDriver implementation.
func NewCollyPageDriver() *CollyPageDriver {
	return &CollyPageDriver{}
}

// Fetch retrieves rawURL and extracts its <a href> links.
func (d *CollyPageDriver) Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*FetchResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "crawlhookbot/1.0"
	}

	c := colly.NewCollector(colly.UserAgent(userAgent))
	c.SetRequestTimeout(timeout)

	var (
		result     FetchResult
		body       []byte
		start      time.Time
		fetchErr   error
		haveResult bool
	)

	c.OnRequest(func(r *colly.Request) {
		for k, v := range opts.Headers {
			r.Headers.Set(k, v)
		}
		start = time.Now()
	})

	c.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		result.LoadTime = time.Since(start)
		body = append([]byte(nil), r.Body...)
		haveResult = true
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			result.StatusCode = r.StatusCode
		}
	})

	if err := c.Visit(rawURL); err != nil {
		return nil, fmt.Errorf("pagedriver: visit %s: %w", rawURL, err)
	}
	c.Wait()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	// colly treats a non-2xx response as an error (OnError fires and
	// Visit returns it above), so an HTTP error page is a fetch failure
	// here, not a crawl result. Without a response body there is
	// nothing to parse either.
	if !haveResult {
		if fetchErr != nil {
			return nil, fmt.Errorf("pagedriver: fetch %s: %w", rawURL, fetchErr)
		}
		return nil, fmt.Errorf("pagedriver: no response received for %s", rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("pagedriver: parse %s: %w", rawURL, err)
	}
	result.Doc = doc
	result.Title = strings.TrimSpace(doc.Find("title").First().Text())
	result.Links = extractLinks(doc, rawURL)

	return &result, nil
}

func extractLinks(doc *goquery.Document, base string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := baseURL.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		resolved := abs.String()
		if !seen[resolved] {
			seen[resolved] = true
			links = append(links, resolved)
		}
	})
	return links
}
