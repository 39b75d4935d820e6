package plugins

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jmylchreest/crawlhook/internal/pipeline"
)

// Links classifies a crawled page's outbound anchors as internal or
// external relative to the page's own host. It is crawl-only: there is
// no DOM to classify in Playground mode, so Execute is a deliberate
// no-op rather than an error.
type Links struct {
	base
}

func NewLinks(enabled bool) *Links {
	return &Links{base{name: "links", enabled: enabled}}
}

func (p *Links) Evaluate(page *pipeline.Page, loadTime time.Duration) (any, error) {
	doc, ok := page.Doc.(*goquery.Document)
	if !ok || doc == nil {
		return map[string]any{"internal": 0, "external": 0}, nil
	}
	base, err := url.Parse(page.URL)
	if err != nil {
		return map[string]any{"internal": 0, "external": 0}, nil
	}

	var internal, external int
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if resolved.Host == base.Host {
			internal++
		} else {
			external++
		}
	})

	return map[string]any{
		"url":      page.URL,
		"internal": internal,
		"external": external,
	}, nil
}

// Execute is a no-op in Playground mode — there is no page to classify
// links on for an arbitrary input.
func (p *Links) Execute(ctx *pipeline.Context) (any, error) {
	return map[string]any{"internal": 0, "external": 0}, nil
}
