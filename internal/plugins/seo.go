package plugins

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jmylchreest/crawlhook/internal/pipeline"
)

// SEO checks title/meta-description presence and heading structure on a
// crawled page.
type SEO struct {
	base
}

func NewSEO(enabled bool) *SEO {
	return &SEO{base{name: "seo", enabled: enabled}}
}

func (p *SEO) Evaluate(page *pipeline.Page, loadTime time.Duration) (any, error) {
	doc, ok := page.Doc.(*goquery.Document)
	if !ok || doc == nil {
		return map[string]any{"hasTitle": false, "hasMetaDescription": false, "h1Count": 0}, nil
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	desc, _ := doc.Find(`meta[name="description"]`).First().Attr("content")
	h1Count := doc.Find("h1").Length()

	issues := make([]string, 0, 3)
	if title == "" {
		issues = append(issues, "missing title")
	}
	if strings.TrimSpace(desc) == "" {
		issues = append(issues, "missing meta description")
	}
	if h1Count == 0 {
		issues = append(issues, "missing h1")
	} else if h1Count > 1 {
		issues = append(issues, "multiple h1 elements")
	}

	return map[string]any{
		"url":                page.URL,
		"title":              title,
		"hasTitle":           title != "",
		"hasMetaDescription": strings.TrimSpace(desc) != "",
		"h1Count":            h1Count,
		"issues":             issues,
	}, nil
}
