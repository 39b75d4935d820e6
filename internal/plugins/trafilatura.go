package plugins

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jmylchreest/crawlhook/internal/pipeline"
	"github.com/markusmobius/go-trafilatura"
)

// Trafilatura runs boilerplate-free main-content extraction and reports
// the extracted text's density relative to the raw page.
type Trafilatura struct {
	base
}

func NewTrafilatura(enabled bool) *Trafilatura {
	return &Trafilatura{base{name: "trafilatura", enabled: enabled}}
}

func (p *Trafilatura) Evaluate(page *pipeline.Page, loadTime time.Duration) (any, error) {
	doc, ok := page.Doc.(*goquery.Document)
	if !ok || doc == nil {
		return nil, fmt.Errorf("trafilatura: page has no parsed document")
	}
	html, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("trafilatura: serialize document: %w", err)
	}

	pageURL, _ := url.Parse(page.URL)
	opts := trafilatura.Options{OriginalURL: pageURL}
	result, err := trafilatura.Extract(strings.NewReader(html), opts)
	if err != nil {
		return nil, fmt.Errorf("trafilatura: extract: %w", err)
	}

	contentLen := len(result.ContentText)
	density := 0.0
	if len(html) > 0 {
		density = float64(contentLen) / float64(len(html))
	}

	return map[string]any{
		"url":          page.URL,
		"contentBytes": contentLen,
		"density":      density,
	}, nil
}

func (p *Trafilatura) Execute(ctx *pipeline.Context) (any, error) {
	html, ok := ctx.Input.(string)
	if !ok {
		return nil, fmt.Errorf("trafilatura: input must be an HTML string, got %T", ctx.Input)
	}
	result, err := trafilatura.Extract(strings.NewReader(html), trafilatura.Options{})
	if err != nil {
		return nil, fmt.Errorf("trafilatura: extract: %w", err)
	}
	contentLen := len(result.ContentText)
	density := 0.0
	if len(html) > 0 {
		density = float64(contentLen) / float64(len(html))
	}
	return map[string]any{
		"contentBytes": contentLen,
		"density":      density,
	}, nil
}
