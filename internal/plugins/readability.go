package plugins

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/jmylchreest/crawlhook/internal/pipeline"
)

const averageWordsPerMinute = 230

// Readability runs Mozilla-Readability-style article extraction to
// measure a page's article content length and word count, and estimates
// a reading time.
type Readability struct {
	base
}

func NewReadability(enabled bool) *Readability {
	return &Readability{base{name: "readability", enabled: enabled}}
}

func (p *Readability) Evaluate(page *pipeline.Page, loadTime time.Duration) (any, error) {
	doc, ok := page.Doc.(*goquery.Document)
	if !ok || doc == nil {
		return nil, fmt.Errorf("readability: page has no parsed document")
	}
	html, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("readability: serialize document: %w", err)
	}

	pageURL, _ := url.Parse(page.URL)
	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return nil, fmt.Errorf("readability: extract: %w", err)
	}

	words := len(strings.Fields(article.TextContent))
	readingMinutes := float64(words) / averageWordsPerMinute

	return map[string]any{
		"url":               page.URL,
		"title":             article.Title,
		"length":            article.Length,
		"words":             words,
		"readingTimeMinute": readingMinutes,
		"excerpt":           article.Excerpt,
	}, nil
}

// Execute applies the same extraction to a Playground string input
// containing raw HTML.
func (p *Readability) Execute(ctx *pipeline.Context) (any, error) {
	html, ok := ctx.Input.(string)
	if !ok {
		return nil, fmt.Errorf("readability: input must be an HTML string, got %T", ctx.Input)
	}
	article, err := readability.FromReader(strings.NewReader(html), nil)
	if err != nil {
		return nil, fmt.Errorf("readability: extract: %w", err)
	}
	words := len(strings.Fields(article.TextContent))
	return map[string]any{
		"title":             article.Title,
		"length":            article.Length,
		"words":             words,
		"readingTimeMinute": float64(words) / averageWordsPerMinute,
	}, nil
}
