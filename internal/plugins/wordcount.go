package plugins

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jmylchreest/crawlhook/internal/pipeline"
)

// WordCount counts words, images, and links on a crawled page, or the
// whitespace-split length of a Playground string input.
type WordCount struct {
	base
}

func NewWordCount(enabled bool) *WordCount {
	return &WordCount{base{name: "wordcount", enabled: enabled}}
}

// Evaluate runs during crawl: counts words in the page's body text plus
// <img> and <a> element counts.
func (p *WordCount) Evaluate(page *pipeline.Page, loadTime time.Duration) (any, error) {
	doc, ok := page.Doc.(*goquery.Document)
	if !ok || doc == nil {
		return map[string]any{"words": 0, "images": 0, "links": 0}, nil
	}
	text := doc.Find("body").Text()
	words := len(strings.Fields(text))
	images := doc.Find("img").Length()
	links := doc.Find("a").Length()
	return map[string]any{
		"url":    page.URL,
		"words":  words,
		"images": images,
		"links":  links,
	}, nil
}

// Execute runs in Playground: a string input is split on whitespace.
func (p *WordCount) Execute(ctx *pipeline.Context) (any, error) {
	s, ok := ctx.Input.(string)
	if !ok {
		return nil, fmt.Errorf("wordcount: input must be a string, got %T", ctx.Input)
	}
	return map[string]any{"words": len(strings.Fields(s))}, nil
}
