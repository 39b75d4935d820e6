package plugins

import (
	"fmt"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/jmylchreest/crawlhook/internal/pipeline"
)

// Markdown converts a page (or a Playground HTML string) to Markdown,
// recording the conversion's output size.
type Markdown struct {
	base
}

func NewMarkdown(enabled bool) *Markdown {
	return &Markdown{base{name: "markdown", enabled: enabled}}
}

func (p *Markdown) Evaluate(page *pipeline.Page, loadTime time.Duration) (any, error) {
	doc, ok := page.Doc.(*goquery.Document)
	if !ok || doc == nil {
		return nil, fmt.Errorf("markdown: page has no parsed document")
	}
	html, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("markdown: serialize document: %w", err)
	}
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return nil, fmt.Errorf("markdown: convert: %w", err)
	}
	return map[string]any{
		"url":          page.URL,
		"outputBytes":  len(md),
		"markdownBody": md,
	}, nil
}

func (p *Markdown) Execute(ctx *pipeline.Context) (any, error) {
	html, ok := ctx.Input.(string)
	if !ok {
		return nil, fmt.Errorf("markdown: input must be an HTML string, got %T", ctx.Input)
	}
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return nil, fmt.Errorf("markdown: convert: %w", err)
	}
	return map[string]any{
		"outputBytes":  len(md),
		"markdownBody": md,
	}, nil
}
