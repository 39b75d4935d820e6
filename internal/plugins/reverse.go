package plugins

import (
	"fmt"
	"time"

	"github.com/jmylchreest/crawlhook/internal/pipeline"
)

// Reverse is the Playground demo plugin: it reverses a string input.
// It carries no crawl-mode hook — there is nothing to reverse in a
// fetched page, so it is Playground-only by construction.
type Reverse struct {
	base
}

func NewReverse(enabled bool) *Reverse {
	return &Reverse{base{name: "reverse", enabled: enabled}}
}

func (p *Reverse) Execute(ctx *pipeline.Context) (any, error) {
	s, ok := ctx.Input.(string)
	if !ok {
		return nil, fmt.Errorf("reverse: input must be a string, got %T", ctx.Input)
	}
	start := time.Now()

	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	reversed := string(runes)

	ctx.Output = reversed
	return map[string]any{
		"processedAt":      time.Now().UTC().Format(time.RFC3339),
		"inputLength":      len(s),
		"outputLength":     len(reversed),
		"processingTimeMs": time.Since(start).Milliseconds(),
	}, nil
}

// Summarize reports how many items this plugin processed across the
// job's metrics, matching §8 scenario 1's `summary.reverse.totalProcessed`.
func (p *Reverse) Summarize(metrics []any) (any, error) {
	return map[string]any{"totalProcessed": len(metrics)}, nil
}
