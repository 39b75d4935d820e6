// Package plugins ships the built-in analysis plugins usable by both the
// Crawler and Playground engines, plus a name→constructor Registry that
// replaces the "always the same concrete instance" bug §9 flags in the
// teacher's analogous factory (internal/service/cleaner_factory.go always
// returned a *Cleaner regardless of its `kind` argument).
package plugins

import "github.com/jmylchreest/crawlhook/internal/pipeline"

// base gives every concrete plugin its Name/Enabled implementation so
// each plugin type only needs to add the hooks it actually uses.
type base struct {
	name    string
	enabled bool
}

func (b *base) Name() string  { return b.name }
func (b *base) Enabled() bool { return b.enabled }

// Constructor builds a fresh pipeline.Plugin instance. A fresh instance
// per job matters: plugins carry per-run state (counters, timers) in
// their own fields, and two concurrent jobs must never share one.
type Constructor func(enabled bool) pipeline.Plugin

// Registry maps a plugin name to its Constructor.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry returns a Registry pre-populated with every built-in
// plugin.
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]Constructor)}
	r.Register("wordcount", func(enabled bool) pipeline.Plugin { return NewWordCount(enabled) })
	r.Register("links", func(enabled bool) pipeline.Plugin { return NewLinks(enabled) })
	r.Register("seo", func(enabled bool) pipeline.Plugin { return NewSEO(enabled) })
	r.Register("readability", func(enabled bool) pipeline.Plugin { return NewReadability(enabled) })
	r.Register("markdown", func(enabled bool) pipeline.Plugin { return NewMarkdown(enabled) })
	r.Register("trafilatura", func(enabled bool) pipeline.Plugin { return NewTrafilatura(enabled) })
	r.Register("reverse", func(enabled bool) pipeline.Plugin { return NewReverse(enabled) })
	return r
}

// Register adds or overwrites the constructor for name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.constructors[name] = ctor
}

// Names returns every registered plugin name, built-ins first in
// registration order is not guaranteed (map iteration) — callers that
// need a stable default order should use DefaultNames.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	return names
}

// DefaultNames is the stable, documented order new jobs get when no
// `plugins` filter is supplied.
var DefaultNames = []string{"wordcount", "links", "seo", "readability", "markdown", "trafilatura"}

// Build instantiates one fresh plugin per requested name, each enabled.
// An unknown name is skipped silently; plugin names are not checked
// against the registry when a job is created, so Build is where an
// unknown name is dropped.
func (r *Registry) Build(names []string) []pipeline.Plugin {
	if len(names) == 0 {
		names = DefaultNames
	}
	out := make([]pipeline.Plugin, 0, len(names))
	for _, name := range names {
		ctor, ok := r.constructors[name]
		if !ok {
			continue
		}
		out = append(out, ctor(true))
	}
	return out
}

// Has reports whether name is a registered plugin.
func (r *Registry) Has(name string) bool {
	_, ok := r.constructors[name]
	return ok
}
