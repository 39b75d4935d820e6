package webhook

import (
	"time"

	"github.com/jmylchreest/crawlhook/internal/eventbus"
	"github.com/jmylchreest/crawlhook/internal/models"
)

// PayloadFor resolves an eventbus.Event to the WebhookConfig governing its
// job and the extra payload fields §6 specifies for that event's outbound
// "status", ready to be merged with Attach's own {status,jobId,timestamp}
// envelope. Returns a nil cfg for events with no job yet, or a job whose
// Config carries no webhook (Playground's webhook field is optional).
func PayloadFor(ev eventbus.Event) (*models.WebhookConfig, map[string]any) {
	if ev.Job == nil {
		return nil, nil
	}

	cfg := webhookConfigFor(ev.Job)
	if cfg == nil {
		return nil, nil
	}

	switch ev.Kind {
	case eventbus.KindJobStart:
		return cfg, startedFields(ev.Job)
	case eventbus.KindJobComplete:
		return cfg, completedFields(ev.Job)
	case eventbus.KindJobError:
		return cfg, failedFields(ev.Job)
	case eventbus.KindPageComplete:
		return cfg, crawlProgressFields(ev)
	case eventbus.KindProgress:
		if ev.Job.Kind == models.JobKindPlayground {
			return cfg, playgroundProgressFields(ev)
		}
		return cfg, crawlProgressFields(ev)
	default:
		return nil, nil
	}
}

func webhookConfigFor(job *models.Job) *models.WebhookConfig {
	switch cfg := job.Config.(type) {
	case *models.CrawlConfig:
		if cfg.Webhook.URL == "" {
			return nil
		}
		return &cfg.Webhook
	case *models.PlaygroundConfig:
		return cfg.Webhook
	default:
		return nil
	}
}

func startedFields(job *models.Job) map[string]any {
	config := map[string]any{}
	switch cfg := job.Config.(type) {
	case *models.CrawlConfig:
		config["url"] = cfg.StartURL
		if len(cfg.Plugins) > 0 {
			config["plugins"] = cfg.Plugins
		}
		if cfg.MaxDepth > 0 {
			config["maxDepth"] = cfg.MaxDepth
		}
		if cfg.MaxPages > 0 {
			config["maxPages"] = cfg.MaxPages
		}
	case *models.PlaygroundConfig:
		if len(cfg.Plugins) > 0 {
			config["plugins"] = cfg.Plugins
		}
	}
	return map[string]any{"config": config}
}

func crawlProgressFields(ev eventbus.Event) map[string]any {
	p := ev.Job.Progress
	fields := map[string]any{
		"progress": map[string]any{
			"pagesAnalyzed": p.PagesAnalyzed,
			"totalPages":    p.TotalPages,
			"currentUrl":    p.CurrentURL,
			"uniqueUrls":    p.UniqueURLs,
			"skippedUrls":   p.SkippedURLs,
			"failedUrls":    p.FailedURLs,
			"currentDepth":  p.CurrentDepth,
			"elapsedTime":   p.ElapsedTime(time.Now()).Seconds(),
		},
	}
	if ev.PageAnalysis != nil {
		currentPage := map[string]any{"url": ev.PageAnalysis.URL}
		if ev.PageAnalysis.Title != "" {
			currentPage["title"] = ev.PageAnalysis.Title
		}
		if ev.PageAnalysis.WordCount > 0 {
			currentPage["wordCount"] = ev.PageAnalysis.WordCount
		}
		fields["currentPage"] = currentPage
	}
	return fields
}

func playgroundProgressFields(ev eventbus.Event) map[string]any {
	p := ev.Job.Progress
	progress := map[string]any{
		"status":           string(p.Status),
		"completedPlugins": p.CompletedPlugins,
	}
	if p.CurrentPlugin != "" {
		progress["currentPlugin"] = p.CurrentPlugin
	}
	fields := map[string]any{"progress": progress}
	if ev.PluginName != "" {
		fields["pluginName"] = ev.PluginName
		fields["metrics"] = ev.Metrics
	}
	return fields
}

func completedFields(job *models.Job) map[string]any {
	result := map[string]any{}
	summary := map[string]any{}
	if job.Result != nil {
		if len(job.Result.Pages) > 0 {
			result["pages"] = job.Result.Pages
		}
		if len(job.Result.Metrics) > 0 {
			result["metrics"] = job.Result.Metrics
		}
		if job.Result.Summary != nil {
			result["summary"] = job.Result.Summary
			summary = job.Result.Summary
		}
	}
	return map[string]any{"result": result, "summary": summary}
}

func failedFields(job *models.Job) map[string]any {
	fields := map[string]any{"error": job.Progress.Error}
	fields["progress"] = map[string]any{
		"status":        string(job.Progress.Status),
		"pagesAnalyzed": job.Progress.PagesAnalyzed,
		"currentUrl":    job.Progress.CurrentURL,
	}
	return fields
}
