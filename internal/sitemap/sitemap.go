// Package sitemap discovers seed URLs from a sitemap.xml, per §4.1's
// sitemapUrl option: fetch the given URL, parse it as either a regular
// urlset or a sitemapindex, and return the <loc> entries found (following
// one level of index nesting).
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const maxNestedURLs = 5000

// URL is a single <url> entry from a sitemap.
type URL struct {
	Loc string `xml:"loc"`
}

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []URL    `xml:"url"`
}

type sitemapIndexEntry struct {
	Loc string `xml:"loc"`
}

type sitemapIndex struct {
	XMLName  xml.Name            `xml:"sitemapindex"`
	Sitemaps []sitemapIndexEntry `xml:"sitemap"`
}

// Discover fetches sitemapURL and returns the seed URLs it names.
func Discover(ctx context.Context, client *http.Client, logger *slog.Logger, sitemapURL string) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return fetchOne(ctx, client, logger, sitemapURL, 0)
}

func fetchOne(ctx context.Context, client *http.Client, logger *slog.Logger, sitemapURL string, depth int) ([]string, error) {
	if depth > 1 {
		return nil, nil
	}

	body, err := fetchBody(ctx, client, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("sitemap: fetch %s: %w", sitemapURL, err)
	}

	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err == nil && len(idx.Sitemaps) > 0 {
		var all []string
		for _, entry := range idx.Sitemaps {
			if len(all) >= maxNestedURLs {
				logger.Warn("sitemap: reached max nested URL limit", "limit", maxNestedURLs)
				break
			}
			urls, err := fetchOne(ctx, client, logger, entry.Loc, depth+1)
			if err != nil {
				logger.Warn("sitemap: nested sitemap fetch failed", "url", entry.Loc, "error", err)
				continue
			}
			all = append(all, urls...)
		}
		return all, nil
	}

	var set urlset
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("sitemap: parse %s: %w", sitemapURL, err)
	}

	urls := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		if u.Loc != "" {
			urls = append(urls, u.Loc)
		}
	}
	return urls, nil
}

func fetchBody(ctx context.Context, client *http.Client, sitemapURL string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
