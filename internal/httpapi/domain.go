package httpapi

import "net/url"

// normalizeSiteDomain turns a {siteDomain} path segment into a full start
// URL, per §6: prefix https://, falling back to http:// if that does not
// parse to a URL with a non-empty host. raw may already carry a scheme
// (https://example.com), a bare host (example.com), or a host with a
// path (example.com/docs) — all are accepted as long as a hostname can be
// extracted.
func normalizeSiteDomain(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	if u, ok := parseWithHost(raw); ok {
		return u, true
	}
	if u, ok := parseWithHost("https://" + raw); ok {
		return u, true
	}
	if u, ok := parseWithHost("http://" + raw); ok {
		return u, true
	}
	return "", false
}

func parseWithHost(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return u.String(), true
}
