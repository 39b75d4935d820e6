package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAllowed_MissingRobotsTxtIsFullAllow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New("testbot")
	if !c.Allowed(context.Background(), srv.URL+"/private", "") {
		t.Error("a missing robots.txt must be treated as full allow")
	}
}

func TestAllowed_DisallowedPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New("testbot")
	if c.Allowed(context.Background(), srv.URL+"/private", "") {
		t.Error("/private should be disallowed")
	}
	if !c.Allowed(context.Background(), srv.URL+"/public", "") {
		t.Error("/public should remain allowed")
	}
}

func TestAllowed_CachesPerHost(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("User-agent: *\nDisallow:\n"))
	}))
	defer srv.Close()

	c := New("testbot")
	c.Allowed(context.Background(), srv.URL+"/a", "")
	c.Allowed(context.Background(), srv.URL+"/b", "")

	if hits != 1 {
		t.Errorf("robots.txt fetched %d times, want 1 (cached per host)", hits)
	}
}

func TestAllowed_MalformedURLIsFullAllow(t *testing.T) {
	c := New("testbot")
	if !c.Allowed(context.Background(), "::not a url::", "") {
		t.Error("a malformed URL should be treated as full allow")
	}
}

func TestAllowed_PerCallUserAgentOverridesDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: specialbot\nDisallow: /private\n\nUser-agent: *\nDisallow:\n"))
	}))
	defer srv.Close()

	c := New("testbot")
	if !c.Allowed(context.Background(), srv.URL+"/private", "") {
		t.Error("the Checker's default user agent is not disallowed, so /private should be allowed without an override")
	}
	if c.Allowed(context.Background(), srv.URL+"/private", "specialbot") {
		t.Error("a per-call user agent should be matched against its own rule group, not the Checker's default")
	}
}
