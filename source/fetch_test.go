package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ByLCY/quire/errs"
)

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/old":
			http.Redirect(w, r, "/page", http.StatusFound)
		case "/page":
			if !strings.Contains(r.Header.Get("User-Agent"), "Mozilla") {
				http.Error(w, "no ua", http.StatusForbidden)
				return
			}
			w.Write([]byte("<html><title>ok</title></html>"))
		case "/big":
			w.Write([]byte(strings.Repeat("x", 64)))
		case "/broken":
			http.Error(w, "boom", http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := &HTTPFetcher{Client: srv.Client(), MaxBytes: 32}
	ctx := context.Background()

	page, err := f.Fetch(ctx, srv.URL+"/old")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.HasSuffix(page.URL, "/page") || !strings.Contains(string(page.HTML), "<title>ok</title>") {
		t.Fatalf("unexpected page: %+v", page)
	}

	for _, path := range []string{"/missing", "/broken", "/big"} {
		_, err := f.Fetch(ctx, srv.URL+path)
		if !errs.Is(err, errs.KindFetch) {
			t.Fatalf("%s: expected fetch error, got %v", path, err)
		}
	}
}

func TestHTTPFetcherTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := (&HTTPFetcher{Client: srv.Client()}).Fetch(ctx, srv.URL)
	if !errs.Is(err, errs.KindFetch) || !strings.Contains(err.Error(), "took too long") {
		t.Fatalf("expected timeout fetch error, got %v", err)
	}
}

func TestNormalizeURL(t *testing.T) {
	got, err := NormalizeURL("  example.com/docs ")
	if err != nil || got != "https://example.com/docs" {
		t.Fatalf("NormalizeURL = %q, %v", got, err)
	}
	if got, _ := NormalizeURL("http://example.org"); got != "http://example.org" {
		t.Fatalf("http scheme should be kept, got %q", got)
	}
	for _, bad := range []string{"", "   ", "http://localhost:8080", "https://ab", "ftp://example.com"} {
		if _, err := NormalizeURL(bad); !errs.Is(err, errs.KindValidation) {
			t.Fatalf("NormalizeURL(%q) should fail with a validation error, got %v", bad, err)
		}
	}
}

func TestFilenameForURL(t *testing.T) {
	now := time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC)
	cases := []struct{ in, want string }{
		{"https://example.com/", "example.com-2024-03-09.pdf"},
		{"https://example.com/blog/post:1?x=1", "example.com-post-1-2024-03-09.pdf"},
		{"https://" + strings.Repeat("a", 60) + ".io", strings.Repeat("a", 50) + "-2024-03-09.pdf"},
		{"::not a url", "website-2024-03-09.pdf"},
	}
	for _, c := range cases {
		if got := FilenameForURL(c.in, now); got != c.want {
			t.Fatalf("FilenameForURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
