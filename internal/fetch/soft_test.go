package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestSoftFetcher_ReturnsBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "proxies: []\n")
	}))
	defer ts.Close()

	f := &SoftFetcher{}
	if got := f.Fetch(context.Background(), ts.URL, nil); got != "proxies: []\n" {
		t.Fatalf("got %q", got)
	}
}

func TestSoftFetcher_FailuresYieldEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer ts.Close()

	var seen []error
	f := &SoftFetcher{OnError: func(err error) { seen = append(seen, err) }}

	for _, u := range []string{ts.URL, "ftp://example.com/x", "http://127.0.0.1:1/unreachable"} {
		if got := f.Fetch(context.Background(), u, nil); got != "" {
			t.Fatalf("Fetch(%q)=%q, want empty", u, got)
		}
	}
	if len(seen) != 3 {
		t.Fatalf("OnError calls=%d, want 3", len(seen))
	}
	var fe *FetchError
	if !errors.As(seen[0], &fe) || fe.AppError.Code != "FETCH_FAILED" {
		t.Fatalf("first error=%v, want FETCH_FAILED", seen[0])
	}
}

func TestSoftFetcher_PerRequestHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, r.Header.Get("User-Agent")+"|"+r.Header.Get("X-Default"))
	}))
	defer ts.Close()

	f := &SoftFetcher{Options: Options{Header: http.Header{"X-Default": {"d"}, "User-Agent": {"base"}}}}

	var wg sync.WaitGroup
	errs := make(chan string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ua := fmt.Sprintf("client-%d", i)
			got := f.Fetch(context.Background(), ts.URL, http.Header{"user-agent": {ua}})
			if got != ua+"|d" {
				errs <- fmt.Sprintf("request %d got %q", i, got)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatal(e)
	}

	if got := f.Options.Header.Get("User-Agent"); got != "base" {
		t.Fatalf("shared default header mutated: %q", got)
	}
	if got := f.Fetch(context.Background(), ts.URL, nil); got != "base|d" {
		t.Fatalf("default headers not applied: %q", got)
	}
}

func TestRedactURL(t *testing.T) {
	got := RedactURL("https://user:pw@example.com/sub/path?token=secret#frag")
	if got != "https://example.com/sub/path" {
		t.Fatalf("got %q", got)
	}
}
