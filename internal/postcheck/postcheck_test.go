package postcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckAcceptsLivePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>A post</title></head><body>content</body></html>`))
	}))
	defer srv.Close()

	c := NewChecker(2*time.Second, 1, nil)
	if err := c.Check(context.Background(), srv.URL+"/p/123"); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestCheckRejectsMissingPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewChecker(2*time.Second, 1, nil)
	if err := c.Check(context.Background(), srv.URL+"/p/deleted"); err == nil {
		t.Error("404 page passed the check")
	}
}

func TestCheckRejectsBadURL(t *testing.T) {
	c := NewChecker(time.Second, 0, nil)
	for _, bad := range []string{"", "not-a-url", "ftp://example.com/x"} {
		if err := c.Check(context.Background(), bad); err == nil {
			t.Errorf("Check(%q) passed", bad)
		}
	}
}

func TestCheckRetriesTransientFailure(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`<html><title>ok</title><body>x</body></html>`))
	}))
	defer srv.Close()

	c := NewChecker(2*time.Second, 2, nil)
	if err := c.Check(context.Background(), srv.URL); err != nil {
		t.Errorf("Check after retry: %v", err)
	}
	if calls < 2 {
		t.Errorf("calls = %d, want retry", calls)
	}
}
