package network

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "stayreal-test" {
			t.Errorf("expected user agent header, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	client := NewClient(Options{Timeout: time.Second, UserAgent: "stayreal-test"})

	body, err := client.Fetch(context.Background(), server.URL+"/a.jpg")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "image-bytes" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestClientFetchNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(Options{})

	_, err := client.Fetch(context.Background(), server.URL+"/missing.jpg")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusNoContent {
		t.Fatalf("expected status 204 got %d", httpErr.StatusCode)
	}
}

func TestClientLimiterIsPerHost(t *testing.T) {
	client := NewClient(Options{Interval: time.Second})

	first := client.limiterFor("a.example.com")
	if first == nil {
		t.Fatal("expected limiter when interval is set")
	}
	if client.limiterFor("a.example.com") != first {
		t.Fatal("expected limiter to be reused for the same host")
	}
	if client.limiterFor("b.example.com") == first {
		t.Fatal("expected distinct limiter for another host")
	}

	if NewClient(Options{}).limiterFor("a.example.com") != nil {
		t.Fatal("expected no limiter without interval")
	}
}
