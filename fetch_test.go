package harvester

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestFetcher() (*Fetcher, *[]time.Duration) {
	f := NewFetcher(DefaultFetchConfig())
	var sleeps []time.Duration
	f.sleep = func(d time.Duration) {
		sleeps = append(sleeps, d)
	}
	return f, &sleeps
}

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	f, sleeps := newTestFetcher()
	body, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("Expected body %q, got %q", "hello", body)
	}

	// Politeness delay only
	if len(*sleeps) != 1 || (*sleeps)[0] != f.config.Delay {
		t.Errorf("Expected one politeness sleep of %v, got %v", f.config.Delay, *sleeps)
	}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f, sleeps := newTestFetcher()
	body, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("Expected body %q, got %q", "ok", body)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}

	// Backoff grows with the attempt number, politeness delay last
	want := []time.Duration{
		f.config.BackoffBase,
		f.config.BackoffBase * 2,
		f.config.Delay,
	}
	if len(*sleeps) != len(want) {
		t.Fatalf("Expected sleeps %v, got %v", want, *sleeps)
	}
	for i := range want {
		if (*sleeps)[i] != want[i] {
			t.Errorf("Sleep %d: expected %v, got %v", i, want[i], (*sleeps)[i])
		}
	}
}

func TestFetchExhaustsRetries(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	f, _ := newTestFetcher()
	_, err := f.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error after exhausted retries")
	}
	if attempts != f.config.MaxAttempts {
		t.Errorf("Expected %d attempts, got %d", f.config.MaxAttempts, attempts)
	}
}

func TestFetchBlockedNoRetry(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f, sleeps := newTestFetcher()
	_, err := f.Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("Expected ErrBlocked, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
	if len(*sleeps) != 0 {
		t.Errorf("Expected no sleeps, got %v", *sleeps)
	}
}

func TestFetchClientErrorNoRetry(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f, _ := newTestFetcher()
	_, err := f.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error for 404")
	}
	if errors.Is(err, ErrBlocked) {
		t.Fatal("404 must not map to ErrBlocked")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestFetchSendsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f, _ := newTestFetcher()
	if _, err := f.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotUA != f.config.UserAgent {
		t.Errorf("Expected User-Agent %q, got %q", f.config.UserAgent, gotUA)
	}
}
