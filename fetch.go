package harvester

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrBlocked is returned when the remote host answers 403. The caller
// should skip the URL entirely; retrying only invites harder blocking.
var ErrBlocked = errors.New("access blocked by remote host")

// FetchConfig contains fetcher configuration
type FetchConfig struct {
	Timeout     time.Duration // per-request timeout
	MaxAttempts int           // total attempts including the first
	BackoffBase time.Duration // backoff between attempts is BackoffBase * attempt
	Delay       time.Duration // politeness delay after every successful fetch
	UserAgent   string
}

// DefaultFetchConfig returns default fetcher configuration
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:     20 * time.Second,
		MaxAttempts: 3,
		BackoffBase: 1500 * time.Millisecond,
		Delay:       500 * time.Millisecond,
		UserAgent:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0 Safari/537.36",
	}
}

var (
	fetchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_fetch_attempts_total",
			Help: "Fetch attempts by outcome (ok, retryable, blocked, failed, error).",
		},
		[]string{"outcome"},
	)
	fetchBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_fetch_bytes_total",
			Help: "Total bytes received by successful fetches.",
		},
	)
)

func init() {
	prometheus.MustRegister(fetchAttempts, fetchBytes)
}

// Fetcher wraps an HTTP client with timeout, bounded retry-with-backoff
// and a politeness delay. Retries apply to 429, 5xx and transport errors;
// a 403 aborts immediately with ErrBlocked; any other non-2xx status is a
// plain error without retry.
type Fetcher struct {
	client *resty.Client
	config FetchConfig
	sleep  func(time.Duration)
}

// NewFetcher creates a new Fetcher
func NewFetcher(config FetchConfig) *Fetcher {
	client := resty.New()
	client.SetTimeout(config.Timeout)
	client.SetHeader("User-Agent", config.UserAgent)
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.SetHeader("Accept-Language", "en-US,en;q=0.9")
	client.GetClient().Transport = otelhttp.NewTransport(client.GetClient().Transport)

	return &Fetcher{
		client: client,
		config: config,
		sleep:  time.Sleep,
	}
}

// Fetch retrieves url and returns the response body. Every outcome is
// logged with status, byte size and attempt number.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= f.config.MaxAttempts; attempt++ {
		resp, err := f.client.R().SetContext(ctx).Get(url)
		if err != nil {
			lastErr = err
			fetchAttempts.WithLabelValues("error").Inc()
			slog.Warn("fetch attempt failed", "url", url, "attempt", attempt, "error", err)
		} else {
			status := resp.StatusCode()
			size := len(resp.Body())
			slog.Debug("fetch", "url", url, "status", status, "bytes", size, "attempt", attempt)

			switch {
			case status == http.StatusTooManyRequests || status >= 500:
				lastErr = fmt.Errorf("http %d", status)
				fetchAttempts.WithLabelValues("retryable").Inc()
				slog.Warn("fetch got retryable status", "url", url, "status", status, "attempt", attempt)
			case status == http.StatusForbidden:
				fetchAttempts.WithLabelValues("blocked").Inc()
				slog.Warn("remote host refused access, not retrying", "url", url)
				return nil, ErrBlocked
			case status < 200 || status >= 300:
				fetchAttempts.WithLabelValues("failed").Inc()
				return nil, fmt.Errorf("http %d fetching %s", status, url)
			default:
				fetchAttempts.WithLabelValues("ok").Inc()
				fetchBytes.Add(float64(size))
				f.sleep(f.config.Delay)
				return resp.Body(), nil
			}
		}

		if attempt < f.config.MaxAttempts {
			f.sleep(f.config.BackoffBase * time.Duration(attempt))
		}
	}

	return nil, fmt.Errorf("fetch %s: %w", url, lastErr)
}
