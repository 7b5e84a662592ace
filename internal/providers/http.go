// Package providers holds the upstream adapters: the official stats feed, advanced-metrics
// leaderboards, fantasy roster snapshots and the authoritative player-ID map.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrUpstreamStatus is wrapped by every non-2xx response
var ErrUpstreamStatus = errors.New("upstream returned non-success status")

const userAgent = "player-valuation/1.0"

// Fetcher issues single-attempt GETs with a per-host rate limit. It never retries.
type Fetcher struct {
	httpClient *http.Client
	logger     *logrus.Logger
	rps        rate.Limit
	burst      int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a fetcher. rps <= 0 disables rate limiting.
func NewFetcher(rps float64, burst int, logger *logrus.Logger) *Fetcher {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Fetcher{
		httpClient: &http.Client{
			// request contexts carry the real deadlines
			Timeout: 30 * time.Second,
		},
		logger:   logger,
		rps:      limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Get fetches rawURL and returns the decoded body
func (f *Fetcher) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	if err := f.limiter(parsed.Host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Encoding", "gzip, br, zstd")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", parsed.Host, err)
	}
	defer resp.Body.Close()

	f.logger.WithFields(logrus.Fields{
		"host":     parsed.Host,
		"path":     parsed.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("Upstream response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %d from %s: %s", ErrUpstreamStatus, resp.StatusCode, parsed.Host, strings.TrimSpace(string(snippet)))
	}

	return readBodyDecode(resp)
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(f.rps, f.burst)
		f.limiters[host] = l
	}
	return l
}

// readBodyDecode reads the body and decompresses it based on Content-Encoding (gzip, br, zstd)
func readBodyDecode(resp *http.Response) ([]byte, error) {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch {
	case strings.Contains(enc, "br"):
		return io.ReadAll(brotli.NewReader(resp.Body))
	case strings.Contains(enc, "zstd"):
		r, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case strings.Contains(enc, "gzip"):
		r, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return io.ReadAll(resp.Body)
	}
}
