// Package pexels adapts the Pexels video search API to the VideoSearcher
// port. Transient failures are absorbed here so the resolver's fallback
// tiers only ever see "results" or "no results", with one exception: a
// rejected credential surfaces as ports.ErrInvalidAPIKey.
package pexels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ricardomdn/broll/internal/ports"
	"github.com/ricardomdn/broll/internal/types"
)

const defaultBaseURL = "https://api.pexels.com"

type Adapter struct {
	baseURL    string
	perPage    int
	maxRetries int
	backoff    time.Duration
	client     *http.Client
	logf       func(format string, args ...any)
}

type Option func(*Adapter)

// WithBaseURL points the adapter at a different endpoint. Tests use it with
// an httptest server.
func WithBaseURL(u string) Option { return func(a *Adapter) { a.baseURL = u } }

// WithRetry overrides the rate-limit retry bound and base backoff delay.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(a *Adapter) {
		a.maxRetries = maxRetries
		a.backoff = backoff
	}
}

func WithPerPage(n int) Option { return func(a *Adapter) { a.perPage = n } }

func WithLogf(logf func(format string, args ...any)) Option {
	return func(a *Adapter) { a.logf = logf }
}

func New(opts ...Option) *Adapter {
	a := &Adapter{
		baseURL:    defaultBaseURL,
		perPage:    15,
		maxRetries: 3,
		backoff:    500 * time.Millisecond,
		client:     &http.Client{Timeout: 30 * time.Second},
		logf:       func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type searchResponse struct {
	Page         int           `json:"page"`
	PerPage      int           `json:"per_page"`
	Videos       []types.Video `json:"videos"`
	TotalResults int           `json:"total_results"`
}

// Search requests one landscape-oriented page of candidates. HTTP 429 is
// retried up to the configured bound with linearly increasing backoff, then
// demoted to an empty result. HTTP 401 fails immediately with
// ports.ErrInvalidAPIKey. Every other failure, including network errors, is
// logged and demoted to an empty result.
func (a *Adapter) Search(ctx context.Context, apiKey, query string, page int) ([]types.Video, error) {
	if page < 1 {
		page = 1
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", strconv.Itoa(a.perPage))
	q.Set("page", strconv.Itoa(page))
	q.Set("orientation", "landscape")
	reqURL := a.baseURL + "/videos/search?" + q.Encode()

	for attempt := 0; ; attempt++ {
		videos, retryable, err := a.doSearch(ctx, apiKey, reqURL)
		if err != nil {
			return nil, err
		}
		if !retryable {
			return videos, nil
		}
		if attempt >= a.maxRetries {
			a.logf("pexels: rate limited for %q, giving up after %d retries", query, a.maxRetries)
			return nil, nil
		}
		wait := a.backoff * time.Duration(attempt+1)
		a.logf("pexels: rate limited for %q, retry %d in %s", query, attempt+1, wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// doSearch performs one request. retryable is true only for HTTP 429.
func (a *Adapter) doSearch(ctx context.Context, apiKey, reqURL string) (videos []types.Video, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Authorization", apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		a.logf("pexels: request failed: %v", err)
		return nil, false, nil
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, false, fmt.Errorf("pexels: %w", ports.ErrInvalidAPIKey)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		a.logf("pexels: unexpected status %d", resp.StatusCode)
		return nil, false, nil
	}

	var data searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		a.logf("pexels: decode response: %v", err)
		return nil, false, nil
	}
	return data.Videos, false, nil
}
