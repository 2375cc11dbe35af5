// Package httpclient implements the dual-window, proactively-limited HTTP
// client that every Riot API call goes through. The dual-window bucket and
// response classification are adapted from the teacher's
// internal/riot/client.go waitForRateLimit/doRequest pair, generalized into a
// standalone component per the Rate-Limited HTTP Client contract, with retry
// and backoff semantics grounded on the original implementation's
// scripts/rate_limiting.py (exponential backoff with jitter, Retry-After
// precedence, minimum retry delay floor).
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	tfterrors "github.com/tft-collector/tftcollector/internal/errors"
	"github.com/tft-collector/tftcollector/internal/telemetry"
)

// Limits configures the dual-window token budget. Rlong is checked
// proactively: if fewer than SafetyMargin tokens remain in the long window
// the client sleeps before issuing the request rather than issuing it and
// discovering a 429.
type Limits struct {
	ShortWindow       time.Duration
	ShortWindowBudget int
	LongWindow        time.Duration
	LongWindowBudget  int
	SafetyMargin      int
}

// DefaultLimits mirrors the teacher's conservative dev-key defaults: 15
// req/s against Riot's documented 20, 90 req/2min against Riot's documented
// 100.
func DefaultLimits() Limits {
	return Limits{
		ShortWindow:       time.Second,
		ShortWindowBudget: 15,
		LongWindow:        2 * time.Minute,
		LongWindowBudget:  90,
		SafetyMargin:      5,
	}
}

// RetryPolicy governs backoff and retry-cap behavior for 5xx/TRANSPORT
// failures and the ceiling applied to 429 backoff.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MinDelay          time.Duration
	MaxRateLimitDelay time.Duration
	ExponentialBase   float64
}

// DefaultRetryPolicy matches the design defaults in the specification: a
// retry cap of 3 for 5xx/TRANSPORT, and a 120s ceiling on 429 backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        3,
		BaseDelay:         time.Second,
		MinDelay:          time.Second,
		MaxRateLimitDelay: 120 * time.Second,
		ExponentialBase:   2.0,
	}
}

// Client is the shared, rate-limited HTTP client. One Client instance is
// constructed per region and shared by every worker in the Collection
// Engine, per the Concurrency & Resource Model's "one token-bucket pair per
// region" requirement.
type Client struct {
	httpClient *http.Client
	limits     Limits
	retry      RetryPolicy
	logger     *slog.Logger

	bucket *dualWindowBucket
}

// New constructs a Client with the given window limits, retry policy and
// per-request timeout. Per-request headers (e.g. the X-Riot-Token credential
// header) are passed to Do.
func New(limits Limits, retry RetryPolicy, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limits:     limits,
		retry:      retry,
		logger:     logger,
		bucket:     newDualWindowBucket(limits),
	}
}

// Do issues a GET request against url with the given header set, decodes a
// JSON body into result, and applies the full classification/retry policy
// described in the Rate-Limited HTTP Client contract.
func (c *Client) Do(ctx context.Context, url string, header http.Header, result interface{}) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := c.bucket.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("httpclient: build request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if !isRetryableTransport(err) || attempt >= c.retry.MaxRetries {
				return &tfterrors.HTTPError{Category: tfterrors.CategoryTransport, Err: err}
			}
			c.sleep(ctx, c.backoff(attempt))
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if readErr != nil {
				return &tfterrors.HTTPError{StatusCode: resp.StatusCode, Category: tfterrors.CategoryTransport, Err: readErr}
			}
			if result == nil {
				return nil
			}
			if err := json.Unmarshal(body, result); err != nil {
				return &tfterrors.HTTPError{StatusCode: resp.StatusCode, Category: tfterrors.CategoryParse, Err: err}
			}
			return nil

		case resp.StatusCode == http.StatusTooManyRequests:
			delay := c.retryAfterDelay(resp.Header, attempt)
			c.logger.Warn("rate limited by upstream", "delay", delay, "url", url, "correlation_id", telemetry.CorrelationID(ctx))
			c.sleep(ctx, delay)
			continue

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return &tfterrors.HTTPError{StatusCode: resp.StatusCode, Category: tfterrors.CategoryAuthExpired, Err: tfterrors.ErrAuthExpired}

		case resp.StatusCode == http.StatusNotFound:
			return &tfterrors.HTTPError{StatusCode: resp.StatusCode, Category: tfterrors.CategoryNotFound, Err: tfterrors.ErrNotFound}

		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error %d", resp.StatusCode)
			if attempt >= c.retry.MaxRetries {
				return &tfterrors.HTTPError{StatusCode: resp.StatusCode, Category: tfterrors.CategoryServerError, Err: lastErr}
			}
			c.sleep(ctx, c.backoff(attempt))
			continue

		default:
			return &tfterrors.HTTPError{StatusCode: resp.StatusCode, Category: tfterrors.CategoryTransport, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
		}
	}
}

// retryAfterDelay honors the Retry-After header when present, else falls
// back to a capped exponential backoff, matching scripts/rate_limiting.py's
// precedence: `base_delay = max(min_retry_delay, retry_after)` when the
// header is present.
func (c *Client) retryAfterDelay(h http.Header, attempt int) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			d := time.Duration(secs) * time.Second
			if d < c.retry.MinDelay {
				d = c.retry.MinDelay
			}
			if d > c.retry.MaxRateLimitDelay {
				d = c.retry.MaxRateLimitDelay
			}
			return d
		}
	}
	return c.backoff(attempt)
}

// backoff computes exponential backoff with full jitter, capped at
// MaxRateLimitDelay, following the original implementation's
// `retry_delay * (exponential_base ** attempt)` with a randomized jitter
// factor applied on top.
func (c *Client) backoff(attempt int) time.Duration {
	base := float64(c.retry.BaseDelay) * math.Pow(c.retry.ExponentialBase, float64(attempt))
	jittered := base * (0.5 + rand.Float64())
	d := time.Duration(jittered)
	if d < c.retry.MinDelay {
		d = c.retry.MinDelay
	}
	if d > c.retry.MaxRateLimitDelay {
		d = c.retry.MaxRateLimitDelay
	}
	return d
}

func (c *Client) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// isRetryableTransport distinguishes a permanent DNS lookup failure (the
// hostname does not exist; retrying wastes an attempt and delays the
// AUTH_EXPIRED/NOT_FOUND path the caller would otherwise reach) from every
// other transport error, which is presumed transient and worth retrying.
func isRetryableTransport(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return false
	}
	var netErr net.Error
	if netErrAs(err, &netErr) {
		return true
	}
	return true
}

// netErrAs is a small indirection so the transport-retryability check can be
// unit tested by substituting non-net errors without importing errors.As at
// every call site.
func netErrAs(err error, target *net.Error) bool {
	type wrapper interface{ Unwrap() error }
	for err != nil {
		if ne, ok := err.(net.Error); ok {
			*target = ne
			return true
		}
		w, ok := err.(wrapper)
		if !ok {
			return false
		}
		err = w.Unwrap()
	}
	return false
}
