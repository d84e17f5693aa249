// Package httpretry resends HTTP requests on rate limiting, server errors and
// transport failures with capped exponential backoff.
package httpretry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// DefaultMaxRetries is the number of extra attempts after the first request.
const DefaultMaxRetries = 5

// Do sends the request produced by newReq and retries on 429, 5xx and
// transport errors. Retry-After (in seconds) is honoured. The returned
// response is the first non-retryable one; the caller closes its body.
func Do(ctx context.Context, client *http.Client, maxRetries int, newReq func() (*http.Request, error)) (*http.Response, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("send request: %w", err)
			if attempt == maxRetries || ctx.Err() != nil {
				return nil, lastErr
			}
			if err := sleep(ctx, Delay(attempt)); err != nil {
				return nil, err
			}
			continue
		}
		if !Retryable(resp.StatusCode) || attempt == maxRetries {
			return resp, nil
		}
		wait := Delay(attempt)
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
				wait = time.Duration(secs) * time.Second
			}
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// Retryable reports whether a status code warrants another attempt.
func Retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Delay is the backoff before retry number attempt: 200ms doubling, capped at 5s.
func Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return 5 * time.Second
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
