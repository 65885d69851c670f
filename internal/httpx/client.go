package httpx

import (
	"errors"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const userAgent = "dotsign/1.0"

// New returns an HTTP client for node JSON-RPC traffic. Requests that hit a
// 429, a 5xx or a transport error are retried up to retries times when the
// request body can be replayed.
func New(timeout time.Duration, retries int) *http.Client {
	if retries < 0 {
		retries = 0
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &retryTransport{
			base:    http.DefaultTransport,
			retries: retries,
		},
	}
}

type retryTransport struct {
	base    http.RoundTripper
	retries int
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	retries := t.retries
	if req.Body != nil && req.GetBody == nil {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(Backoff(attempt)):
			}
		}

		clone := req.Clone(req.Context())
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			clone.Body = body
		}
		if clone.Header.Get("User-Agent") == "" {
			clone.Header.Set("User-Agent", userAgent)
		}

		resp, err := t.base.RoundTrip(clone)
		if err != nil {
			lastErr = err
			continue
		}
		if attempt < retries && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError) {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

// Timeout reports whether err is a network timeout.
func Timeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// Backoff is the exponential delay with jitter before retry attempt n (n >= 1).
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := 120 * time.Millisecond
	d := base * time.Duration(1<<uint(attempt-1))
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	jitter := time.Duration(rand.Intn(75)) * time.Millisecond
	return d + jitter
}

// RetryDelay adapts Backoff to retry-go's DelayType.
func RetryDelay(n uint, _ error, _ *retry.Config) time.Duration {
	return Backoff(int(n) + 1)
}
