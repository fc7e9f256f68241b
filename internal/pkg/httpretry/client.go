// Package httpretry provides a paced HTTP client with automatic retry on
// rate-limit responses, used for all outbound provider API calls.
package httpretry

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and *PacedClient satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrRateLimited is returned when the provider keeps responding 429 after
// the retry budget is exhausted. Callers treat it as "no data" for the
// request, never as a fatal condition.
var ErrRateLimited = fmt.Errorf("httpretry: rate limit retries exhausted")

// PacedClient wraps an HTTPDoer with two provider-protection mechanisms:
//
//   - a minimum spacing between consecutive requests, enforced before every
//     attempt so steady-state throughput stays under the provider's cap no
//     matter how many callers share the client;
//   - retry on 429 honoring the server's Retry-After hint when present,
//     otherwise exponential backoff (1s, 2s, 4s, ...) up to maxRetries.
//
// Any other non-2xx status or transport error is returned immediately
// without retrying.
type PacedClient struct {
	client     HTTPDoer
	spacing    time.Duration
	maxRetries int
	baseDelay  time.Duration

	// sleep is replaceable in tests so backoff sequences can be asserted
	// without real waiting.
	sleep func(time.Duration)

	mu          sync.Mutex
	nextAllowed time.Time
}

// NewPacedClient creates a PacedClient wrapping the given HTTPDoer.
// If client is nil, a default http.Client with 30s timeout is used.
// spacing is the minimum gap between requests (0 disables pacing).
// maxRetries is the 429 retry budget (default 5).
func NewPacedClient(client HTTPDoer, spacing time.Duration, maxRetries int) *PacedClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &PacedClient{
		client:     client,
		spacing:    spacing,
		maxRetries: maxRetries,
		baseDelay:  1 * time.Second,
		sleep:      time.Sleep,
	}
}

// SetSleeper replaces the sleep function (tests only).
func (pc *PacedClient) SetSleeper(fn func(time.Duration)) {
	pc.sleep = fn
}

// Do executes the HTTP request with pacing and 429 retry.
// Non-429 responses are returned as-is so the caller can inspect the
// status code and body.
func (pc *PacedClient) Do(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if err := req.Context().Err(); err != nil {
			return nil, err
		}

		pc.pace()

		resp, err := pc.client.Do(req)
		if err != nil {
			// Transport failure is not retried; the caller degrades to
			// "no data" for this request.
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		if attempt >= pc.maxRetries {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("%w after %d attempts for %s %s",
				ErrRateLimited, attempt+1, req.Method, req.URL.Path)
		}

		delay := pc.backoffDelay(resp, attempt)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		log.Printf("httpretry: 429 from %s, retry %d/%d in %s",
			req.URL.Host, attempt+1, pc.maxRetries, delay)
		pc.sleep(delay)
	}
}

// pace blocks until the minimum spacing since the previous request has
// elapsed, then reserves the next slot.
func (pc *PacedClient) pace() {
	if pc.spacing <= 0 {
		return
	}
	pc.mu.Lock()
	wait := time.Until(pc.nextAllowed)
	now := time.Now()
	if wait > 0 {
		pc.nextAllowed = now.Add(wait + pc.spacing)
	} else {
		pc.nextAllowed = now.Add(pc.spacing)
	}
	pc.mu.Unlock()

	if wait > 0 {
		pc.sleep(wait)
	}
}

// backoffDelay returns the wait before the next attempt: the server's
// Retry-After hint when present, otherwise baseDelay * 2^attempt.
func (pc *PacedClient) backoffDelay(resp *http.Response, attempt int) time.Duration {
	if hint := resp.Header.Get("Retry-After"); hint != "" {
		if secs, err := strconv.Atoi(hint); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(hint); err == nil {
			if d := time.Until(at); d > 0 {
				return d
			}
			return 0
		}
	}
	return pc.baseDelay << uint(attempt)
}
