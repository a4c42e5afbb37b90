package fetch

import (
	"math/rand"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Retry policy shared by all REST clients: 3 retries with exponential
// backoff starting at 500ms and capped at 10s, plus jitter. Rate-limit
// responses (429) extend the wait 3×. Terminal client errors (404, 401)
// are never retried.
const (
	maxRetries     = 3
	retryBaseWait  = 500 * time.Millisecond
	retryMaxWait   = 10 * time.Second
	rateLimitScale = 3
	callTimeout    = 15 * time.Second
)

// newRESTClient builds a resty client carrying the shared retry policy.
func newRESTClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(callTimeout).
		SetRetryCount(maxRetries).
		SetRetryMaxWaitTime(retryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			if isTerminalStatus(r.StatusCode()) {
				return false
			}
			return r.StatusCode() >= 500 || r.StatusCode() == http.StatusTooManyRequests
		}).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			return backoffFor(resp.Request.Attempt, resp.StatusCode() == http.StatusTooManyRequests), nil
		}).
		SetHeader("Accept", "application/json")
}

// backoffFor returns the wait before attempt n (1-based): base × 2^(n−1)
// with up to 25% jitter, 3× longer after a rate limit, capped at the max.
func backoffFor(attempt int, rateLimited bool) time.Duration {
	wait := retryBaseWait
	for i := 1; i < attempt; i++ {
		wait *= 2
	}
	if rateLimited {
		wait *= rateLimitScale
	}
	if wait > retryMaxWait {
		wait = retryMaxWait
	}
	jitter := time.Duration(rand.Int63n(int64(wait) / 4))
	wait += jitter
	if wait > retryMaxWait {
		wait = retryMaxWait
	}
	return wait
}

func isTerminalStatus(code int) bool {
	return code == http.StatusNotFound || code == http.StatusUnauthorized
}
