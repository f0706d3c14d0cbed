// Package retry runs provider requests again when a failure is temporary.
//
// Policy.Do drives the loop: exponential backoff from BaseDelay capped at
// MaxDelay, a server-supplied Retry-After taking precedence, and an
// immediate stop once the context is done. Errors opt in to retries by
// implementing Temporary; StatusError does so for HTTP 408, 429 and 5xx.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Sleep replaces the real wait when set.
	Sleep func(time.Duration)
}

// Once is a policy that never retries.
var Once = Policy{Attempts: 1}

// Do calls op until it succeeds, fails permanently, or runs out of attempts.
// An error that survives every attempt is wrapped with the attempt count.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := max(p.Attempts, 1)
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		wait, temporary := Temporary(err)
		if !temporary || ctx.Err() != nil {
			return err
		}
		if attempt >= attempts {
			if attempts == 1 {
				return err
			}
			return fmt.Errorf("failed after %d attempts: %w", attempts, err)
		}
		delay := p.Backoff(attempt)
		if wait > 0 {
			delay = p.capDelay(wait)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Backoff returns the wait after the given 1-based attempt: BaseDelay,
// doubling each time, never above MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}
		delay *= 2
	}
	return p.capDelay(delay)
}

func (p Policy) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if delay <= 0 {
		return nil
	}
	if p.Sleep != nil {
		p.Sleep(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Temporary reports whether err is worth retrying and how long the server
// asked the caller to wait, if it said.
func Temporary(err error) (time.Duration, bool) {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.RetryAfter, statusErr.Temporary()
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) && temp.Temporary() {
		return 0, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return 0, true
	}
	return 0, false
}

const maxErrorBody = 512

// StatusError is a non-2xx response from a provider.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

// NewStatusError captures resp and a trimmed copy of its body.
func NewStatusError(service string, resp *http.Response, body []byte) *StatusError {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > maxErrorBody {
		snippet = snippet[:maxErrorBody] + "..."
	}
	return &StatusError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Body:       snippet,
		RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request: http %d: %s", e.Service, e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= http.StatusInternalServerError
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP
// date. Missing, malformed, or past values yield zero.
func ParseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(max(seconds, 0)) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		return max(time.Until(when), 0)
	}
	return 0
}
