package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Retry is the exponential backoff policy shared by the HTTP clients.
// Attempt n waits BaseDelay*2^(n-1), capped at MaxDelay when MaxDelay is set.
type Retry struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Sleep replaces the timer wait; tests use it to record delays.
	Sleep func(time.Duration)
}

// Do runs op until it succeeds, the attempts are used up, ctx ends, or
// retryable rejects the error. retryable may return a server-requested delay
// that overrides the backoff.
func (r Retry) Do(ctx context.Context, op func() error, retryable func(error) (time.Duration, bool)) error {
	attempts := max(r.Attempts, 1)
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || attempt >= attempts || ctx.Err() != nil {
			return err
		}
		hint, ok := retryable(err)
		if !ok {
			return err
		}
		if werr := r.wait(ctx, r.delay(attempt, hint)); werr != nil {
			return werr
		}
	}
}

func (r Retry) delay(attempt int, hint time.Duration) time.Duration {
	d := hint
	if d <= 0 {
		d = r.BaseDelay
		for i := 1; i < attempt && (r.MaxDelay <= 0 || d < r.MaxDelay); i++ {
			d *= 2
		}
	}
	if r.MaxDelay > 0 {
		d = min(d, r.MaxDelay)
	}
	return max(d, 0)
}

func (r Retry) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if r.Sleep != nil {
		r.Sleep(d)
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// StatusError is a non-2xx response from an upstream API.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Service, e.StatusCode, e.Body)
}

// ReadBody returns the body of a 2xx response, or a *StatusError carrying a
// body snippet and any Retry-After delay.
func ReadBody(service string, resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", service, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := ParseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &StatusError{
			Service:    service,
			StatusCode: resp.StatusCode,
			Body:       Snippet(string(body), 200),
			RetryAfter: retryAfter,
		}
	}
	return body, nil
}

// Temporary reports whether err is a request timeout, rate limit, server
// error, or network timeout, along with any server-requested delay.
func Temporary(err error) (time.Duration, bool) {
	if errors.Is(err, context.Canceled) {
		return 0, false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.StatusCode
		ok := code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
		return statusErr.RetryAfter, ok
	}
	var netErr net.Error
	return 0, errors.As(err, &netErr) && netErr.Timeout()
}

// ParseRetryAfter accepts delay-seconds or an HTTP date.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, seconds >= 0
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d >= 0 {
			return d, true
		}
	}
	return 0, false
}

// Snippet collapses whitespace and truncates s to limit runes for error
// messages.
func Snippet(s string, limit int) string {
	clean := strings.Join(strings.Fields(s), " ")
	if clean == "" {
		return "<empty>"
	}
	if runes := []rune(clean); len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
