// Package resilient implements the bounded rate-limit retry shared by all
// remote generation clients.
package resilient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 60 * time.Second
)

// Outcome classifies one physical attempt.
type Outcome int

const (
	Success Outcome = iota
	RateLimited
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RateLimited:
		return "rate_limited"
	default:
		return "failed"
	}
}

// Policy bounds the retries of one logical call.
type Policy struct {
	// Name tags log lines, e.g. "story" or "sound".
	Name        string
	MaxAttempts int
	Delay       time.Duration
	// Sleep waits between attempts. Nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Delay <= 0 {
		p.Delay = DefaultDelay
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	return p
}

// RateLimitError reports that every allowed retry was rate limited.
type RateLimitError struct {
	Attempts int
	Last     error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded after %d attempts", e.Attempts)
}

func (e *RateLimitError) Unwrap() error {
	return e.Last
}

// Do runs one logical call. attempt performs a single physical request,
// classify inspects its result and decode turns a successful response into
// the payload. Only rate-limited attempts are retried, at most MaxAttempts
// times, so attempt runs at most MaxAttempts+1 times.
func Do[R, T any](
	ctx context.Context,
	policy Policy,
	attempt func(ctx context.Context) (R, error),
	classify func(resp R, err error) Outcome,
	decode func(resp R) (T, error),
) (T, error) {
	var zero T
	p := policy.withDefaults()

	for n := 0; ; n++ {
		resp, err := attempt(ctx)
		switch classify(resp, err) {
		case Success:
			return decode(resp)
		case RateLimited:
			if n >= p.MaxAttempts {
				slog.Error("rate limit retries exhausted", "client", p.Name, "attempts", p.MaxAttempts)
				return zero, &RateLimitError{Attempts: p.MaxAttempts, Last: err}
			}
			slog.Warn("rate limited, retrying",
				"client", p.Name,
				"attempt", n+1,
				"max_attempts", p.MaxAttempts,
				"delay", p.Delay.String(),
			)
			if sleepErr := p.Sleep(ctx, p.Delay); sleepErr != nil {
				return zero, sleepErr
			}
		default:
			if err == nil {
				err = errors.New("request failed")
			}
			return zero, err
		}
	}
}

// Callback runs fn and reports the result through exactly one of the
// callbacks, carrying a human-readable message on failure.
func Callback[T any](ctx context.Context, fn func(ctx context.Context) (T, error), onSuccess func(T), onError func(string)) {
	result, err := fn(ctx)
	if err != nil {
		if onError != nil {
			onError(err.Error())
		}
		return
	}
	if onSuccess != nil {
		onSuccess(result)
	}
}

// IsRateLimitStatus reports whether an HTTP status signals rate limiting.
func IsRateLimitStatus(code int) bool {
	return code == http.StatusTooManyRequests
}

var rateLimitMarkers = []string{"rate limit", "quota", "too many requests"}

// IsRateLimitBody reports whether an error body carries a rate-limit marker.
func IsRateLimitBody(body string) bool {
	lowered := strings.ToLower(body)
	for _, marker := range rateLimitMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
