package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"google.golang.org/genai"
)

const (
	// DefaultMaxRetries bounds how often a throttled call is retried before
	// the error surfaces to the session.
	DefaultMaxRetries = 3

	defaultRetryBase = 2 * time.Second
)

// Retrying decorates a provider with bounded exponential backoff on
// quota and transient upstream failures. Non-retryable errors pass
// through immediately.
type Retrying struct {
	Inner      Provider
	MaxRetries int
	// Base is the first backoff delay; each retry doubles it.
	Base   time.Duration
	Logger *slog.Logger

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetrying(inner Provider, logger *slog.Logger) *Retrying {
	return &Retrying{
		Inner:      inner,
		MaxRetries: DefaultMaxRetries,
		Base:       defaultRetryBase,
		Logger:     logger,
	}
}

func (r *Retrying) Name() string  { return r.Inner.Name() }
func (r *Retrying) Model() string { return r.Inner.Model() }

func (r *Retrying) Chat(ctx context.Context, systemPrompt string, messages []Message, tools []ToolDefinition) (*Response, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := r.Inner.Chat(ctx, systemPrompt, messages, tools)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt >= r.maxRetries() || !Retryable(err) {
			break
		}

		delay := r.base() << uint(attempt)
		if r.Logger != nil {
			r.Logger.Warn("model call throttled, backing off",
				"provider", r.Inner.Name(), "attempt", attempt+1, "delay", delay, "error", err)
		}
		if err := r.doSleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("waiting to retry model call: %w", err)
		}
	}
	return nil, fmt.Errorf("model call failed after %d retries: %w", r.maxRetries(), lastErr)
}

func (r *Retrying) maxRetries() int {
	if r.MaxRetries > 0 {
		return r.MaxRetries
	}
	return DefaultMaxRetries
}

func (r *Retrying) base() time.Duration {
	if r.Base > 0 {
		return r.Base
	}
	return defaultRetryBase
}

func (r *Retrying) doSleep(ctx context.Context, d time.Duration) error {
	if r.sleep != nil {
		return r.sleep(ctx, d)
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

// Retryable reports whether an upstream error is worth retrying: quota
// exhaustion, throttling, or a transient server-side failure.
func Retryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return retryableStatus(anthropicErr.StatusCode)
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "429")
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
