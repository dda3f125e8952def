package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyProvider fails a set number of times before succeeding.
type flakyProvider struct {
	failures int
	err      error
	calls    int
}

func (f *flakyProvider) Name() string  { return "flaky" }
func (f *flakyProvider) Model() string { return "flaky-1" }

func (f *flakyProvider) Chat(ctx context.Context, systemPrompt string, messages []Message, tools []ToolDefinition) (*Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &Response{Content: "ok", StopReason: StopReasonEndTurn}, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestRetryingRecoversFromThrottling(t *testing.T) {
	inner := &flakyProvider{failures: 2, err: errors.New("429 rate limit exceeded")}
	r := NewRetrying(inner, nil)
	r.sleep = noSleep

	resp, err := r.Chat(context.Background(), "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingGivesUpAfterMaxRetries(t *testing.T) {
	inner := &flakyProvider{failures: 10, err: errors.New("RESOURCE_EXHAUSTED: quota")}
	r := NewRetrying(inner, nil)
	r.sleep = noSleep

	_, err := r.Chat(context.Background(), "", nil, nil)
	require.Error(t, err)
	assert.Equal(t, DefaultMaxRetries+1, inner.calls)
}

func TestRetryingDoesNotRetryPermanentErrors(t *testing.T) {
	inner := &flakyProvider{failures: 10, err: errors.New("invalid request: unknown model")}
	r := NewRetrying(inner, nil)
	r.sleep = noSleep

	_, err := r.Chat(context.Background(), "", nil, nil)
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(errors.New("429 too many requests")))
	assert.True(t, Retryable(errors.New("RESOURCE_EXHAUSTED")))
	assert.True(t, Retryable(errors.New("upstream overloaded")))
	assert.False(t, Retryable(errors.New("invalid api key")))
}
