package datasource

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"quantlab/internal/config"
)

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "connection reset" }
func (fakeNetError) Timeout() bool   { return true }
func (fakeNetError) Temporary() bool { return true }

func retryClient(maxAttempts int) *Client {
	return &Client{
		cfg: config.DataConfig{
			Retry: config.RetryConfig{
				MaxAttempts: maxAttempts,
				MinDelay:    time.Millisecond,
				MaxDelay:    2 * time.Millisecond,
			},
		},
		logger: zap.NewNop(),
	}
}

func TestCallWithRetry_RetriesNetworkErrors(t *testing.T) {
	c := retryClient(3)

	calls := 0
	err := c.callWithRetry(context.Background(), "test_op", func() error {
		calls++
		if calls < 3 {
			return fakeNetError{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("callWithRetry returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (two retries then success)", calls)
	}
}

func TestCallWithRetry_StopsAtMaxAttempts(t *testing.T) {
	c := retryClient(3)

	calls := 0
	err := c.callWithRetry(context.Background(), "test_op", func() error {
		calls++
		return fakeNetError{}
	})
	if err == nil {
		t.Fatal("callWithRetry expected error after exhausting attempts, got nil")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want exactly max_attempts 3", calls)
	}
}

func TestCallWithRetry_NonRetryableFailsFast(t *testing.T) {
	c := retryClient(5)

	calls := 0
	boom := errors.New("参数非法")
	err := c.callWithRetry(context.Background(), "test_op", func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("callWithRetry error = %v, want the original error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 for a non-retryable error", calls)
	}
}

func TestCallWithRetry_HonorsContextCancellation(t *testing.T) {
	c := retryClient(100)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := c.callWithRetry(ctx, "test_op", func() error {
		calls++
		cancel()
		return fakeNetError{}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("callWithRetry error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 before cancellation takes effect", calls)
	}
}

func TestClassifyError_ContextErrorsNotRetryable(t *testing.T) {
	c := retryClient(3)

	_, retry := c.classifyError(context.DeadlineExceeded)
	if retry {
		t.Error("context.DeadlineExceeded classified retryable, want non-retryable")
	}

	_, retry = c.classifyError(fakeNetError{})
	if !retry {
		t.Error("net.Error classified non-retryable, want retryable")
	}
}
