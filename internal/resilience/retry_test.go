package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coldvox/engine/internal/apperr"
)

func TestRetrySucceedsFirst(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Errorf("Retry() = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, IsRetryable: apperr.IsRetryable}
	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return apperr.New(apperr.STTTransient, "transient")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Retry() = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryExhaustsRetries(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, IsRetryable: apperr.IsRetryable}
	calls := 0
	retryErr := apperr.New(apperr.STTTransient, "always fail")

	err := Retry(context.Background(), cfg, func() error {
		calls++
		return retryErr
	})

	if !errors.Is(err, retryErr) {
		t.Errorf("Retry() = %v, want %v", err, retryErr)
	}
	if calls != 3 { // initial + 2 retries
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryNonRetryableError(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, IsRetryable: apperr.IsRetryable}
	calls := 0
	nonRetryErr := apperr.New(apperr.STTConfigurationError, "bad config")

	err := Retry(context.Background(), cfg, func() error {
		calls++
		return nonRetryErr
	})

	if !errors.Is(err, nonRetryErr) {
		t.Errorf("Retry() = %v, want %v", err, nonRetryErr)
	}
	if calls != 1 { // Should not retry non-retryable errors
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxRetries: 10, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, IsRetryable: apperr.IsRetryable}
	calls := 0

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, cfg, func() error {
		calls++
		return apperr.New(apperr.STTTransient, "fail")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() = %v, want context.Canceled", err)
	}
}

func TestIsRetryableAppErr(t *testing.T) {
	tests := []struct {
		code apperr.Code
		want bool
	}{
		{apperr.STTTransient, true},
		{apperr.STTDecodeTimeout, true},
		{apperr.InjectionTimeout, true},
		{apperr.InjectionTransient, true},
		{apperr.AudioNoDataTimeout, true},
		{apperr.STTConfigurationError, false},
		{apperr.STTBackendUnavailable, false},
		{apperr.InjectionPermissionDenied, false},
	}

	for _, tt := range tests {
		err := apperr.New(tt.code, "test")
		if got := apperr.IsRetryable(err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestSTTRetryConfig(t *testing.T) {
	cfg := STTRetryConfig()
	if cfg.MaxRetries != STTMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.MaxRetries, STTMaxRetries)
	}
	if cfg.BaseDelay != STTBaseDelay {
		t.Errorf("BaseDelay = %v, want %v", cfg.BaseDelay, STTBaseDelay)
	}
	if cfg.MaxDelay != STTMaxDelay {
		t.Errorf("MaxDelay = %v, want %v", cfg.MaxDelay, STTMaxDelay)
	}
}

func TestBackoffDelay(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, JitterFactor: 0}

	d0 := backoffDelay(cfg, 0)
	d1 := backoffDelay(cfg, 1)
	d2 := backoffDelay(cfg, 2)

	if d0 != 100*time.Millisecond {
		t.Errorf("attempt 0 delay = %v, want 100ms", d0)
	}
	if d1 != 200*time.Millisecond {
		t.Errorf("attempt 1 delay = %v, want 200ms", d1)
	}
	if d2 != 400*time.Millisecond {
		t.Errorf("attempt 2 delay = %v, want 400ms", d2)
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, JitterFactor: 0}

	d5 := backoffDelay(cfg, 5)
	if d5 != 300*time.Millisecond {
		t.Errorf("attempt 5 delay = %v, want 300ms (capped)", d5)
	}
}
