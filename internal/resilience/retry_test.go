package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/VaynZXC/tanki/internal/errors"
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
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New(errors.Transient, "transient")
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
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	calls := 0
	retryErr := errors.New(errors.Transient, "always fail")

	err := Retry(context.Background(), cfg, func() error {
		calls++
		return retryErr
	})

	if !stderrors.Is(err, retryErr) {
		t.Errorf("Retry() = %v, want %v", err, retryErr)
	}
	if calls != 3 { // initial + 2 retries
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryNonRetryableError(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	calls := 0
	nonRetryErr := errors.New(errors.InvalidCredentials, "bad account")

	err := Retry(context.Background(), cfg, func() error {
		calls++
		return nonRetryErr
	})

	if !stderrors.Is(err, nonRetryErr) {
		t.Errorf("Retry() = %v, want %v", err, nonRetryErr)
	}
	if calls != 1 { // Should not retry non-retryable errors
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxRetries: 10, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	calls := 0

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, cfg, func() error {
		calls++
		return errors.New(errors.Transient, "fail")
	})

	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("Retry() = %v, want context.Canceled", err)
	}
}

func TestMailRetryConfig(t *testing.T) {
	cfg := MailRetryConfig()
	if cfg.MaxRetries != MailMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.MaxRetries, MailMaxRetries)
	}
	if cfg.BaseDelay != MailBaseDelay {
		t.Errorf("BaseDelay = %v, want %v", cfg.BaseDelay, MailBaseDelay)
	}
	if cfg.MaxDelay != MailMaxDelay {
		t.Errorf("MaxDelay = %v, want %v", cfg.MaxDelay, MailMaxDelay)
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

func TestPollSucceeds(t *testing.T) {
	cfg := PollConfig{Interval: time.Millisecond, Timeout: time.Second}
	calls := 0
	ok, err := Poll(context.Background(), cfg, func() (bool, error) {
		calls++
		return calls >= 3, nil
	})

	if err != nil {
		t.Errorf("Poll() error = %v", err)
	}
	if !ok {
		t.Error("Poll() = false, want true")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestPollDeadline(t *testing.T) {
	cfg := PollConfig{Interval: 5 * time.Millisecond, Timeout: 20 * time.Millisecond}
	ok, err := Poll(context.Background(), cfg, func() (bool, error) {
		return false, nil
	})

	if err != nil {
		t.Errorf("Poll() error = %v", err)
	}
	if ok {
		t.Error("Poll() = true, want false after deadline")
	}
}

func TestPollProbeError(t *testing.T) {
	cfg := PollConfig{Interval: time.Millisecond, Timeout: time.Second}
	probeErr := errors.New(errors.Generic, "capture failed")
	ok, err := Poll(context.Background(), cfg, func() (bool, error) {
		return false, probeErr
	})

	if !stderrors.Is(err, probeErr) {
		t.Errorf("Poll() error = %v, want %v", err, probeErr)
	}
	if ok {
		t.Error("Poll() = true, want false on error")
	}
}

func TestPollContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := PollConfig{Interval: time.Millisecond, Timeout: time.Second}
	_, err := Poll(ctx, cfg, func() (bool, error) { return false, nil })
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("Poll() error = %v, want context.Canceled", err)
	}
}
