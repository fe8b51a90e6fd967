package util

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quantbts/internal/domain"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 5}, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: time.Millisecond}, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRetryPermanent(t *testing.T) {
	attempts := 0
	cause := errors.New("unauthorized")

	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 5}, func() error {
		attempts++
		return Permanent(cause)
	})

	if err != cause {
		t.Errorf("Retry err = %v, want %v", err, cause)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times, want 1", attempts)
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour}, func() error {
		return errors.New("transient error")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry err = %v, want context.Canceled", err)
	}
}

func TestRateLimiterSpacing(t *testing.T) {
	rl := NewRateLimiter(600) // one token per 100ms
	now := time.Now()

	if w := rl.reserve(now); w != 0 {
		t.Errorf("first reserve wait = %v, want 0", w)
	}
	if w := rl.reserve(now); w != 100*time.Millisecond {
		t.Errorf("second reserve wait = %v, want 100ms", w)
	}
	if w := rl.reserve(now.Add(time.Second)); w != 0 {
		t.Errorf("reserve after idle wait = %v, want 0", w)
	}
}

func TestRateLimiterWaitCancelled(t *testing.T) {
	rl := NewRateLimiter(1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait after cancel err = %v, want context.Canceled", err)
	}
}

func TestRateLimiterUnlimited(t *testing.T) {
	rl := NewRateLimiter(0)
	for i := 0; i < 100; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"20240102", 20240102},
		{"2024-01-02", 20240102},
		{" 20000229 ", 20000229},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		if err != nil {
			t.Errorf("ParseDate(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDate(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "2024", "20230229", "20241301", "yesterday"} {
		if _, err := ParseDate(bad); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("ParseDate(%q) err = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestDateHelpers(t *testing.T) {
	ts := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	if got := DateFromTime(ts); got != 20240301 {
		t.Errorf("DateFromTime = %d, want 20240301", got)
	}
	if got := TimeFromDate(20240301); !got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("TimeFromDate = %v", got)
	}
	if got := FormatDate(20240301); got != "2024-03-01" {
		t.Errorf("FormatDate = %q, want %q", got, "2024-03-01")
	}
	if got := Yesterday(ts); got != 20240229 {
		t.Errorf("Yesterday = %d, want 20240229", got)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "warn", "json")
	logger.Info("dropped")
	logger.Warn("kept", "symbol", "SPY")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info record logged at warn level: %s", out)
	}
	if !strings.Contains(out, `"symbol":"SPY"`) {
		t.Errorf("JSON output missing symbol attr: %s", out)
	}

	buf.Reset()
	NewLoggerTo(&buf, "debug", "text").Debug("hello", "n", 1)
	if !strings.Contains(buf.String(), "msg=hello n=1") {
		t.Errorf("text output = %q", buf.String())
	}
}
