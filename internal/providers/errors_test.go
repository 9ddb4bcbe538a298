package providers

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestRetryableErrorString(t *testing.T) {
	err := &RetryableError{
		Provider:   "p",
		Op:         "save_game",
		StatusCode: 503,
		Err:        errors.New("unavailable"),
	}
	got := err.Error()
	for _, want := range []string{"p", "save_game", "unavailable", "503"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}

	wrapped := fmt.Errorf("outer: %w", err)
	rErr, ok := AsRetryableError(wrapped)
	if !ok || rErr == nil {
		t.Fatalf("expected to unwrap retryable error")
	}
	if !IsRetryable(wrapped) {
		t.Fatalf("expected wrapped error to be retryable")
	}

	noDetail := &RetryableError{}
	if got := noDetail.Error(); got == "" {
		t.Fatalf("expected fallback message")
	}
}

func TestRetryableHelper(t *testing.T) {
	if Retryable("p", "op", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	base := errors.New("disk busy")
	err := Retryable("sqlite", "save_game", base)
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	if IsRetryable(base) {
		t.Fatalf("plain errors are not retryable")
	}
	rErr, _ := AsRetryableError(&RetryableError{RetryAfter: time.Second})
	if rErr.RetryAfter != time.Second {
		t.Fatalf("expected retry-after to survive unwrap")
	}
}
