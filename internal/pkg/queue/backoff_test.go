package queue

import (
	"testing"
	"time"
)

func TestBackoffDelay_DoublesUntilCap(t *testing.T) {
	base := 30 * time.Second
	limit := 30 * time.Minute

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 30 * time.Second},
		{attempt: 1, want: 60 * time.Second},
		{attempt: 2, want: 2 * time.Minute},
		{attempt: 3, want: 4 * time.Minute},
		{attempt: 5, want: 16 * time.Minute},
		{attempt: 6, want: 30 * time.Minute},
		{attempt: 20, want: 30 * time.Minute},
	}

	for _, tt := range tests {
		if got := backoffDelay(tt.attempt, base, limit); got != tt.want {
			t.Fatalf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDelay_NegativeAttemptUsesBase(t *testing.T) {
	if got := backoffDelay(-3, time.Second, time.Minute); got != time.Second {
		t.Fatalf("backoffDelay(-3) = %v, want base delay", got)
	}
}

func TestRetryDelay_MatchesDefaults(t *testing.T) {
	if got := RetryDelay(0, nil, nil); got != defaultRetryBase {
		t.Fatalf("first retry delay = %v, want %v", got, defaultRetryBase)
	}
	if got := RetryDelay(100, nil, nil); got != defaultRetryCap {
		t.Fatalf("late retry delay = %v, want cap %v", got, defaultRetryCap)
	}
}

func TestMaxRetryFromEnv(t *testing.T) {
	t.Setenv("QUEUE_MAX_RETRY", "")
	if got := maxRetryFromEnv(); got != defaultMaxRetry {
		t.Fatalf("unset env: got %d, want default %d", got, defaultMaxRetry)
	}

	t.Setenv("QUEUE_MAX_RETRY", "25")
	if got := maxRetryFromEnv(); got != 25 {
		t.Fatalf("valid env: got %d, want 25", got)
	}

	t.Setenv("QUEUE_MAX_RETRY", "banana")
	if got := maxRetryFromEnv(); got != defaultMaxRetry {
		t.Fatalf("invalid env: got %d, want default %d", got, defaultMaxRetry)
	}

	t.Setenv("QUEUE_MAX_RETRY", "-1")
	if got := maxRetryFromEnv(); got != defaultMaxRetry {
		t.Fatalf("negative env: got %d, want default %d", got, defaultMaxRetry)
	}
}
