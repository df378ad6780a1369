package queue

import (
	"strconv"
	"time"

	"github.com/LucaWinkler/FlohMarkt/internal/pkg/env"
	"github.com/hibiken/asynq"
)

const (
	defaultRetryBase = 30 * time.Second
	defaultRetryCap  = 30 * time.Minute
	defaultMaxRetry  = 10
)

// RetryDelay is the asynq retry delay function. The wait doubles per
// attempt starting at the base delay, capped so out-of-order events keep
// getting rechecked at a useful rate for hours.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	return backoffDelay(n, defaultRetryBase, defaultRetryCap)
}

// backoffDelay computes the exponential wait before attempt n+1.
func backoffDelay(n int, base, limit time.Duration) time.Duration {
	if n < 0 {
		n = 0
	}
	delay := base
	for i := 0; i < n; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	if delay > limit {
		return limit
	}
	return delay
}

// maxRetryFromEnv returns the configured retry budget per webhook task
func maxRetryFromEnv() int {
	raw := env.GetEnv("QUEUE_MAX_RETRY", "")
	if raw == "" {
		return defaultMaxRetry
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return defaultMaxRetry
	}
	return n
}
