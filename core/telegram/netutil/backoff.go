package netutil

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Hamster-Prime/Network-Test-Bot/core/logger"
)

// Retrier runs a fallible synchronous operation with bounded retries and
// increasing backoff. Exhausting all attempts produces a descriptive failure
// string rather than an error, so callers can display the outcome directly.
type Retrier struct {
	// Attempts is the total number of tries, including the first one.
	Attempts int
	// Delay is the wait before the second attempt; it grows by x1.5 per retry.
	Delay time.Duration
	// Sleep is swappable for tests; nil means time.Sleep.
	Sleep func(time.Duration)
}

// Do runs op until it succeeds or attempts are exhausted. The returned string
// is either the operation's result or a failure summary embedding the last
// error. The second return reports whether the operation eventually succeeded.
func (r Retrier) Do(op func() (string, error)) (string, bool) {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := r.Delay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := op()
		if err == nil {
			return out, true
		}
		lastErr = err
		logger.Warn(context.Background(), "retry", "attempt.failed",
			slog.Int("attempt", attempt),
			slog.Int("attempts", attempts),
			slog.String("err", err.Error()),
		)
		if attempt < attempts {
			sleep(delay)
			delay = delay * 3 / 2
		}
	}

	return fmt.Sprintf("operation failed after %d attempts: %v", attempts, lastErr), false
}
