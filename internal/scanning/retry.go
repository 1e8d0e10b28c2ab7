package scanning

import (
	"context"
	"log/slog"
	"time"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// retrier runs an operation in a bounded loop with linear backoff.
type retrier struct {
	maxAttempts int
	backoff     time.Duration
	sleep       Sleeper
	logger      *slog.Logger
}

// run calls op until it succeeds, fails with a non-retryable error, or
// maxAttempts is reached. Attempts never overlap. It returns the number of
// attempts made and the final classified error.
func (r retrier) run(ctx context.Context, op func(ctx context.Context, attempt int) error) (int, *AnalysisError) {
	for attempt := 1; ; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		ae := Classify(err)
		if !ae.Retryable() || attempt >= r.maxAttempts {
			return attempt, ae
		}

		delay := time.Duration(attempt) * r.backoff
		r.logger.Warn("Analysis attempt failed, retrying",
			"attempt", attempt,
			"kind", ae.Kind,
			"delay", delay,
			"error", err,
		)
		if err := r.sleep(ctx, delay); err != nil {
			return attempt, Classify(err)
		}
	}
}
