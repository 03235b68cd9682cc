package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Run executes fn once as jobType and records the outcome. m may be nil.
func Run(ctx context.Context, m *Metrics, jobType string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)

	if m != nil {
		m.ObserveJobDuration(jobType, time.Since(start).Seconds())
		status := StatusSuccess
		if err != nil {
			status = StatusFailure
			m.IncJobErrors(jobType, errorType(err))
		}
		m.IncJobsTotal(jobType, status)
	}
	if err != nil {
		slog.WarnContext(ctx, "background job failed", "job_type", jobType, "error", err)
	}
	return err
}

// Every calls Run for fn each interval until ctx is done.
func Every(ctx context.Context, interval time.Duration, m *Metrics, jobType string, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = Run(ctx, m, jobType, fn)
		}
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
