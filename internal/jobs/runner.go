package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edubridge/edubridge-backend/internal/observability"
)

type Job func(ctx context.Context) error

type Runner struct {
	ctx context.Context
}

func New(ctx context.Context) *Runner { return &Runner{ctx: ctx} }

// Every запускает fn по тикеру до отмены контекста; паника в fn считается ошибкой запуска.
func (r *Runner) Every(interval time.Duration, name string, fn Job) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-t.C:
				start := time.Now()
				if err := runSafe(r.ctx, name, fn); err != nil {
					jobErrors.WithLabelValues(name).Inc()
					observability.CaptureErrWith(err, map[string]string{"job": name})
				}
				jobRuns.WithLabelValues(name).Inc()
				jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
			}
		}
	}()
}

func runSafe(ctx context.Context, name string, fn Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in job %s: %v", name, rec)
		}
	}()
	err = fn(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
