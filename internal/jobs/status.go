package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/edubridge/edubridge-backend/internal/ctxutil"
	"github.com/edubridge/edubridge-backend/internal/metrics"
)

// StatusSource: то, что фоновые задачи читают из БД.
type StatusSource interface {
	Ping(ctx context.Context) error
	StatusGauges(ctx context.Context) (openPosts, pendingMatches int, err error)
}

const (
	pingInterval   = 30 * time.Second
	gaugesInterval = time.Minute
)

// StartStatusJobs регистрирует проверку БД и обновление gauges.
func StartStatusJobs(r *Runner, src StatusSource, log *zap.Logger) {
	r.Every(pingInterval, "db_ping", PingDB(src, log))
	r.Every(gaugesInterval, "status_gauges", RefreshGauges(src))
}

func PingDB(src StatusSource, log *zap.Logger) Job {
	return func(ctx context.Context) error {
		ctx, cancel := ctxutil.WithDBTimeout(ctx)
		defer cancel()
		t0 := time.Now()
		if err := src.Ping(ctx); err != nil {
			log.Warn("db ping failed", zap.Error(err))
			return err
		}
		metrics.ObserveDBPing(time.Since(t0))
		return nil
	}
}

func RefreshGauges(src StatusSource) Job {
	return func(ctx context.Context) error {
		ctx, cancel := ctxutil.WithDBTimeout(ctx)
		defer cancel()
		open, pending, err := src.StatusGauges(ctx)
		if err != nil {
			return err
		}
		metrics.OpenPosts.Set(float64(open))
		metrics.PendingMatches.Set(float64(pending))
		return nil
	}
}
