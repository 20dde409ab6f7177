package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/wetwo-backend/internal/metrics"
)

// ExpiredTokenStore deletes denylist rows whose token has expired.
type ExpiredTokenStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RunRevokedCleanup purges expired denylist rows once at start and then every
// interval until ctx is cancelled.
func RunRevokedCleanup(ctx context.Context, store ExpiredTokenStore, interval time.Duration, m *metrics.Collector, logger *slog.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		cleanupOnce(ctx, store, time.Now(), m, logger)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func cleanupOnce(ctx context.Context, store ExpiredTokenStore, now time.Time, m *metrics.Collector, logger *slog.Logger) int64 {
	n, err := store.DeleteExpired(ctx, now.UTC())
	if err != nil {
		logger.Warn("revoked token cleanup failed", slog.Any("error", err))
		return 0
	}
	m.RecordRevokedCleanup(n)
	if n > 0 {
		logger.Info("revoked tokens cleaned up", slog.Int64("deleted", n))
	}
	return n
}
