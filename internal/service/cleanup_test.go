package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/wetwo-backend/internal/metrics"
)

type fakeExpired struct {
	n     int64
	err   error
	calls int
	at    time.Time
}

func (f *fakeExpired) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.calls++
	f.at = now
	return f.n, f.err
}

func TestCleanupOnce(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector(reg)

	store := &fakeExpired{n: 3}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("x", 7200))
	assert.EqualValues(t, 3, cleanupOnce(context.Background(), store, now, m, logger))
	assert.Equal(t, time.UTC, store.at.Location())

	count, err := testutil.GatherAndCount(reg, "wetwo_revoked_tokens_cleaned_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	store.err = errors.New("db down")
	assert.EqualValues(t, 0, cleanupOnce(context.Background(), store, now, m, logger))
}

func TestRunRevokedCleanup_StopsOnCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &fakeExpired{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		RunRevokedCleanup(ctx, store, time.Hour, nil, logger)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup loop did not stop")
	}
	assert.Equal(t, 1, store.calls)
}
