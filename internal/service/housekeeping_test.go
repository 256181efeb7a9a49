package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"otp_auth/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHousekeeper_Cleanup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := f.clock.Now()
	_, err := f.st.CreatePasscode(ctx, "old@b.com", "111111", now.Add(-25*time.Hour))
	require.NoError(t, err)
	_, err = f.st.CreatePasscode(ctx, "new@b.com", "222222", now.Add(-time.Minute))
	require.NoError(t, err)

	h := NewHousekeeper(f.st, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour, 24*time.Hour)
	h.now = f.clock.Now

	assert.Equal(t, int64(1), h.Cleanup(ctx))

	_, err = f.st.FindActivePasscode(ctx, "new@b.com", "222222")
	assert.NoError(t, err)

	assert.Zero(t, h.Cleanup(ctx))
}

func TestHousekeeper_Defaults(t *testing.T) {
	f := newFixture(t)

	h := NewHousekeeper(f.st, slog.New(slog.NewTextHandler(io.Discard, nil)), 0, 0)
	assert.Equal(t, defaultHousekeepingInterval, h.interval)
	assert.Equal(t, defaultRetention, h.retention)
}

func TestHousekeeper_StartStop(t *testing.T) {
	f := newFixture(t)

	h := NewHousekeeper(f.st, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour, 24*time.Hour)
	h.Start()
	h.Stop()

	select {
	case <-h.doneCh:
	default:
		t.Fatal("housekeeper still running after Stop")
	}
}

// stallingStorage blocks DeleteStalePasscodes until its context is done.
type stallingStorage struct {
	storage.Storage
	started chan struct{}
}

func (s *stallingStorage) DeleteStalePasscodes(ctx context.Context, _ time.Time) (int64, error) {
	close(s.started)
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestHousekeeper_StopCancelsCleanup(t *testing.T) {
	f := newFixture(t)
	st := &stallingStorage{Storage: f.st, started: make(chan struct{})}

	h := NewHousekeeper(st, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour, 24*time.Hour)
	h.Start()
	<-st.started

	stopped := make(chan struct{})
	go func() {
		h.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not cancel the running cleanup")
	}
	assert.ErrorIs(t, h.ctx.Err(), context.Canceled)
}
