package service

import (
	"context"
	"log/slog"
	"time"

	"otp_auth/internal/storage"
)

const (
	defaultHousekeepingInterval = time.Hour
	defaultRetention            = 24 * time.Hour
)

// Housekeeper periodically deletes passcodes older than the retention
// window so the passcodes table does not grow without bound.
type Housekeeper struct {
	storage   storage.Storage
	log       *slog.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}
}

// NewHousekeeper uses 1h / 24h for a zero interval or retention.
func NewHousekeeper(st storage.Storage, lgr *slog.Logger, interval, retention time.Duration) *Housekeeper {
	if interval <= 0 {
		interval = defaultHousekeepingInterval
	}
	if retention <= 0 {
		retention = defaultRetention
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Housekeeper{
		storage:   st,
		log:       lgr.With(slog.String("component", "housekeeper")),
		interval:  interval,
		retention: retention,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		doneCh:    make(chan struct{}),
	}
}

func (h *Housekeeper) Start() {
	go h.run()
	h.log.Info("housekeeping started", slog.Duration("interval", h.interval), slog.Duration("retention", h.retention))
}

// Stop cancels an in-progress cleanup and waits for the loop to exit.
func (h *Housekeeper) Stop() {
	h.cancel()
	<-h.doneCh
	h.log.Info("housekeeping stopped")
}

func (h *Housekeeper) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Cleanup(h.ctx)

	for {
		select {
		case <-ticker.C:
			h.Cleanup(h.ctx)
		case <-h.ctx.Done():
			return
		}
	}
}

// Cleanup runs a single pass and returns the number of deleted passcodes.
func (h *Housekeeper) Cleanup(ctx context.Context) int64 {
	const op = "service.Housekeeper.Cleanup"

	deleted, err := h.storage.DeleteStalePasscodes(ctx, h.now().Add(-h.retention))
	if err != nil {
		h.log.Error("failed to delete stale passcodes", slog.String("op", op), slog.Any("error", err))
		return 0
	}

	h.log.Debug("deleted stale passcodes", slog.String("op", op), slog.Int64("count", deleted))

	return deleted
}
