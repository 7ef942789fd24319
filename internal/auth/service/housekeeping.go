package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/opswell/gatekeep/internal/auth/store"
)

// HousekeepingService periodically deletes records that left their audit
// retention window, so refresh_tokens and security_events do not grow
// without bound.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// Retention windows. Retired tokens and old events inside the window
	// stay for audit queries.
	TokenRetention time.Duration
	EventRetention time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the housekeeping worker. A non-positive
// interval defaults to 1 hour.
func NewHousekeepingService(
	st store.Store,
	logger *slog.Logger,
	interval, tokenRetention, eventRetention time.Duration,
) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:          st,
		Logger:         logger,
		Interval:       interval,
		TokenRetention: tokenRetention,
		EventRetention: eventRetention,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut it
// down gracefully.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts down the worker, blocking until any in-progress cleanup
// finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run once on startup so a restart never postpones cleanup.
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup runs each deletion independently; a failure in one does not stop
// the others.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	now := time.Now()

	tokens, err := s.Store.RefreshTokens().DeleteRetired(ctx, now.Add(-s.TokenRetention))
	if err != nil {
		s.Logger.Error("failed to delete retired refresh tokens", "error", err)
	}

	events, err := s.Store.SecurityEvents().DeleteEventsBefore(ctx, now.Add(-s.EventRetention))
	if err != nil {
		s.Logger.Error("failed to delete old security events", "error", err)
	}

	s.Logger.Info("housekeeping cleanup completed",
		slog.Int64("tokens_deleted", tokens),
		slog.Int64("events_deleted", events),
	)
}
