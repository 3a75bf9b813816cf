package service

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often housekeeping runs.
const DefaultSweepInterval = 5 * time.Minute

// HousekeepingService periodically evicts expired confirmation records and
// abandoned registrations. Each sweep is independent; one failing does not
// stop the other.
type HousekeepingService struct {
	Confirmations *ConfirmationService
	Registrations *RegistrationService
	Interval      time.Duration
	Logger        *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewHousekeepingService(confirmations *ConfirmationService, registrations *RegistrationService, interval time.Duration, logger *slog.Logger) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &HousekeepingService{
		Confirmations: confirmations,
		Registrations: registrations,
		Interval:      interval,
		Logger:        logger,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start launches the background loop. An initial sweep runs immediately so a
// restart clears anything that expired while the service was down.
func (s *HousekeepingService) Start() {
	go s.run()
}

// Stop signals the loop to exit and waits for the in-flight sweep to finish.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.sweep()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// Sweep runs one eviction pass. Exported so tests and operators can trigger
// it without waiting for the ticker.
func (s *HousekeepingService) Sweep() { s.sweep() }

func (s *HousekeepingService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expired, err := s.Confirmations.SweepExpired(ctx)
	if err != nil {
		s.Logger.Error("housekeeping: confirmation sweep failed", "error", err)
	} else if expired > 0 {
		s.Logger.Info("housekeeping: expired confirmations removed", "count", expired)
	}

	entries, accounts, err := s.Registrations.SweepStale(ctx)
	if err != nil {
		s.Logger.Error("housekeeping: registration sweep failed", "error", err)
	} else if entries > 0 || accounts > 0 {
		s.Logger.Info("housekeeping: stale registrations removed", "entries", entries, "accounts", accounts)
	}
}
