package scheduler

import (
	"context"
	"sync"
	"time"

	"heelbid-auction-service/internal/domain/shared"

	"github.com/rs/zerolog"
)

// LifecycleSweeper advances auction states as of a given time
type LifecycleSweeper interface {
	Sweep(ctx context.Context, now time.Time) (*shared.SweepResult, error)
}

// Locker elects one instance per tick; a nil Locker means this instance always sweeps
type Locker interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LifecycleScheduler runs the lifecycle sweep on a fixed interval
type LifecycleScheduler struct {
	sweeper  LifecycleSweeper
	locker   Locker
	interval time.Duration
	clock    func() time.Time
	logger   zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type LifecycleSchedulerParams struct {
	Sweeper  LifecycleSweeper
	Locker   Locker
	Interval time.Duration
	Clock    func() time.Time
	Logger   zerolog.Logger
}

func NewLifecycleScheduler(params LifecycleSchedulerParams) *LifecycleScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	interval := params.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	return &LifecycleScheduler{
		sweeper:  params.Sweeper,
		locker:   params.Locker,
		interval: interval,
		clock:    clock,
		logger:   params.Logger.With().Str("component", "lifecycle_scheduler").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the scheduler loop
func (s *LifecycleScheduler) Start() {
	s.logger.Info().Dur("interval", s.interval).Msg("Starting lifecycle scheduler")

	s.wg.Add(1)
	go s.schedulerLoop()
}

// Stop gracefully stops the scheduler, waiting for a running sweep
func (s *LifecycleScheduler) Stop() {
	s.logger.Info().Msg("Stopping lifecycle scheduler")
	s.cancel()
	s.wg.Wait()
}

func (s *LifecycleScheduler) schedulerLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(s.ctx)

	for {
		select {
		case <-ticker.C:
			s.RunOnce(s.ctx)
		case <-s.ctx.Done():
			s.logger.Info().Msg("Scheduler loop stopped")
			return
		}
	}
}

// RunOnce performs one sweep if this instance wins the lock. It reports whether a sweep ran.
func (s *LifecycleScheduler) RunOnce(ctx context.Context) bool {
	if s.locker != nil {
		acquired, err := s.locker.TryAcquire(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to acquire sweep lock")
			return false
		}
		if !acquired {
			s.logger.Debug().Msg("Another instance holds the sweep lock")
			return false
		}
		defer func() {
			if err := s.locker.Release(context.Background()); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to release sweep lock")
			}
		}()
	}

	result, err := s.sweeper.Sweep(ctx, s.clock())
	if err != nil {
		s.logger.Error().Err(err).Msg("Lifecycle sweep failed")
	}
	if result != nil && result.Failed > 0 {
		s.logger.Warn().Int("failed", result.Failed).Msg("Some auctions could not be completed, retrying next tick")
	}
	return true
}
