package worker

import (
	"context"
	"sync"
	"time"

	"fundhub/internal/service"
	"fundhub/pkg/cache"

	"go.uber.org/zap"
)

// Scheduler runs the periodic ledger jobs: confirming purchases whose
// cancellation window closed, and the daily interest sweep. When redis is
// configured only one replica runs each job at a time.
type Scheduler struct {
	window   *service.CancellationWindow
	interest *service.InterestEngine
	locker   *cache.Locker
	clock    service.Clock
	logger   *zap.Logger

	promoteEvery  time.Duration
	interestEvery time.Duration

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewScheduler(window *service.CancellationWindow, interest *service.InterestEngine, locker *cache.Locker, clock service.Clock,
	logger *zap.Logger, promoteEvery, interestEvery time.Duration) *Scheduler {
	return &Scheduler{
		window:        window,
		interest:      interest,
		locker:        locker,
		clock:         clock,
		logger:        logger,
		promoteEvery:  promoteEvery,
		interestEvery: interestEvery,
		stopChan:      make(chan struct{}),
	}
}

// Start launches both loops and returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("starting ledger scheduler",
		zap.Duration("promote_every", s.promoteEvery), zap.Duration("interest_every", s.interestEvery))
	s.loop(ctx, "promote-pending", s.promoteEvery, s.RunPromotion)
	s.loop(ctx, "interest-sweep", s.interestEvery, s.RunInterest)
}

func (s *Scheduler) loop(ctx context.Context, name string, every time.Duration, job func(context.Context)) {
	if every <= 0 {
		s.logger.Info("job disabled", zap.String("job", name))
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				job(ctx)
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends both loops and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func (s *Scheduler) RunPromotion(ctx context.Context) {
	release, ok, err := s.locker.Acquire(ctx, "sweep:promote-pending", s.promoteEvery)
	if err != nil {
		s.logger.Warn("promotion lock failed", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	defer release()

	n, err := s.window.PromoteExpired(ctx, "")
	if err != nil {
		s.logger.Error("promotion sweep had failures", zap.Int64("promoted", n), zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("promotion sweep", zap.Int64("promoted", n))
	}
}

func (s *Scheduler) RunInterest(ctx context.Context) {
	release, ok, err := s.locker.Acquire(ctx, "sweep:interest", time.Hour)
	if err != nil {
		s.logger.Warn("interest lock failed", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	defer release()

	report, err := s.interest.ApplyAll(ctx, s.clock.Now())
	if err != nil {
		s.logger.Error("interest sweep failed", zap.Error(err))
		return
	}
	if len(report.Failed) > 0 {
		s.logger.Warn("interest sweep finished with failures", zap.Int("failed", len(report.Failed)))
	}
}
