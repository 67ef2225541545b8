package store

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// ExpiredDeleter is implemented by stores without native TTL eviction.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically removes expired rows from a store lacking native expiry.
type Sweeper struct {
	target   ExpiredDeleter
	interval time.Duration
	logger   *zap.SugaredLogger

	mu    sync.Mutex
	sched gocron.Scheduler
}

// NewSweeper creates a Sweeper. It does nothing until Start is called.
func NewSweeper(target ExpiredDeleter, interval time.Duration, logger *zap.SugaredLogger) *Sweeper {
	return &Sweeper{target: target, interval: interval, logger: logger}
}

// Start schedules the sweep job and stops it when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.sweep),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sched = scheduler
	s.mu.Unlock()
	scheduler.Start()

	go func() {
		<-ctx.Done()
		if sdErr := s.Shutdown(); sdErr != nil {
			s.logger.Errorw("Sweeper shutdown error", "error", sdErr)
		}
	}()
	return nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.target.DeleteExpired(ctx)
	if err != nil {
		s.logger.Warnw("Expired rate sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Infow("Expired rates removed", "count", n)
	}
}

// Shutdown stops the scheduler. Safe to call more than once.
func (s *Sweeper) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sched == nil {
		return nil
	}
	err := s.sched.Shutdown()
	s.sched = nil
	return err
}
