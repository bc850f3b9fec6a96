package scheduler

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned by Schedule after Stop
var ErrStopped = errors.New("scheduler stopped")

// TimerScheduler runs delayed tasks on their own goroutine using runtime timers
type TimerScheduler struct {
	logger *zap.Logger

	mu      sync.Mutex
	timers  map[*time.Timer]func()
	stopped bool
	wg      sync.WaitGroup
}

// NewTimerScheduler creates an in-process scheduler
func NewTimerScheduler(logger *zap.Logger) *TimerScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimerScheduler{
		logger: logger.With(zap.String("component", "timer-scheduler")),
		timers: make(map[*time.Timer]func()),
	}
}

// Schedule runs task once after delay
func (s *TimerScheduler) Schedule(task func(), delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}

	s.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.timers, timer)
		s.mu.Unlock()

		s.run(task)
	})
	s.timers[timer] = task
	return nil
}

func (s *TimerScheduler) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduled task panicked", zap.Any("panic", r))
		}
	}()
	task()
}

// Pending returns the number of tasks that have not fired yet
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop runs pending tasks immediately instead of at their deadline, then
// waits for running ones to finish. Tasks scheduled after Stop are refused.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	var early []func()
	for timer, task := range s.timers {
		if timer.Stop() {
			early = append(early, task)
			s.wg.Done()
		}
		delete(s.timers, timer)
	}
	s.mu.Unlock()

	if len(early) > 0 {
		s.logger.Info("Running pending tasks early on stop", zap.Int("tasks", len(early)))
	}
	for _, task := range early {
		s.run(task)
	}
	s.wg.Wait()
}
