package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/food-order-service/internal/domain"
	"github.com/example/food-order-service/internal/usecase"
)

// feedSupervisor держит ленту очередей запущенной: когда сессия Watch
// заканчивается ошибкой, строит новую QueueFeed после паузы, растущей от
// BaseDelay до MaxDelay.
type feedSupervisor struct {
	Opener    domain.QueueStreamOpener
	OnChange  func(context.Context, domain.Queue) error
	Log       logrus.FieldLogger
	BaseDelay time.Duration
	MaxDelay  time.Duration

	mu      sync.Mutex
	closed  bool
	current *usecase.QueueFeed
	cancel  context.CancelFunc
	done    chan struct{}
}

func (s *feedSupervisor) Run(ctx context.Context) {
	s.mu.Lock()
	if s.closed || s.done != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()
	defer close(done)

	backoff := s.BaseDelay
	for {
		feed, ok := s.next()
		if !ok {
			return
		}
		started := time.Now()
		err := feed.Watch(ctx, s.OnChange)
		if err == nil || ctx.Err() != nil || errors.Is(err, usecase.ErrFeedClosed) {
			return
		}

		// сессия проработала дольше максимальной паузы: считаем её здоровой
		if time.Since(started) > s.MaxDelay {
			backoff = s.BaseDelay
		}
		s.Log.WithError(err).WithField("retry_in", backoff.String()).Error("queue feed failed")
		if !sleepWithContext(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, s.MaxDelay)
	}
}

// next — новая лента, если супервизор ещё не закрыт.
func (s *feedSupervisor) next() (*usecase.QueueFeed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	s.current = usecase.NewQueueFeed(s.Opener, s.Log)
	return s.current, true
}

// Close закрывает текущую ленту и ждёт выхода из Run.
func (s *feedSupervisor) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	feed, cancel, done := s.current, s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if feed != nil {
		if err := feed.Close(ctx); err != nil {
			return err
		}
	}
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sleepWithContext ждёт d или отмены ctx; false — если ctx отменён.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// nextBackoff удваивает паузу, не превышая limit.
func nextBackoff(curr, limit time.Duration) time.Duration {
	n := curr * 2
	if n > limit {
		return limit
	}
	return n
}
