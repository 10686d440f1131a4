package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/food-order-service/internal/domain"
)

// ErrFeedClosed — лента закрыта через Close и больше не запускается.
var ErrFeedClosed = errors.New("queue feed closed")

const feedCloseTimeout = 5 * time.Second

// QueueFeed — наблюдатель за изменениями очередей. Держит не больше одного
// открытого курсора и вызывает обработчик строго последовательно, в порядке
// событий хранилища. После ошибки курсора или обработчика сессия
// завершается; новую сессию запускает владелец ленты.
type QueueFeed struct {
	Opener domain.QueueStreamOpener
	Log    logrus.FieldLogger

	mu       sync.Mutex
	watching bool
	closed   bool
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewQueueFeed(opener domain.QueueStreamOpener, log logrus.FieldLogger) *QueueFeed {
	return &QueueFeed{Opener: opener, Log: log}
}

// Watch потребляет события, пока не отменён ctx, не вызван Close или не
// случилась ошибка. Повторный вызов во время активной сессии ничего не
// делает и возвращает nil.
func (f *QueueFeed) Watch(ctx context.Context, onChange func(context.Context, domain.Queue) error) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFeedClosed
	}
	if f.watching {
		f.mu.Unlock()
		f.Log.Debug("queue feed already watching")
		return nil
	}
	wctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	f.watching, f.cancel, f.done = true, cancel, done
	f.mu.Unlock()

	defer func() {
		cancel()
		f.mu.Lock()
		f.watching, f.cancel, f.done = false, nil, nil
		f.mu.Unlock()
		close(done)
	}()

	stream, err := f.Opener.OpenQueueStream(wctx)
	if err != nil {
		return err
	}
	defer func() {
		cctx, ccancel := context.WithTimeout(context.WithoutCancel(ctx), feedCloseTimeout)
		defer ccancel()
		if err := stream.Close(cctx); err != nil {
			f.Log.WithError(err).Warn("close queue stream")
		}
	}()

	f.Log.Info("queue feed started")
	for {
		q, err := stream.Next(wctx)
		if err != nil {
			if wctx.Err() != nil {
				// остановлено снаружи: отмена родителя или Close
				f.Log.Info("queue feed stopped")
				return ctx.Err()
			}
			return err
		}
		if err := onChange(wctx, q); err != nil {
			return err
		}
	}
}

// Close останавливает текущую сессию, дожидается освобождения курсора и
// закрывает ленту насовсем. Повторный вызов безопасен.
func (f *QueueFeed) Close(ctx context.Context) error {
	f.mu.Lock()
	f.closed = true
	cancel, done := f.cancel, f.done
	f.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
