package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/example/food-order-service/internal/domain"
)

var ErrStreamClosed = errors.New("queue stream closed")

// queueStream — неограниченная FIFO событий одного подписчика.
type queueStream struct {
	owner *Store

	mu      sync.Mutex
	pending []domain.Queue
	signal  chan struct{}
	done    chan struct{}
	once    sync.Once
}

// push вызывается под s.owner.mu, поэтому порядок событий совпадает с
// порядком сохранений.
func (st *queueStream) push(q domain.Queue) {
	st.mu.Lock()
	st.pending = append(st.pending, q)
	st.mu.Unlock()
	select {
	case st.signal <- struct{}{}:
	default:
	}
}

func (st *queueStream) Next(ctx context.Context) (domain.Queue, error) {
	for {
		st.mu.Lock()
		if len(st.pending) > 0 {
			q := st.pending[0]
			st.pending = st.pending[1:]
			st.mu.Unlock()
			return q, nil
		}
		st.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.Queue{}, ctx.Err()
		case <-st.done:
			return domain.Queue{}, ErrStreamClosed
		case <-st.signal:
		}
	}
}

func (st *queueStream) Close(context.Context) error {
	st.once.Do(func() {
		st.owner.mu.Lock()
		delete(st.owner.streams, st)
		st.owner.mu.Unlock()
		close(st.done)
	})
	return nil
}
