package pgstore

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/example/food-order-service/internal/domain"
)

// queueChannel — канал pg_notify триггера queues_orders_changed.
const queueChannel = "queue_orders"

func (s *Store) QueueByName(ctx context.Context, name string) (domain.Queue, error) {
	q, err := scanQueue(s.Pool.QueryRow(ctx, `SELECT id, name, orders, current_order, version
		FROM queues WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Queue{}, domain.ErrQueueNotFound
	}
	return q, errors.Wrap(err, "load queue")
}

// SaveQueue — условное обновление по версии. Колонка name не пишется.
func (s *Store) SaveQueue(ctx context.Context, q domain.Queue) (domain.Queue, error) {
	saved, err := scanQueue(s.Pool.QueryRow(ctx, `UPDATE queues
		SET orders = $2, current_order = $3, version = version + 1
		WHERE name = $1 AND version = $4
		RETURNING id, name, orders, current_order, version`,
		q.Name, nonNil(q.Orders), q.CurrentOrder, q.Version))
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Queue{}, errors.Wrap(err, "save queue")
	}

	var exists bool
	if err := s.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM queues WHERE name = $1)`, q.Name).Scan(&exists); err != nil {
		return domain.Queue{}, errors.Wrap(err, "save queue")
	}
	if exists {
		return domain.Queue{}, domain.ErrConflict
	}
	return domain.Queue{}, domain.ErrQueueNotFound
}

func scanQueue(row pgx.Row) (domain.Queue, error) {
	var q domain.Queue
	if err := row.Scan(&q.ID, &q.Name, &q.Orders, &q.CurrentOrder, &q.Version); err != nil {
		return domain.Queue{}, err
	}
	if q.Orders == nil {
		q.Orders = []string{}
	}
	return q, nil
}

// OpenQueueStream занимает у пула отдельное соединение и слушает канал
// триггера. Уведомление несёт имя очереди; документ дочитывается по имени.
func (s *Store) OpenQueueStream(ctx context.Context) (domain.QueueStream, error) {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquire listen connection")
	}
	if _, err := conn.Exec(ctx, "LISTEN "+queueChannel); err != nil {
		conn.Release()
		return nil, errors.Wrap(err, "listen")
	}
	return &queueStream{store: s, conn: conn}, nil
}

type queueStream struct {
	store *Store
	conn  *pgxpool.Conn
	once  sync.Once
}

func (st *queueStream) Next(ctx context.Context) (domain.Queue, error) {
	for {
		n, err := st.conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return domain.Queue{}, ctx.Err()
			}
			return domain.Queue{}, errors.Wrap(err, "wait for notification")
		}
		q, err := st.store.QueueByName(ctx, n.Payload)
		if errors.Is(err, domain.ErrQueueNotFound) {
			// очередь переименована после уведомления
			continue
		}
		return q, err
	}
}

func (st *queueStream) Close(ctx context.Context) error {
	var err error
	st.once.Do(func() {
		// после отмены WaitForNotification соединение может быть закрыто;
		// пул выбросит его сам
		if !st.conn.Conn().IsClosed() {
			if _, err = st.conn.Exec(ctx, "UNLISTEN "+queueChannel); err != nil {
				_ = st.conn.Conn().Close(ctx)
			}
		}
		st.conn.Release()
	})
	return errors.Wrap(err, "unlisten")
}
